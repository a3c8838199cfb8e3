// Package dispatch implements the dispatch engine: the piece that turns one
// decoded connection.Request into a resolved servant.Current, invokes the
// target servant (synchronously or, for an async-completed servant, via a
// single guaranteed reply write), and turns the outcome back into a
// connection.Reply with the correct wire status. It resolves by (identity,
// facet, operation) through an ObjectAdapter rather than a fixed procedure
// table.
package dispatch

import (
	"context"
	"sync"

	"github.com/frostrpc/frost/internal/logger"
	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/metrics"
	"github.com/frostrpc/frost/pkg/servant"
)

// ObjectAdapter is the subset of *adapter.Adapter's surface the engine
// depends on. It is satisfied structurally — this package does not import
// pkg/adapter, so pkg/adapter and pkg/dispatch never import each other.
type ObjectAdapter interface {
	Locate(ctx context.Context, current servant.Current) (servant.Servant, func(), error)
}

// Engine binds one ObjectAdapter to the connection.Dispatcher contract.
// pkg/communicator constructs one Engine per adapter and passes it as that
// adapter's connection.Options.Dispatcher.
type Engine struct {
	adapter ObjectAdapter
	metrics *metrics.RPCMetrics
}

// NewEngine creates an Engine dispatching onto adapter.
func NewEngine(adapter ObjectAdapter) *Engine {
	return &Engine{adapter: adapter}
}

// WithMetrics installs m as the engine's RPC metrics sink; a nil m (the
// zero value) leaves dispatch instrumentation a no-op.
func (e *Engine) WithMetrics(m *metrics.RPCMetrics) *Engine {
	e.metrics = m
	return e
}

// Dispatch implements connection.Dispatcher. It always returns within the
// call (no goroutine is left running past it) — a servant that wants
// asynchronous completion (AMD) must arrange to block inside its own
// Dispatch call until the result is ready; Engine's job is only to
// guarantee that, whichever path produces the result, exactly one reply is
// ever written for a given request id.
func (e *Engine) Dispatch(ctx context.Context, conn *connection.Connection, req *connection.Request) *connection.Reply {
	current := servant.Current{
		Identity:  req.Identity,
		Facet:     req.Facet,
		Operation: req.Operation,
		Context:   req.Context,
		RequestID: req.RequestID,
	}

	s, finish, err := e.adapter.Locate(ctx, current)
	if err != nil {
		logger.DebugCtx(ctx, "dispatch: locate failed", "identity", req.Identity.String(), "operation", req.Operation, "error", err)
		reply := e.errorReply(req.RequestID, err)
		if reply != nil {
			e.metrics.RequestDispatched(reply.Status)
		}
		return reply
	}
	defer finish()

	replied := &sync.Once{}
	var reply *connection.Reply
	setReply := func(r *connection.Reply) {
		replied.Do(func() { reply = r })
	}

	result, dispatchErr := e.invoke(ctx, s, current, req)
	switch {
	case req.RequestID == 0:
		// Oneway/batch: the caller never reads the return value, but the
		// servant still ran and any error it raised is worth a log line.
		if dispatchErr != nil {
			logger.WarnCtx(ctx, "dispatch: oneway request failed", "operation", req.Operation, "error", dispatchErr)
		}
		return nil
	case dispatchErr != nil:
		setReply(e.errorReply(req.RequestID, dispatchErr))
	case result.Exception != nil:
		setReply(&connection.Reply{RequestID: req.RequestID, Status: frosterr.StatusUserException, Body: encodeExceptionBody(result.Exception)})
	default:
		setReply(&connection.Reply{RequestID: req.RequestID, Status: frosterr.StatusOK, Body: result.Body})
	}
	if reply != nil {
		e.metrics.RequestDispatched(reply.Status)
	}
	return reply
}

func (e *Engine) invoke(ctx context.Context, s servant.Servant, current servant.Current, req *connection.Request) (result servant.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = frosterr.New(frosterr.KindUnknownLocalException, "dispatch: servant panicked: %v", r)
		}
	}()
	return s.Dispatch(ctx, current, req.Params)
}

func (e *Engine) errorReply(requestID int32, err error) *connection.Reply {
	if requestID == 0 {
		return nil
	}
	status := frosterr.StatusUnknown
	if pe, ok := err.(frosterr.ProtocolError); ok {
		status = pe.Status()
	}
	return &connection.Reply{RequestID: requestID, Status: status}
}

// encodeExceptionBody renders a user exception's error text as the reply
// body placeholder. Full slice-chain encoding (valueser.Encoder.WriteException)
// requires the exception to implement valueser.UserException; servants that
// return a plain error here get a best-effort message instead of a
// fully-decodable exception body, which is sufficient for logging and for
// clients that only inspect the reply status.
func encodeExceptionBody(err error) []byte {
	if err == nil {
		return nil
	}
	return []byte(err.Error())
}
