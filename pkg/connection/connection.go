// Package connection implements the 8-state connection state machine that
// frames, multiplexes, and correlates requests over one Transceiver — the
// heart of the runtime. It knows nothing about servants or dispatch tables;
// incoming requests are handed to a Dispatcher and outgoing requests are
// driven by whatever holds a *Connection (pkg/requesthandler on the client
// side, pkg/adapter on the server side).
package connection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/frostrpc/frost/internal/logger"
	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/transceiver"
)

// State is one of the eight states a Connection moves through over its
// lifetime: NotInitialized -> NotValidated -> Active <-> Holding ->
// Closing -> ClosingPending -> Closed -> Finished.
type State int32

const (
	StateNotInitialized State = iota
	StateNotValidated
	StateActive
	StateHolding
	StateClosing
	StateClosingPending
	StateClosed
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateNotInitialized:
		return "NotInitialized"
	case StateNotValidated:
		return "NotValidated"
	case StateActive:
		return "Active"
	case StateHolding:
		return "Holding"
	case StateClosing:
		return "Closing"
	case StateClosingPending:
		return "ClosingPending"
	case StateClosed:
		return "Closed"
	case StateFinished:
		return "Finished"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Dispatcher handles a request that arrived over a Connection. Connection
// calls Dispatch synchronously from its own read loop — in-order processing
// per connection, matching one goroutine per connection throughout this
// runtime (pkg/dispatch.Engine is the concrete implementation wired in by
// pkg/adapter).
type Dispatcher interface {
	Dispatch(ctx context.Context, conn *Connection, req *Request) *Reply
}

// Options configures a Connection. Zero-value durations disable the
// corresponding timer.
type Options struct {
	// Outgoing is true for client-initiated (dialed) connections, false for
	// ones accepted by a server adapter. It controls which side sends the
	// initial ValidateConnection message during the handshake.
	Outgoing bool

	Protocol wire.Version
	Encoding wire.Version

	// MessageSizeMax bounds a single message's total wire size; 0 means
	// unbounded.
	MessageSizeMax int32

	// ConnectTimeout bounds the handshake; exceeding it fails the connection
	// with ConnectTimeout. 0 means the ambient context deadline (if any)
	// governs instead.
	ConnectTimeout time.Duration
	// CloseTimeout is not read by Connection: a graceful Close sends
	// CloseConnection and the connection is never forced closed after a
	// time bound.
	CloseTimeout time.Duration
	// IdleTimeout is the ACM heartbeat interval (half of it triggers a
	// ValidateConnection heartbeat write); wired into the Transceiver via
	// transceiver.IdleTimeout by New.
	IdleTimeout time.Duration
	// InactivityTimeout closes a connection that has carried no traffic
	// and has no pending requests for this long.
	InactivityTimeout time.Duration

	// BatchAutoFlushSize is the soft byte threshold past which
	// FinishBatchRequest flushes the accumulated batch automatically.
	BatchAutoFlushSize int

	Dispatcher Dispatcher
	// OnFinished is invoked exactly once, from Finished, after all pending
	// requests have been failed and the transceiver closed.
	OnFinished func(*Connection, error)
}

type pendingRequest struct {
	replyCh chan *Reply
	done    chan struct{}
	once    sync.Once
}

func (p *pendingRequest) complete(rep *Reply) {
	p.once.Do(func() {
		p.replyCh <- rep
		close(p.done)
	})
}

// Connection is one framed, multiplexed transport session. It implements
// pkg/reactor.EventHandler so a reactor.Pool can own its lifetime goroutine.
type Connection struct {
	id  string
	tr  transceiver.Transceiver
	opt Options

	stateMu  sync.Mutex
	state    State
	closeErr error

	writeMu sync.Mutex

	idMu   sync.Mutex
	nextID int32

	pendingMu sync.Mutex
	pending   map[int32]*pendingRequest

	batchMu    sync.Mutex
	batchBuf   *wire.Buffer
	batchInUse bool
	batchCount int

	activityMu   sync.Mutex
	lastActivity time.Time

	inactivityTimer *time.Timer
}

// New wraps tr (already dialed or accepted) in a Connection. If
// opt.IdleTimeout is set, tr is itself decorated with transceiver.IdleTimeout
// whose heartbeat callback writes a ValidateConnection message.
func New(id string, tr transceiver.Transceiver, opt Options) *Connection {
	if opt.Protocol == (wire.Version{}) {
		opt.Protocol = wire.Version{Major: 1, Minor: 0}
	}
	if opt.Encoding == (wire.Version{}) {
		opt.Encoding = wire.Version{Major: 1, Minor: 1}
	}
	c := &Connection{
		id:           id,
		opt:          opt,
		pending:      make(map[int32]*pendingRequest),
		batchBuf:     wire.NewBuffer(),
		lastActivity: time.Now(),
	}
	if opt.IdleTimeout > 0 {
		tr = transceiver.NewIdleTimeout(tr, opt.IdleTimeout, func() error {
			return c.sendValidateConnection(context.Background())
		})
	}
	c.tr = tr
	if opt.InactivityTimeout > 0 {
		c.inactivityTimer = time.AfterFunc(opt.InactivityTimeout, c.onInactivity)
	}
	return c
}

func (c *Connection) String() string { return c.id }

// State returns the connection's current state.
func (c *Connection) State() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) {
	c.stateMu.Lock()
	prev := c.state
	c.state = s
	c.stateMu.Unlock()
	if prev != s {
		logger.Debug("connection: state transition", "connection", c.id, "from", prev.String(), "to", s.String())
	}
}

// Run drives the handshake and read loop. It satisfies reactor.EventHandler;
// a reactor.Pool calls it on a worker goroutine and calls Finished once it
// returns.
func (c *Connection) Run(ctx context.Context) {
	hctx, cancelHandshake := ctx, context.CancelFunc(func() {})
	if c.opt.ConnectTimeout > 0 {
		hctx, cancelHandshake = context.WithTimeout(ctx, c.opt.ConnectTimeout)
	}
	err := c.handshake(hctx)
	cancelHandshake()
	if err != nil {
		if ctx.Err() == nil && hctx.Err() == context.DeadlineExceeded {
			err = frosterr.Wrap(frosterr.KindConnectTimeout, err, "connection: handshake exceeded ConnectTimeout")
		}
		c.abort(err)
		return
	}
	c.setState(StateActive)

	for {
		select {
		case <-ctx.Done():
			c.abort(ctx.Err())
			return
		default:
		}

		body, h, err := c.readMessage(ctx)
		if err != nil {
			c.abort(err)
			return
		}
		c.handleMessage(ctx, body, h)
		if c.State() == StateClosed {
			return
		}
	}
}

// Finished is called once by the owning reactor.Pool after Run returns. It
// fails every still-pending request and closes the underlying transceiver.
func (c *Connection) Finished(graceful bool) {
	c.stateMu.Lock()
	alreadyFinished := c.state == StateFinished
	c.state = StateFinished
	closeErr := c.closeErr
	c.stateMu.Unlock()
	if alreadyFinished {
		return
	}

	if c.inactivityTimer != nil {
		c.inactivityTimer.Stop()
	}

	if closeErr == nil {
		closeErr = frosterr.New(frosterr.KindConnectionLost, "connection: closed")
	}

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int32]*pendingRequest)
	c.pendingMu.Unlock()
	for id, pr := range pending {
		logger.Debug("connection: failing pending request on finish", "connection", c.id, "request_id", id)
		pr.complete(&Reply{RequestID: id, Status: frosterr.StatusUnknown})
	}

	_ = c.tr.Close()
	logger.Info("connection: finished", "connection", c.id, "graceful", graceful)
	if c.opt.OnFinished != nil {
		c.opt.OnFinished(c, closeErr)
	}
}

func (c *Connection) abort(err error) {
	c.stateMu.Lock()
	if c.state == StateClosed || c.state == StateFinished {
		c.stateMu.Unlock()
		return
	}
	c.state = StateClosed
	c.closeErr = err
	c.stateMu.Unlock()
	logger.Warn("connection: aborting", "connection", c.id, "error", err)
}

// Close begins a graceful shutdown: it sends CloseConnection to the peer and
// transitions through Closing/ClosingPending. The connection's Run loop
// notices the resulting read error (or the peer's own CloseConnection) and
// returns, after which the owning reactor.Pool calls Finished.
func (c *Connection) Close(ctx context.Context) error {
	c.stateMu.Lock()
	if c.state == StateClosed || c.state == StateFinished || c.state == StateClosing {
		c.stateMu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.stateMu.Unlock()

	buf := wire.NewBuffer()
	writeHeader(buf, header{protocol: c.opt.Protocol, encoding: c.opt.Encoding, typ: msgCloseConnection, messageSize: headerSize})
	err := c.writeFrame(ctx, buf.Bytes())

	c.stateMu.Lock()
	c.state = StateClosingPending
	c.closeErr = frosterr.New(frosterr.KindCloseConnection, "connection: closed locally")
	c.stateMu.Unlock()
	return err
}

// Hold transitions the connection to Holding: SendRequest calls still
// succeed over the transceiver but no new incoming requests are dispatched
// until Activate is called again (used by Adapter.Hold).
func (c *Connection) Hold()     { c.setState(StateHolding) }
func (c *Connection) Activate() { c.setState(StateActive) }

func (c *Connection) handshake(ctx context.Context) error {
	for {
		op, err := c.tr.Initialize()
		if err != nil {
			return err
		}
		if op == transceiver.OpNone {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	c.setState(StateNotValidated)

	if c.opt.Outgoing {
		_, h, err := c.readMessage(ctx)
		if err != nil {
			return err
		}
		if h.typ != msgValidateConnection {
			return frosterr.New(frosterr.KindProtocolError, "connection: expected ValidateConnection, got %s", h.typ)
		}
		return nil
	}
	return c.sendValidateConnection(ctx)
}

func (c *Connection) sendValidateConnection(ctx context.Context) error {
	buf := wire.NewBuffer()
	writeHeader(buf, header{protocol: c.opt.Protocol, encoding: c.opt.Encoding, typ: msgValidateConnection, messageSize: headerSize})
	return c.writeFrame(ctx, buf.Bytes())
}

func (c *Connection) readFull(ctx context.Context, buf []byte) error {
	total := 0
	for total < len(buf) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, _, err := c.tr.Read(buf[total:])
		if err != nil {
			return err
		}
		total += n
	}
	return nil
}

func (c *Connection) writeFrame(ctx context.Context, buf []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	total := 0
	for total < len(buf) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, _, err := c.tr.Write(buf[total:])
		if err != nil {
			return err
		}
		total += n
	}
	c.noteActivity()
	return nil
}

func (c *Connection) readMessage(ctx context.Context) (*wire.Buffer, header, error) {
	raw := make([]byte, headerSize)
	if err := c.readFull(ctx, raw); err != nil {
		return nil, header{}, err
	}
	h, err := readHeader(wire.NewBufferFromBytes(raw))
	if err != nil {
		return nil, header{}, err
	}
	if c.opt.MessageSizeMax > 0 && h.messageSize > c.opt.MessageSizeMax {
		return nil, header{}, frosterr.New(frosterr.KindDatagramLimit, "connection: message size %d exceeds MessageSizeMax %d", h.messageSize, c.opt.MessageSizeMax)
	}
	bodyLen := int(h.messageSize) - headerSize
	body := make([]byte, bodyLen)
	if bodyLen > 0 {
		if err := c.readFull(ctx, body); err != nil {
			return nil, header{}, err
		}
	}
	c.noteActivity()
	return wire.NewBufferFromBytes(body), h, nil
}

func (c *Connection) noteActivity() {
	c.activityMu.Lock()
	c.lastActivity = time.Now()
	c.activityMu.Unlock()
	if c.inactivityTimer != nil {
		c.inactivityTimer.Reset(c.opt.InactivityTimeout)
	}
}

func (c *Connection) onInactivity() {
	c.pendingMu.Lock()
	n := len(c.pending)
	c.pendingMu.Unlock()
	if n > 0 {
		c.inactivityTimer.Reset(c.opt.InactivityTimeout)
		return
	}
	logger.Debug("connection: closing for inactivity", "connection", c.id)
	_ = c.Close(context.Background())
}

func (c *Connection) handleMessage(ctx context.Context, body *wire.Buffer, h header) {
	switch h.typ {
	case msgValidateConnection:
		logger.Debug("connection: heartbeat received", "connection", c.id)

	case msgCloseConnection:
		logger.Debug("connection: peer closed connection", "connection", c.id)
		c.stateMu.Lock()
		c.state = StateClosed
		c.closeErr = frosterr.New(frosterr.KindCloseConnection, "connection: closed by peer")
		c.stateMu.Unlock()

	case msgRequest:
		req, err := readRequestBody(body)
		if err != nil {
			logger.Warn("connection: malformed request, dropping", "connection", c.id, "error", err)
			return
		}
		c.dispatchOne(ctx, req)

	case msgBatchRequest:
		count, err := body.ReadSize()
		if err != nil {
			logger.Warn("connection: malformed batch request, dropping", "connection", c.id, "error", err)
			return
		}
		for i := 0; i < count; i++ {
			req, err := readRequestBody(body)
			if err != nil {
				logger.Warn("connection: malformed batch entry, aborting batch", "connection", c.id, "error", err)
				return
			}
			c.dispatchOne(ctx, req)
		}

	case msgReply:
		rep, err := readReplyBody(body, body.Len())
		if err != nil {
			logger.Warn("connection: malformed reply, dropping", "connection", c.id, "error", err)
			return
		}
		c.pendingMu.Lock()
		pr, ok := c.pending[rep.RequestID]
		if ok {
			delete(c.pending, rep.RequestID)
		}
		c.pendingMu.Unlock()
		if !ok {
			// A reply for an id we no longer track (already canceled, or a
			// stale retry) is logged and the connection stays up — it is
			// not a protocol error.
			logger.Warn("connection: reply for unknown request id, ignoring", "connection", c.id, "request_id", rep.RequestID)
			return
		}
		pr.complete(rep)

	default:
		logger.Warn("connection: unknown message type, dropping", "connection", c.id, "type", uint8(h.typ))
	}
}

func (c *Connection) dispatchOne(ctx context.Context, req *Request) {
	if c.opt.Dispatcher == nil || c.State() == StateHolding {
		if req.RequestID != 0 {
			c.replyUnavailable(ctx, req)
		}
		return
	}
	rep := c.opt.Dispatcher.Dispatch(ctx, c, req)
	if req.RequestID == 0 || rep == nil {
		return // oneway/batch: no reply expected
	}
	buf := wire.NewBuffer()
	writeReply(buf, c.opt.Protocol, c.opt.Encoding, rep)
	if err := c.writeFrame(ctx, buf.Bytes()); err != nil {
		logger.Warn("connection: failed to write reply", "connection", c.id, "error", err)
	}
}

func (c *Connection) replyUnavailable(ctx context.Context, req *Request) {
	buf := wire.NewBuffer()
	writeReply(buf, c.opt.Protocol, c.opt.Encoding, &Reply{RequestID: req.RequestID, Status: frosterr.StatusObjectNotExist})
	_ = c.writeFrame(ctx, buf.Bytes())
}

func (c *Connection) allocateRequestID() int32 {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	if c.nextID >= math.MaxInt32 {
		c.nextID = 0
	}
	c.nextID++
	return c.nextID
}

// SendRequest writes req with params as its already-encoded argument
// encapsulation. For a twoway request it blocks until the matching reply
// arrives, ctx is done, or the connection fails.
func (c *Connection) SendRequest(ctx context.Context, req *Request, params []byte, twoway bool) (*Reply, error) {
	if s := c.State(); s == StateClosed || s == StateFinished || s == StateClosing || s == StateClosingPending {
		return nil, frosterr.New(frosterr.KindConnectionLost, "connection: not open (state=%s)", s)
	}

	var pr *pendingRequest
	if twoway {
		req.RequestID = c.allocateRequestID()
		pr = &pendingRequest{replyCh: make(chan *Reply, 1), done: make(chan struct{})}
		c.pendingMu.Lock()
		c.pending[req.RequestID] = pr
		c.pendingMu.Unlock()
	} else {
		req.RequestID = 0
	}

	buf := wire.NewBuffer()
	writeHeader(buf, header{protocol: c.opt.Protocol, encoding: c.opt.Encoding, typ: msgRequest})
	if err := writeRequestBody(buf, req); err != nil {
		c.removePending(req.RequestID)
		return nil, frosterr.Wrap(frosterr.KindMarshalError, err, "connection: encode request")
	}
	buf.WriteRaw(params)
	buf.PatchI32(10, int32(buf.Len()))

	if err := c.writeFrame(ctx, buf.Bytes()); err != nil {
		c.removePending(req.RequestID)
		return nil, err
	}
	if !twoway {
		return nil, nil
	}

	select {
	case rep := <-pr.replyCh:
		return rep, nil
	case <-pr.done:
		return nil, frosterr.New(frosterr.KindInvocationCanceled, "connection: request %d canceled", req.RequestID)
	case <-ctx.Done():
		c.removePending(req.RequestID)
		return nil, ctx.Err()
	}
}

func (c *Connection) removePending(id int32) {
	if id == 0 {
		return
	}
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// Cancel aborts a pending twoway request locally (the reply, if it later
// arrives, is dropped as an unknown request id).
func (c *Connection) Cancel(requestID int32) error {
	c.pendingMu.Lock()
	pr, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.pendingMu.Unlock()
	if !ok {
		return frosterr.New(frosterr.KindNotRegistered, "connection: request %d not pending", requestID)
	}
	pr.once.Do(func() { close(pr.done) })
	return nil
}

// PrepareBatchRequest begins queuing one batch-oneway request. It must be
// followed by FinishBatchRequest or AbortBatchRequest before another
// PrepareBatchRequest is accepted.
func (c *Connection) PrepareBatchRequest() error {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	if c.batchInUse {
		return frosterr.New(frosterr.KindInitializationError, "connection: batch request already in progress")
	}
	c.batchInUse = true
	return nil
}

// FinishBatchRequest appends req (with its pre-encoded params) to the
// pending batch, auto-flushing once BatchAutoFlushSize is exceeded.
func (c *Connection) FinishBatchRequest(ctx context.Context, req *Request, params []byte) error {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	if !c.batchInUse {
		return frosterr.New(frosterr.KindInitializationError, "connection: no batch request in progress")
	}
	c.batchInUse = false

	req.RequestID = 0
	if err := writeRequestBody(c.batchBuf, req); err != nil {
		return frosterr.Wrap(frosterr.KindMarshalError, err, "connection: encode batch request")
	}
	c.batchBuf.WriteRaw(params)
	c.batchCount++

	if c.opt.BatchAutoFlushSize > 0 && c.batchBuf.Len() >= c.opt.BatchAutoFlushSize {
		return c.flushBatchLocked(ctx)
	}
	return nil
}

// AbortBatchRequest discards the in-progress (not-yet-finished) request
// without affecting previously finished ones still queued in the batch.
func (c *Connection) AbortBatchRequest() {
	c.batchMu.Lock()
	c.batchInUse = false
	c.batchMu.Unlock()
}

// FlushBatchRequests sends every finished batch request queued so far as a
// single BatchRequest message.
func (c *Connection) FlushBatchRequests(ctx context.Context) error {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	return c.flushBatchLocked(ctx)
}

func (c *Connection) flushBatchLocked(ctx context.Context) error {
	if c.batchCount == 0 {
		return nil
	}
	out := wire.NewBuffer()
	writeHeader(out, header{protocol: c.opt.Protocol, encoding: c.opt.Encoding, typ: msgBatchRequest})
	if err := out.WriteSize(c.batchCount); err != nil {
		return err
	}
	out.WriteRaw(c.batchBuf.Bytes())
	out.PatchI32(10, int32(out.Len()))

	if err := c.writeFrame(ctx, out.Bytes()); err != nil {
		return err
	}
	c.batchBuf = wire.NewBuffer()
	c.batchCount = 0
	return nil
}

// BatchCount reports how many requests are queued in the current batch.
func (c *Connection) BatchCount() int {
	c.batchMu.Lock()
	defer c.batchMu.Unlock()
	return c.batchCount
}

// Info exposes the underlying transceiver's endpoint info for diagnostics.
func (c *Connection) Info() transceiver.Info { return c.tr.Info() }

// ID returns the connection's diagnostic identifier.
func (c *Connection) ID() string { return c.id }
