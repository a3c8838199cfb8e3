// Package admin implements a diagnostic servant frost-server registers on
// a small internal object adapter, and that frostctl talks to as an
// ordinary client over the same wire protocol the rest of the runtime
// uses, dogfooding regular dispatch for operations rather than carrying a
// separate management transport. Request and reply bodies here are
// plain JSON rather than a valueser-encoded encapsulation: the admin
// protocol is a diagnostic side channel, not part of the application wire
// format, so there is no class-slicing or factory registry to exercise.
package admin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/communicator"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/servant"
)

// Identity name under which frost-server registers the admin servant.
// frostctl builds a reference to "admin"/"" with this name.
const ServantName = "admin"

// AdapterInfo describes one object adapter for "listAdapters".
type AdapterInfo struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Connections int    `json:"connections"`
}

// ConnectionInfo describes one accepted connection for "listConnections".
type ConnectionInfo struct {
	ID         string `json:"id"`
	Adapter    string `json:"adapter"`
	State      string `json:"state"`
	RemoteAddr string `json:"remote_addr"`
}

// closeRequest is the JSON body "closeConnection" expects.
type closeRequest struct {
	Adapter      string `json:"adapter"`
	ConnectionID string `json:"connection_id"`
}

// connectionsRequest is the JSON body "listConnections" expects.
type connectionsRequest struct {
	Adapter string `json:"adapter"`
}

// Servant answers frostctl's introspection operations by reading the
// Communicator's live adapter/connection state.
type Servant struct {
	comm *communicator.Communicator
}

// New returns an admin Servant reading comm's adapters and connections.
func New(comm *communicator.Communicator) *Servant {
	return &Servant{comm: comm}
}

// Dispatch implements servant.Servant.
func (s *Servant) Dispatch(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
	switch current.Operation {
	case "ping":
		return s.ping()
	case "listAdapters":
		return s.listAdapters()
	case "listConnections":
		return s.listConnections(params)
	case "closeConnection":
		return s.closeConnection(ctx, params)
	default:
		return servant.Result{}, frosterr.New(frosterr.KindOperationNotExist, "admin: unknown operation %q", current.Operation)
	}
}

func (s *Servant) ping() (servant.Result, error) {
	return jsonResult(map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Servant) listAdapters() (servant.Result, error) {
	adapters := s.comm.Adapters()
	out := make([]AdapterInfo, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, AdapterInfo{
			Name:        a.Name(),
			State:       a.State().String(),
			Connections: len(a.Connections()),
		})
	}
	return jsonResult(out)
}

func (s *Servant) listConnections(params *wire.EncapsulationView) (servant.Result, error) {
	var req connectionsRequest
	if err := decodeJSONParams(params, &req); err != nil {
		return servant.Result{}, err
	}

	var conns []ConnectionInfo
	for _, a := range s.comm.Adapters() {
		if req.Adapter != "" && a.Name() != req.Adapter {
			continue
		}
		for _, c := range a.Connections() {
			conns = append(conns, ConnectionInfo{
				ID:         c.ID(),
				Adapter:    a.Name(),
				State:      c.State().String(),
				RemoteAddr: c.Info().RemoteAddr,
			})
		}
	}
	if req.Adapter != "" && s.comm.FindObjectAdapter(req.Adapter) == nil {
		return servant.Result{}, frosterr.New(frosterr.KindObjectNotExist, "admin: no adapter %q", req.Adapter)
	}
	return jsonResult(conns)
}

func (s *Servant) closeConnection(ctx context.Context, params *wire.EncapsulationView) (servant.Result, error) {
	var req closeRequest
	if err := decodeJSONParams(params, &req); err != nil {
		return servant.Result{}, err
	}
	a := s.comm.FindObjectAdapter(req.Adapter)
	if a == nil {
		return servant.Result{}, frosterr.New(frosterr.KindObjectNotExist, "admin: no adapter %q", req.Adapter)
	}
	if err := a.CloseConnection(ctx, req.ConnectionID); err != nil {
		return servant.Result{}, err
	}
	return jsonResult(map[string]string{"status": "closed"})
}

func decodeJSONParams(params *wire.EncapsulationView, v any) error {
	if params == nil {
		return nil
	}
	if err := json.Unmarshal(params.Bytes(), v); err != nil {
		return frosterr.New(frosterr.KindMarshalError, "admin: bad request body: %v", err)
	}
	return nil
}

func jsonResult(v any) (servant.Result, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return servant.Result{}, frosterr.New(frosterr.KindMarshalError, "admin: failed to encode reply: %v", err)
	}
	return servant.Result{Body: body}, nil
}
