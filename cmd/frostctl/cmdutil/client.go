// Package cmdutil provides shared plumbing for frostctl's subcommands:
// dialing the admin adapter and decoding its JSON-over-wire replies.
// frostctl talks the same framed wire protocol the rest of the runtime
// does, so there is no separate HTTP+JWT session token to manage.
package cmdutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/communicator"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/reactor"
	"github.com/frostrpc/frost/pkg/reference"

	"github.com/frostrpc/frost/pkg/admin"
	"github.com/frostrpc/frost/pkg/proxy"
)

// AdminClient is a thin wrapper around a Proxy bound to one frost-server's
// admin servant, plus the Communicator that owns its connection.
type AdminClient struct {
	comm *communicator.Communicator
	p    *proxy.Proxy
}

// Dial builds an AdminClient talking to the admin adapter at addr
// ("host:port"). Close must be called once the client is done.
func Dial(addr string) (*AdminClient, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid --server address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port in --server address %q", addr)
	}

	comm := communicator.New(communicator.Options{
		ClientThreadPool: reactor.Config{Size: 1},
	})
	if err := comm.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize client runtime: %w", err)
	}

	id, err := identity.New("", admin.ServantName)
	if err != nil {
		return nil, err
	}
	ref, err := reference.New(id, reference.Options{
		Endpoints: []reference.Endpoint{{Kind: reference.TCP, Host: host, Port: uint16(port)}},
	})
	if err != nil {
		comm.Destroy(context.Background())
		return nil, err
	}

	p := proxy.New(ref, comm.NewRequestHandlerCache)
	return &AdminClient{comm: comm, p: p}, nil
}

// Close tears down the client's Communicator.
func (c *AdminClient) Close() error {
	return c.comm.Destroy(context.Background())
}

// Call invokes operation on the admin servant, marshalling req as the JSON
// request body (nil if req is nil) and unmarshalling the reply into resp
// (left untouched if resp is nil).
func (c *AdminClient) Call(ctx context.Context, operation string, req, resp any) error {
	var params []byte
	if req != nil {
		body, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		params = encapsulate(body)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	reply, err := c.p.Invoke(ctx, operation, params, true)
	if err != nil {
		return fmt.Errorf("admin call %q failed: %w", operation, err)
	}
	if err := proxy.CheckReply(reply); err != nil {
		return fmt.Errorf("admin call %q failed: %w", operation, err)
	}
	if resp == nil || len(reply.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Body, resp); err != nil {
		return fmt.Errorf("failed to decode %q reply: %w", operation, err)
	}
	return nil
}

// encapsulate wraps payload in the size+encoding-version header every
// request/reply body needs around it on the wire.
func encapsulate(payload []byte) []byte {
	buf := wire.NewBuffer()
	enc := buf.StartEncapsulation(wire.Version{Major: 1, Minor: 1})
	buf.WriteRaw(payload)
	enc.End()
	return buf.Bytes()
}
