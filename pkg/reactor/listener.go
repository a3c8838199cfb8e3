package reactor

import (
	"context"
	"errors"
	"net"

	"github.com/frostrpc/frost/internal/logger"
)

// ConnFactory adapts one accepted net.Conn into an EventHandler the pool can
// run — normally connection.New wrapped in a small closure by pkg/adapter.
type ConnFactory func(conn net.Conn) (EventHandler, error)

// Listener owns one net.Listener's accept loop: accept, wrap, register with
// the pool, repeat until the listener is closed or the context is done.
type Listener struct {
	ln      net.Listener
	pool    *Pool
	factory ConnFactory
}

// NewListener wraps an already-created net.Listener (owning the actual
// net.Listen call is the caller's — normally pkg/communicator's — job).
func NewListener(pool *Pool, ln net.Listener, factory ConnFactory) (*Listener, error) {
	if ln == nil {
		return nil, errors.New("reactor: nil listener")
	}
	return &Listener{ln: ln, pool: pool, factory: factory}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops the accept loop by closing the underlying net.Listener.
func (l *Listener) Close() error { return l.ln.Close() }

// Serve accepts connections until ctx is done or the listener is closed,
// registering each accepted connection's handler with the pool.
func (l *Listener) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && !netErr.Timeout() {
				logger.Warn("reactor: listener accept failed, stopping", "error", err)
				return err
			}
			continue
		}

		handler, err := l.factory(conn)
		if err != nil {
			logger.Warn("reactor: connection factory failed", "error", err, "remote", conn.RemoteAddr())
			_ = conn.Close()
			continue
		}
		if err := l.pool.Register(handler); err != nil {
			logger.Warn("reactor: failed to register accepted connection", "error", err)
			_ = conn.Close()
			continue
		}
	}
}
