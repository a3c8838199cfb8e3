// Package requesthandler implements the per-proxy request-handler cache:
// one cached Handler per distinct connection a Proxy might use, a
// singleflight-collapsed dial path so concurrent first invocations share
// one connection attempt, and the retry-table classifier that decides
// whether a failed invocation gets another attempt.
package requesthandler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/frostrpc/frost/internal/logger"
	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/reference"
)

// Handler is the thin send interface a Cache hands back to a proxy
// invocation. It is satisfied by *connection.Connection directly.
type Handler interface {
	SendRequest(ctx context.Context, req *connection.Request, params []byte, twoway bool) (*connection.Reply, error)
	PrepareBatchRequest() error
	FinishBatchRequest(ctx context.Context, req *connection.Request, params []byte) error
	AbortBatchRequest()
	FlushBatchRequests(ctx context.Context) error
}

// Dialer produces a live connection to one of ref's endpoints. Concrete
// dialing (net.Dial, TLS handshake, reactor registration) is
// pkg/communicator's job; Cache only orchestrates when to call it.
type Dialer func(ctx context.Context, ref *reference.Reference) (Handler, error)

// Cache is owned one-per-Proxy: proxies that compare equal still each hold
// their own request handler. It lazily dials on first use and clears
// itself when the underlying connection reports failure.
type Cache struct {
	ref           *reference.Reference
	dial          Dialer
	retryIntervals []time.Duration

	mu      sync.RWMutex
	current Handler

	group singleflight.Group
}

// New creates a Cache for ref. retryIntervals is the ordered invocation-retry
// budget (Default.RetryIntervals); an empty slice disables retry.
func New(ref *reference.Reference, dial Dialer, retryIntervals []time.Duration) *Cache {
	return &Cache{ref: ref, dial: dial, retryIntervals: retryIntervals}
}

// GetRequestHandler returns the cached Handler, dialing one if none exists
// yet. Concurrent callers during the first dial all block on one in-flight
// connect via singleflight rather than racing to open several connections
// for the same reference.
func (c *Cache) GetRequestHandler(ctx context.Context) (Handler, error) {
	c.mu.RLock()
	h := c.current
	c.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	v, err, _ := c.group.Do(c.ref.Key(), func() (any, error) {
		c.mu.RLock()
		if c.current != nil {
			h := c.current
			c.mu.RUnlock()
			return h, nil
		}
		c.mu.RUnlock()

		logger.Debug("requesthandler: connecting", "key", c.ref.Key())
		h, err := c.dial(ctx, c.ref)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.current = h
		c.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Handler), nil
}

// ClearCachedRequestHandler drops h from the cache if it is still the
// current handler, so the next GetRequestHandler call dials afresh. A
// connection (or its owner) calls this once it detects the underlying
// transport has failed.
func (c *Cache) ClearCachedRequestHandler(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == h {
		c.current = nil
		logger.Debug("requesthandler: cleared cached handler", "key", c.ref.Key())
	}
}

// Outcome is HandleException's verdict on one failed invocation attempt.
type Outcome struct {
	Retry      bool
	After      time.Duration
	RetryCount int // the attempt number this outcome authorizes (1-based)
}

// HandleException implements the exact retry table:
//   - InvocationTimeout and CommunicatorDestroyed are never retried,
//     checked first regardless of idempotency or send state.
//   - A non-idempotent (twoway, non-"guaranteed idempotent") request retries
//     only when the connection failed before anything was sent.
//   - An idempotent request additionally retries on ConnectionLost,
//     CloseConnection, and a transport-level timeout, even if already sent,
//     since repeating it is safe.
//   - The retry budget is the ordered RetryIntervals list; attempt is
//     1-based (the first retry is attempt 1, consuming RetryIntervals[0]).
func (c *Cache) HandleException(err error, mode reference.InvocationMode, idempotent, alreadySent bool, attempt int) Outcome {
	if frosterr.Of(err, frosterr.KindInvocationTimeout) || frosterr.Of(err, frosterr.KindCommunicatorDestroyed) {
		return Outcome{Retry: false}
	}
	if attempt > len(c.retryIntervals) {
		return Outcome{Retry: false}
	}

	retryable := false
	switch {
	case !alreadySent:
		retryable = frosterr.Of(err, frosterr.KindConnectFailed) ||
			frosterr.Of(err, frosterr.KindConnectionRefused) ||
			frosterr.Of(err, frosterr.KindConnectionLost) ||
			frosterr.Of(err, frosterr.KindConnectTimeout)
	case idempotent:
		retryable = frosterr.Of(err, frosterr.KindConnectionLost) ||
			frosterr.Of(err, frosterr.KindCloseConnection) ||
			frosterr.Of(err, frosterr.KindConnectTimeout) ||
			frosterr.Of(err, frosterr.KindCloseTimeout)
	default:
		retryable = false
	}
	if !retryable {
		return Outcome{Retry: false}
	}
	return Outcome{Retry: true, After: c.retryIntervals[attempt-1], RetryCount: attempt}
}
