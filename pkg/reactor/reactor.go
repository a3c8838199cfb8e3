// Package reactor implements a fixed-size worker pool over one accept loop
// and a WaitGroup of active connections, with sync.Once shutdown: instead of
// owning one ConnectionFactory for one transport, a Pool owns a set of
// registered EventHandlers and a fixed worker goroutine budget.
package reactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/frostrpc/frost/internal/logger"
)

// EventHandler is anything a Pool can run on a worker goroutine. Go's
// runtime netpoller is already the OS readiness selector backing every
// net.Conn-based Transceiver (there is no idiomatic reason to hand-roll
// epoll on top of it) — so a handler owns its own blocking-with-short-
// deadline I/O loop and simply runs until it decides to stop, one goroutine
// per connection.
type EventHandler interface {
	// Run blocks until the handler is done (the connection closed, the
	// context was cancelled, or a fatal error occurred). It must return
	// promptly once ctx is cancelled.
	Run(ctx context.Context)

	// Finished is called exactly once after Run returns, or during a forced
	// shutdown if Run has not returned within the pool's shutdown grace
	// period. graceful is false in the forced case.
	Finished(graceful bool)

	// String identifies the handler for logging (e.g. a connection's
	// remote address).
	String() string
}

// token guards a handler against being registered with more than one pool
// worker at a time: a second Register of the same handler must not
// silently spawn a second goroutine over it.
type token struct {
	mu     sync.Mutex
	taken  bool
}

func (t *token) tryAcquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.taken {
		return false
	}
	t.taken = true
	return true
}

func (t *token) release() {
	t.mu.Lock()
	t.taken = false
	t.mu.Unlock()
}

// Config mirrors the ThreadPool.{Client,Server}.* properties.
type Config struct {
	// Name identifies the pool in logs ("client" or "server", or a server
	// adapter's name).
	Name string
	// Size is the number of workers kept warm; SizeMax bounds how many may
	// run concurrently under load (0 means "same as Size", i.e. fixed).
	Size    int
	SizeMax int
	// Serialize, when true, forces every handler invocation in this pool
	// through one logical lock — used for the ordering guarantees datagram
	// and ordered-server scenarios need.
	Serialize bool
	// ShutdownGrace bounds how long Shutdown waits for handlers to return
	// from Run on their own before forcing Finished(false) on the rest.
	ShutdownGrace time.Duration
}

// Pool is a bounded set of worker goroutines running registered
// EventHandlers, supervised by an errgroup so the first fatal worker error
// can tear the whole pool down; shutdown is idempotent via sync.Once.
type Pool struct {
	cfg Config

	serializeMu *sync.Mutex // non-nil only when cfg.Serialize

	sem chan struct{} // bounds concurrent handlers to SizeMax

	mu       sync.Mutex
	handlers map[EventHandler]*token
	closing  bool

	shutdownOnce sync.Once
	cancel       context.CancelFunc
	ctx          context.Context
	group        *errgroup.Group
}

// New creates a Pool. SizeMax defaults to Size when unset.
func New(cfg Config) *Pool {
	if cfg.SizeMax <= 0 {
		cfg.SizeMax = cfg.Size
	}
	if cfg.SizeMax <= 0 {
		cfg.SizeMax = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	p := &Pool{
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.SizeMax),
		handlers: make(map[EventHandler]*token),
		cancel:   cancel,
		ctx:      gctx,
		group:    group,
	}
	if cfg.Serialize {
		p.serializeMu = &sync.Mutex{}
	}
	return p
}

// errPoolClosing is returned by Register once Shutdown has begun.
var errPoolClosing = fmt.Errorf("reactor: pool is shutting down")

// Register claims a worker slot (blocking until one is free or the pool is
// shutting down) and runs h to completion on it. It returns once the
// handler has been accepted, not once it has finished — Run executes
// asynchronously on the claimed worker.
func (p *Pool) Register(h EventHandler) error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return errPoolClosing
	}
	tok, ok := p.handlers[h]
	if !ok {
		tok = &token{}
	}
	if !tok.tryAcquire() {
		p.mu.Unlock()
		return fmt.Errorf("reactor: handler %s already registered", h)
	}
	p.handlers[h] = tok
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	case <-p.ctx.Done():
		p.mu.Lock()
		delete(p.handlers, h)
		p.mu.Unlock()
		tok.release()
		return errPoolClosing
	}

	p.group.Go(func() error {
		defer func() {
			<-p.sem
			tok.release()
			p.mu.Lock()
			delete(p.handlers, h)
			p.mu.Unlock()
		}()

		if p.serializeMu != nil {
			p.serializeMu.Lock()
			defer p.serializeMu.Unlock()
		}

		logger.Debug("reactor: handler registered", "pool", p.cfg.Name, "handler", h.String())
		h.Run(p.ctx)
		h.Finished(p.ctx.Err() == nil)
		return nil
	})
	return nil
}

// ActiveHandlers reports how many handlers currently hold a worker slot; a
// Register still waiting for a free slot is not counted.
func (p *Pool) ActiveHandlers() int {
	return len(p.sem)
}

// Shutdown drains the registered-handler set: it cancels the pool's
// context (every handler's Run must observe this and return promptly),
// waits up to cfg.ShutdownGrace, and force-finishes anything still
// outstanding.
func (p *Pool) Shutdown(ctx context.Context) error {
	var shutdownErr error
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closing = true
		remaining := make([]EventHandler, 0, len(p.handlers))
		for h := range p.handlers {
			remaining = append(remaining, h)
		}
		p.mu.Unlock()

		logger.Info("reactor: shutdown initiated", "pool", p.cfg.Name, "active", len(remaining))
		p.cancel()

		done := make(chan error, 1)
		go func() { done <- p.group.Wait() }()

		grace := time.NewTimer(p.cfg.ShutdownGrace)
		defer grace.Stop()

		select {
		case err := <-done:
			shutdownErr = err
		case <-grace.C:
			logger.Warn("reactor: shutdown grace period exceeded, forcing handlers", "pool", p.cfg.Name)
			p.mu.Lock()
			stuck := make([]EventHandler, 0, len(p.handlers))
			for h := range p.handlers {
				stuck = append(stuck, h)
			}
			p.mu.Unlock()
			for _, h := range stuck {
				h.Finished(false)
			}
			shutdownErr = fmt.Errorf("reactor: pool %q shutdown grace period exceeded with %d handlers still running", p.cfg.Name, len(stuck))
		case <-ctx.Done():
			shutdownErr = ctx.Err()
		}
	})
	return shutdownErr
}
