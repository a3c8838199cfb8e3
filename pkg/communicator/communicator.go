// Package communicator implements the Communicator: the root container a
// process creates exactly once, owning the client and server reactor
// pools, the value-serializer factory registry, and the dialing logic that
// turns a Reference into a live connection. Every Proxy and ObjectAdapter
// in a process is created through one Communicator and stops working once
// it is destroyed.
package communicator

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/frostrpc/frost/internal/logger"
	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/adapter"
	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/dispatch"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/metrics"
	"github.com/frostrpc/frost/pkg/reactor"
	"github.com/frostrpc/frost/pkg/reference"
	"github.com/frostrpc/frost/pkg/requesthandler"
	"github.com/frostrpc/frost/pkg/transceiver"
	"github.com/frostrpc/frost/pkg/valueser"
)

// Options configures a Communicator. Zero values fall back to documented
// defaults.
type Options struct {
	ClientThreadPool reactor.Config
	ServerThreadPool reactor.Config

	MessageSizeMax     int32
	ConnectTimeout     time.Duration
	CloseTimeout       time.Duration
	IdleTimeout        time.Duration
	InactivityTimeout  time.Duration
	BatchAutoFlushSize int

	RetryIntervals []time.Duration

	AcceptClassCycles bool

	// Metrics is the RPC metrics sink every dialed connection and dispatch
	// engine records through. Leave nil to disable instrumentation
	// (pkg/metrics.New returns nil when metrics haven't been InitRegistry'd).
	Metrics *metrics.RPCMetrics
}

// EndpointDialer opens a net.Conn to one Endpoint. The TCP built-in uses
// net.Dialer directly; a registered non-builtin Kind supplies its own via
// the endpoint factory registry.
type EndpointDialer func(ctx context.Context, ep reference.Endpoint) (net.Conn, error)

// Communicator is the process-wide root object. Create one with New,
// Initialize it, use it to build adapters/proxies, and Destroy it exactly
// once when the process is done with the runtime.
type Communicator struct {
	opt Options

	clientPool *reactor.Pool
	serverPool *reactor.Pool

	factories *valueser.FactoryManager

	endpointDialersMu sync.RWMutex
	endpointDialers   map[reference.Kind]EndpointDialer

	adaptersMu sync.Mutex
	adapters   map[string]*adapter.Adapter

	destroyOnce  sync.Once
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New creates a Communicator. It still must be Initialize'd before use.
func New(opt Options) *Communicator {
	if opt.ClientThreadPool.Name == "" {
		opt.ClientThreadPool.Name = "client"
	}
	if opt.ServerThreadPool.Name == "" {
		opt.ServerThreadPool.Name = "server"
	}
	c := &Communicator{
		opt:             opt,
		factories:       valueser.NewFactoryManager(),
		endpointDialers: make(map[reference.Kind]EndpointDialer),
		adapters:        make(map[string]*adapter.Adapter),
		shutdownCh:      make(chan struct{}),
	}
	c.endpointDialers[reference.TCP] = dialTCP
	wire.OnWarning = func(msg string) {
		logger.Warn("wire: " + msg)
	}
	return c
}

// Initialize starts the client and server thread pools. Adapters created
// afterwards register their listeners with the server pool; proxy dials go
// through the client pool.
func (c *Communicator) Initialize() error {
	c.clientPool = reactor.New(c.opt.ClientThreadPool)
	c.serverPool = reactor.New(c.opt.ServerThreadPool)
	logger.Info("communicator: initialized")
	return nil
}

// FactoryManager exposes the class-factory registry every Encoder/Decoder
// built for this Communicator's connections is bound to.
func (c *Communicator) FactoryManager() *valueser.FactoryManager { return c.factories }

// RegisterEndpointFactory installs a dialer for endpoint kind k, so
// references carrying that Kind can be connected to. Only TCP has a
// built-in dialer; UDP, WS and endpoint types the generated/application
// code defines itself are dialable only once registered here.
func (c *Communicator) RegisterEndpointFactory(k reference.Kind, dial EndpointDialer) {
	c.endpointDialersMu.Lock()
	c.endpointDialers[k] = dial
	c.endpointDialersMu.Unlock()
}

// CreateObjectAdapter creates a new named ObjectAdapter bound to this
// Communicator's server thread pool. Every request it accepts is routed
// through a pkg/dispatch.Engine bound to the new adapter itself, so callers
// only need to register servants and locators on the returned Adapter.
// name must be unique within the Communicator.
func (c *Communicator) CreateObjectAdapter(name string) (*adapter.Adapter, error) {
	c.adaptersMu.Lock()
	defer c.adaptersMu.Unlock()
	if _, exists := c.adapters[name]; exists {
		return nil, frosterr.New(frosterr.KindAlreadyRegistered, "communicator: adapter %q already exists", name)
	}
	// Adapter.New needs a Dispatcher up front, but dispatch.Engine needs the
	// Adapter it will route onto — this forwarding shim breaks the cycle by
	// being constructed first and having its target filled in afterwards.
	forward := &forwardingDispatcher{}
	a := adapter.New(name, c.serverPool, forward, adapter.Options{
		Protocol:          "tcp",
		MessageSizeMax:    c.opt.MessageSizeMax,
		IdleTimeout:       c.opt.IdleTimeout,
		InactivityTimeout: c.opt.InactivityTimeout,
	})
	forward.target = dispatch.NewEngine(a).WithMetrics(c.opt.Metrics)
	c.adapters[name] = a
	return a, nil
}

// forwardingDispatcher lets CreateObjectAdapter hand adapter.New a
// Dispatcher before the dispatch.Engine that will actually handle requests
// exists.
type forwardingDispatcher struct {
	target connection.Dispatcher
}

func (f *forwardingDispatcher) Dispatch(ctx context.Context, conn *connection.Connection, req *connection.Request) *connection.Reply {
	return f.target.Dispatch(ctx, conn, req)
}

// FindObjectAdapter returns a previously created adapter by name, or nil.
func (c *Communicator) FindObjectAdapter(name string) *adapter.Adapter {
	c.adaptersMu.Lock()
	defer c.adaptersMu.Unlock()
	return c.adapters[name]
}

// Adapters returns a snapshot of every object adapter this Communicator has
// created, for admin introspection (pkg/admin).
func (c *Communicator) Adapters() []*adapter.Adapter {
	c.adaptersMu.Lock()
	defer c.adaptersMu.Unlock()
	out := make([]*adapter.Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		out = append(out, a)
	}
	return out
}

// NewRequestHandlerCache builds a requesthandler.Cache for ref, wired to
// this Communicator's dial logic and retry policy. pkg/proxy calls this
// once per distinct Proxy instance.
func (c *Communicator) NewRequestHandlerCache(ref *reference.Reference) *requesthandler.Cache {
	return requesthandler.New(ref, c.dial, c.opt.RetryIntervals)
}

// dial implements requesthandler.Dialer: it tries ref's endpoints (sorted
// when ref.EndpointSelection is Ordered; for Random they are tried in the
// reference's own order, without shuffling), wraps the first
// successful net.Conn in a Connection, and registers it with the client
// pool so its read loop runs.
func (c *Communicator) dial(ctx context.Context, ref *reference.Reference) (requesthandler.Handler, error) {
	endpoints := ref.Endpoints()
	if len(endpoints) == 0 {
		return nil, frosterr.New(frosterr.KindConnectFailed, "communicator: reference %s has no endpoints to dial (indirect references need a locator, not yet supported)", ref.Identity())
	}
	if ref.EndpointSelection() == reference.Ordered {
		reference.Endpoints(endpoints).Sort()
	}

	var lastErr error
	for _, ep := range endpoints {
		conn, err := c.dialEndpoint(ctx, ep)
		if err != nil {
			lastErr = err
			logger.Debug("communicator: dial failed, trying next endpoint", "endpoint", ep.String(), "error", err)
			continue
		}
		tr := transceiver.NewTCP(conn, ep.Compress || ref.Compress())
		id := "out->" + ep.String()
		connOpt := connection.Options{
			Outgoing:           true,
			Protocol:           toWireVersion(ref.Protocol()),
			Encoding:           toWireVersion(ref.Encoding()),
			MessageSizeMax:     c.opt.MessageSizeMax,
			ConnectTimeout:     c.opt.ConnectTimeout,
			CloseTimeout:       c.opt.CloseTimeout,
			IdleTimeout:        c.opt.IdleTimeout,
			InactivityTimeout:  c.opt.InactivityTimeout,
			BatchAutoFlushSize: c.opt.BatchAutoFlushSize,
		}
		conn2 := connection.New(id, tr, connOpt)
		if err := c.clientPool.Register(conn2); err != nil {
			_ = tr.Close()
			lastErr = err
			continue
		}
		c.opt.Metrics.ConnectionAccepted(ep.Kind.String())
		c.opt.Metrics.ActiveConnectionOpened()
		return conn2, nil
	}
	if lastErr == nil {
		lastErr = frosterr.New(frosterr.KindConnectFailed, "communicator: no usable endpoint")
	}
	return nil, lastErr
}

func (c *Communicator) dialEndpoint(ctx context.Context, ep reference.Endpoint) (net.Conn, error) {
	c.endpointDialersMu.RLock()
	dial := c.endpointDialers[ep.Kind]
	c.endpointDialersMu.RUnlock()
	if dial == nil {
		return nil, frosterr.New(frosterr.KindFeatureNotSupported, "communicator: no dialer registered for endpoint kind %s", ep.Kind)
	}
	timeout := ep.Timeout
	if timeout == 0 {
		timeout = c.opt.ConnectTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return dial(ctx, ep)
}

func dialTCP(ctx context.Context, ep reference.Endpoint) (net.Conn, error) {
	d := net.Dialer{}
	if ep.SourceAddr != "" {
		if addr, err := net.ResolveTCPAddr("tcp", ep.SourceAddr+":0"); err == nil {
			d.LocalAddr = addr
		}
	}
	return d.DialContext(ctx, "tcp", net.JoinHostPort(ep.Host, strconv.Itoa(int(ep.Port))))
}

func toWireVersion(v reference.Version) wire.Version {
	return wire.Version{Major: v.Major, Minor: v.Minor}
}

// Shutdown deactivates every adapter this Communicator created, stopping
// new incoming requests while letting in-flight ones finish.
func (c *Communicator) Shutdown(ctx context.Context) error {
	c.adaptersMu.Lock()
	adapters := make([]*adapter.Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		adapters = append(adapters, a)
	}
	c.adaptersMu.Unlock()

	var firstErr error
	for _, a := range adapters {
		if err := a.Deactivate(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.shutdownOnce.Do(func() { close(c.shutdownCh) })
	return firstErr
}

// WaitForShutdown blocks until Shutdown has been called.
func (c *Communicator) WaitForShutdown() {
	<-c.shutdownCh
}

// Destroy tears down the thread pools; idempotent via sync.Once. Shutting
// the pools down cancels every connection they run, and a connection's
// pending invocations complete with StatusUnknown when it finishes. Destroy
// does not clear request-handler caches, and nothing it does reports
// KindCommunicatorDestroyed.
func (c *Communicator) Destroy(ctx context.Context) error {
	var err error
	c.destroyOnce.Do(func() {
		c.shutdownOnce.Do(func() { close(c.shutdownCh) })
		if c.serverPool != nil {
			if e := c.serverPool.Shutdown(ctx); e != nil && err == nil {
				err = e
			}
		}
		if c.clientPool != nil {
			if e := c.clientPool.Shutdown(ctx); e != nil && err == nil {
				err = e
			}
		}
		logger.Info("communicator: destroyed")
	})
	return err
}
