// Package adapter implements the object adapter: the server-side container
// that maps incoming requests to servants, either directly (via its own
// servant.Map) or through category-keyed ServantLocators, and owns the
// listeners and reactor pool that give it connections to dispatch over.
package adapter

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frostrpc/frost/internal/logger"
	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/reactor"
	"github.com/frostrpc/frost/pkg/servant"
	"github.com/frostrpc/frost/pkg/transceiver"
)

// State is one of the six lifecycle states an Adapter moves through:
// Uninitialized -> Active <-> Held -> Deactivating -> Deactivated ->
// Destroyed.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateHeld
	StateDeactivating
	StateDeactivated
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateActive:
		return "Active"
	case StateHeld:
		return "Held"
	case StateDeactivating:
		return "Deactivating"
	case StateDeactivated:
		return "Deactivated"
	case StateDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ServantLocator defers servant activation until a request actually
// arrives for an identity, instead of requiring every object to be
// registered up front. Finished is called, via defer, once Locate's
// returned servant has handled (or failed to handle) the request.
type ServantLocator interface {
	Locate(ctx context.Context, current servant.Current) (servant.Servant, any, error)
	Finished(ctx context.Context, current servant.Current, s servant.Servant, cookie any)
}

// Adapter is one object adapter: a name, a servant map, zero or more
// category-keyed locators plus one default locator, and the listeners that
// feed it connections.
type Adapter struct {
	name     string
	servants *servant.Map
	pool     *reactor.Pool

	locatorsMu     sync.RWMutex
	locators       map[string]ServantLocator
	defaultLocator ServantLocator

	stateMu sync.Mutex
	state   State

	dispatcher connection.Dispatcher

	connMu sync.Mutex
	conns  map[*connection.Connection]struct{}

	listenersMu sync.Mutex
	listeners   []net.Listener

	opt Options
}

// Options configures connections the adapter accepts.
type Options struct {
	Protocol          string // endpoint kind tag: "tcp", "ws", ...
	MessageSizeMax    int32
	IdleTimeout       time.Duration
	InactivityTimeout time.Duration
}

// New creates an Adapter named name, backed by pool for its connection
// goroutines. dispatcher handles every request that arrives over a
// connection this adapter accepts (normally a *dispatch.Engine bound to
// this same Adapter).
func New(name string, pool *reactor.Pool, dispatcher connection.Dispatcher, opt Options) *Adapter {
	return &Adapter{
		name:       name,
		servants:   servant.NewMap(),
		pool:       pool,
		locators:   make(map[string]ServantLocator),
		dispatcher: dispatcher,
		conns:      make(map[*connection.Connection]struct{}),
		opt:        opt,
	}
}

func (a *Adapter) Name() string { return a.name }

// Add registers a servant directly (no locator involved).
func (a *Adapter) Add(id servant.Current, s servant.Servant) error {
	return a.servants.Add(id.Identity, id.Facet, s)
}

// AddServant is the common case: register s under id with the default ("")
// facet.
func (a *Adapter) AddServant(id servant.Current, s servant.Servant) error {
	return a.Add(id, s)
}

// RemoveServant unregisters (identity, facet).
func (a *Adapter) RemoveServant(current servant.Current) servant.Servant {
	return a.servants.Remove(current.Identity, current.Facet)
}

// RegisterLocator installs loc for identities whose Category equals
// category. An empty category here is a locator-for-no-category — use
// RegisterDefaultLocator for the adapter-wide fallback instead.
func (a *Adapter) RegisterLocator(category string, loc ServantLocator) {
	a.locatorsMu.Lock()
	a.locators[category] = loc
	a.locatorsMu.Unlock()
}

// RegisterDefaultLocator installs the adapter-wide fallback locator,
// consulted after the exact servant map and any category-specific locator.
func (a *Adapter) RegisterDefaultLocator(loc ServantLocator) {
	a.locatorsMu.Lock()
	a.defaultLocator = loc
	a.locatorsMu.Unlock()
}

// Locate resolves current to a Servant following this order: exact
// (identity, facet) registration, then the category locator, then the
// default locator, then ObjectNotExist/FacetNotExist. The returned finish
// func must be deferred by the caller (normally pkg/dispatch.Engine) so a
// locator's Finished hook always runs, even on a panic recovery path.
func (a *Adapter) Locate(ctx context.Context, current servant.Current) (servant.Servant, func(), error) {
	if s := a.servants.Find(current.Identity, current.Facet); s != nil {
		return s, func() {}, nil
	}

	a.locatorsMu.RLock()
	categoryLocator := a.locators[current.Identity.Category]
	defaultLocator := a.defaultLocator
	a.locatorsMu.RUnlock()

	if categoryLocator != nil {
		if s, finish, err := a.tryLocate(ctx, categoryLocator, current); s != nil || err != nil {
			return s, finish, err
		}
	}
	if defaultLocator != nil && defaultLocator != categoryLocator {
		if s, finish, err := a.tryLocate(ctx, defaultLocator, current); s != nil || err != nil {
			return s, finish, err
		}
	}

	if facets := a.servants.FacetNames(current.Identity); len(facets) > 0 {
		return nil, nil, frosterr.New(frosterr.KindFacetNotExist, "adapter %s: facet %q not found for %s", a.name, current.Facet, current.Identity)
	}
	return nil, nil, frosterr.New(frosterr.KindObjectNotExist, "adapter %s: object %s not found", a.name, current.Identity)
}

func (a *Adapter) tryLocate(ctx context.Context, loc ServantLocator, current servant.Current) (servant.Servant, func(), error) {
	s, cookie, err := loc.Locate(ctx, current)
	if err != nil {
		return nil, nil, err
	}
	if s == nil {
		return nil, nil, nil
	}
	return s, func() { loc.Finished(ctx, current, s, cookie) }, nil
}

func (a *Adapter) setState(s State) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
	logger.Info("adapter: state transition", "adapter", a.name, "state", s.String())
}

func (a *Adapter) State() State {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.state
}

// Connections returns a snapshot of the adapter's currently accepted
// connections, for admin introspection (frostctl connection ls).
func (a *Adapter) Connections() []*connection.Connection {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	conns := make([]*connection.Connection, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	return conns
}

// CloseConnection closes the adapter's connection identified by id, if
// any, returning frosterr.KindObjectNotExist if no such connection is
// currently accepted.
func (a *Adapter) CloseConnection(ctx context.Context, id string) error {
	a.connMu.Lock()
	var target *connection.Connection
	for c := range a.conns {
		if c.ID() == id {
			target = c
			break
		}
	}
	a.connMu.Unlock()
	if target == nil {
		return frosterr.New(frosterr.KindObjectNotExist, "adapter %s: no connection %q", a.name, id)
	}
	return target.Close(ctx)
}

// Serve accepts connections on ln until ctx is done or Stop is called,
// registering each with the adapter's reactor.Pool.
func (a *Adapter) Serve(ctx context.Context, ln net.Listener) error {
	a.listenersMu.Lock()
	a.listeners = append(a.listeners, ln)
	a.listenersMu.Unlock()
	a.setState(StateActive)

	listener, err := reactor.NewListener(a.pool, ln, func(conn net.Conn) (reactor.EventHandler, error) {
		return a.newConnection(conn), nil
	})
	if err != nil {
		return err
	}
	return listener.Serve(ctx)
}

func (a *Adapter) newConnection(conn net.Conn) *connection.Connection {
	connID := fmt.Sprintf("%s<-%s#%s", a.name, conn.RemoteAddr(), uuid.NewString()[:8])
	c := connection.New(connID, transceiver.NewTCP(conn, false), connection.Options{
		Outgoing:          false,
		MessageSizeMax:    a.opt.MessageSizeMax,
		IdleTimeout:       a.opt.IdleTimeout,
		InactivityTimeout: a.opt.InactivityTimeout,
		Dispatcher:        a.dispatcher,
		OnFinished: func(conn *connection.Connection, err error) {
			a.connMu.Lock()
			delete(a.conns, conn)
			a.connMu.Unlock()
		},
	})
	a.connMu.Lock()
	a.conns[c] = struct{}{}
	a.connMu.Unlock()
	return c
}

// Hold transitions every active connection to Holding: new requests are
// rejected with ObjectNotExist, but in-flight ones complete and the
// transport stays open.
func (a *Adapter) Hold() {
	a.setState(StateHeld)
	a.connMu.Lock()
	defer a.connMu.Unlock()
	for c := range a.conns {
		c.Hold()
	}
}

// Activate reverses Hold.
func (a *Adapter) Activate() {
	a.setState(StateActive)
	a.connMu.Lock()
	defer a.connMu.Unlock()
	for c := range a.conns {
		c.Activate()
	}
}

// Deactivate stops accepting new connections and gracefully closes existing
// ones, moving the adapter from Deactivating to Deactivated.
func (a *Adapter) Deactivate(ctx context.Context) error {
	a.setState(StateDeactivating)

	a.listenersMu.Lock()
	for _, ln := range a.listeners {
		_ = ln.Close()
	}
	a.listenersMu.Unlock()

	a.connMu.Lock()
	conns := make([]*connection.Connection, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.connMu.Unlock()
	for _, c := range conns {
		_ = c.Close(ctx)
	}

	a.setState(StateDeactivated)
	return nil
}

// Destroy releases every resource the adapter owns; it must not be used
// after this call, which leaves the adapter in its terminal state.
func (a *Adapter) Destroy(ctx context.Context) error {
	if a.State() < StateDeactivated {
		if err := a.Deactivate(ctx); err != nil {
			return err
		}
	}
	a.setState(StateDestroyed)
	return nil
}

// MapError classifies err into the wire reply status a dispatch engine
// should send, falling back to StatusUnknown for anything not already a
// *frosterr.Error.
func MapError(err error) frosterr.ReplyStatus {
	if pe, ok := err.(frosterr.ProtocolError); ok {
		return pe.Status()
	}
	return frosterr.StatusUnknown
}
