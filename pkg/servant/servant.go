// Package servant defines the Servant contract objects implement to handle
// dispatched requests, and Map, the identity+facet keyed registry an
// ObjectAdapter consults for objects it serves directly (as opposed to
// through a ServantLocator).
package servant

import (
	"context"
	"fmt"
	"sync"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/identity"
)

// Current carries per-invocation context down to a Servant, assembled by
// pkg/dispatch from the incoming Request.
type Current struct {
	Identity  identity.Identity
	Facet     string
	Operation string
	Context   map[string]string
	RequestID int32
	Encoding  wire.Version
}

// Result is what a Servant hands back to the dispatch engine: either an
// encoded success body, or a user exception to report as StatusUserException.
type Result struct {
	Body      []byte
	Exception error // non-nil implies StatusUserException
}

// Servant dispatches one operation call. Generated per-interface servant
// base types (out of this exercise's scope — no IDL compiler exists here)
// would decode Params themselves and call into application code; Servant is
// the seam they'd implement.
type Servant interface {
	Dispatch(ctx context.Context, current Current, params *wire.EncapsulationView) (Result, error)
}

type key struct {
	identity identity.Identity
	facet    string
}

// ErrAlreadyRegistered is returned by Add when (identity, facet) is already
// present.
var ErrAlreadyRegistered = frosterr.New(frosterr.KindAlreadyRegistered, "servant: already registered")

// Map is a plain RWMutex-guarded map from (identity, facet) to Servant.
type Map struct {
	mu    sync.RWMutex
	items map[key]Servant
}

// NewMap creates an empty servant Map.
func NewMap() *Map {
	return &Map{items: make(map[key]Servant)}
}

// Add registers s under (id, facet). facet == "" is the main ("") facet.
func (m *Map) Add(id identity.Identity, facet string, s Servant) error {
	if s == nil {
		return fmt.Errorf("servant: cannot register a nil servant")
	}
	k := key{identity: id, facet: facet}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[k]; exists {
		return ErrAlreadyRegistered
	}
	m.items[k] = s
	return nil
}

// Remove unregisters (id, facet), returning the previously registered
// Servant, or nil if none was.
func (m *Map) Remove(id identity.Identity, facet string) Servant {
	k := key{identity: id, facet: facet}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.items[k]
	delete(m.items, k)
	return s
}

// Find returns the Servant registered for (id, facet), or nil.
func (m *Map) Find(id identity.Identity, facet string) Servant {
	k := key{identity: id, facet: facet}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[k]
}

// FacetNames returns every facet registered for id (used to distinguish
// ObjectNotExist from FacetNotExist in the dispatch lookup).
func (m *Map) FacetNames(id identity.Identity) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.items {
		if k.identity == id {
			out = append(out, k.facet)
		}
	}
	return out
}

// RemoveAll clears every servant belonging to id, returning how many were
// removed, releasing all of an object's facets at once.
func (m *Map) RemoveAll(id identity.Identity) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.items {
		if k.identity == id {
			delete(m.items, k)
			n++
		}
	}
	return n
}

// Len reports how many (identity, facet) pairs are registered.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
