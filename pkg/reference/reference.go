// Package reference implements Reference, the immutable value that fully
// describes how to reach an object: its identity, facet, invocation mode,
// protocol/encoding versions, and either a fixed endpoint list or an
// adapter id to be resolved through a locator.
package reference

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frostrpc/frost/pkg/identity"
)

// InvocationMode selects how a request over this reference is sent and
// whether a reply is expected.
type InvocationMode uint8

const (
	Twoway InvocationMode = iota
	Oneway
	BatchOneway
	Datagram
	BatchDatagram
)

func (m InvocationMode) String() string {
	switch m {
	case Twoway:
		return "twoway"
	case Oneway:
		return "oneway"
	case BatchOneway:
		return "batch-oneway"
	case Datagram:
		return "datagram"
	case BatchDatagram:
		return "batch-datagram"
	default:
		return fmt.Sprintf("InvocationMode(%d)", uint8(m))
	}
}

// EndpointSelection controls the order endpoints are tried in.
type EndpointSelection uint8

const (
	Random EndpointSelection = iota
	Ordered
)

func (s EndpointSelection) String() string {
	if s == Ordered {
		return "ordered"
	}
	return "random"
}

// Version is a two-component major.minor protocol or encoding version.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// DefaultProtocol and DefaultEncoding are the versions a freshly
// constructed Reference carries unless overridden.
var (
	DefaultProtocol = Version{1, 0}
	DefaultEncoding = Version{1, 1}
)

// ErrEndpointsAndAdapterID is returned when a Reference would carry both a
// fixed endpoint list and an indirect adapter id — the two are mutually
// exclusive addressing modes.
var ErrEndpointsAndAdapterID = errors.New("reference: Endpoints and AdapterID are mutually exclusive")

// Reference is an immutable description of how to reach one object.
// Every field is unexported; construct with New or ParseString, and derive
// variants with the WithXxx methods, each of which returns a new value
// sharing no mutable state with its parent.
type Reference struct {
	identity identity.Identity
	facet    string
	mode     InvocationMode
	protocol Version
	encoding Version

	endpoints []Endpoint
	adapterID string

	router  *Reference
	locator *Reference

	context map[string]string

	compress             bool
	invocationTimeout    time.Duration
	locatorCacheTimeout  time.Duration
	endpointSelection    EndpointSelection
	secure               bool
	collocationOptimized bool
}

// Options carries the optional fields for New; zero values mean "use the
// reference's default" (see DefaultXxx package vars and NoTimeout below).
type Options struct {
	Facet                string
	Mode                 InvocationMode
	Protocol             Version
	Encoding             Version
	Endpoints            []Endpoint
	AdapterID            string
	Router               *Reference
	Locator              *Reference
	Context              map[string]string
	Compress             bool
	InvocationTimeout    time.Duration
	LocatorCacheTimeout  time.Duration
	EndpointSelection    EndpointSelection
	Secure               bool
	CollocationOptimized bool
}

// NoTimeout is the sentinel for "block indefinitely" on InvocationTimeout.
const NoTimeout time.Duration = -1

// New constructs a Reference for id, validating that Endpoints and
// AdapterID are not both set.
func New(id identity.Identity, opts Options) (*Reference, error) {
	if len(opts.Endpoints) > 0 && opts.AdapterID != "" {
		return nil, ErrEndpointsAndAdapterID
	}
	protocol := opts.Protocol
	if protocol == (Version{}) {
		protocol = DefaultProtocol
	}
	encoding := opts.Encoding
	if encoding == (Version{}) {
		encoding = DefaultEncoding
	}
	r := &Reference{
		identity:             id,
		facet:                opts.Facet,
		mode:                 opts.Mode,
		protocol:             protocol,
		encoding:             encoding,
		endpoints:            append([]Endpoint(nil), opts.Endpoints...),
		adapterID:            opts.AdapterID,
		router:               opts.Router,
		locator:              opts.Locator,
		context:              copyContext(opts.Context),
		compress:             opts.Compress,
		invocationTimeout:    opts.InvocationTimeout,
		locatorCacheTimeout:  opts.LocatorCacheTimeout,
		endpointSelection:    opts.EndpointSelection,
		secure:               opts.Secure,
		collocationOptimized: opts.CollocationOptimized,
	}
	return r, nil
}

func copyContext(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Identity, Facet, Mode, Protocol, Encoding, Endpoints, AdapterID, Router,
// Locator, Context, Compress, InvocationTimeout, LocatorCacheTimeout,
// EndpointSelection, Secure, and CollocationOptimized are plain read
// accessors; Reference has no exported mutable state.
func (r *Reference) Identity() identity.Identity   { return r.identity }
func (r *Reference) Facet() string                 { return r.facet }
func (r *Reference) Mode() InvocationMode          { return r.mode }
func (r *Reference) Protocol() Version             { return r.protocol }
func (r *Reference) Encoding() Version             { return r.encoding }
func (r *Reference) AdapterID() string             { return r.adapterID }
func (r *Reference) Router() *Reference            { return r.router }
func (r *Reference) Locator() *Reference           { return r.locator }
func (r *Reference) Compress() bool                { return r.compress }
func (r *Reference) InvocationTimeout() time.Duration   { return r.invocationTimeout }
func (r *Reference) LocatorCacheTimeout() time.Duration { return r.locatorCacheTimeout }
func (r *Reference) EndpointSelection() EndpointSelection { return r.endpointSelection }
func (r *Reference) Secure() bool                  { return r.secure }
func (r *Reference) CollocationOptimized() bool    { return r.collocationOptimized }

func (r *Reference) Endpoints() []Endpoint {
	return append([]Endpoint(nil), r.endpoints...)
}

func (r *Reference) Context() map[string]string {
	return copyContext(r.context)
}

// IsIndirect reports whether this reference must be resolved through a
// locator (it carries an adapter id rather than a fixed endpoint list).
func (r *Reference) IsIndirect() bool { return r.adapterID != "" }

// clone returns a shallow copy of r for a With* derivation to mutate before
// returning — Reference's own fields are all either immutable values or
// already-defensively-copied slices/maps, so a shallow copy is safe as long
// as the derivation only ever replaces whole fields, never mutates into
// the parent's backing array/map.
func (r *Reference) clone() *Reference {
	cp := *r
	cp.endpoints = append([]Endpoint(nil), r.endpoints...)
	cp.context = copyContext(r.context)
	return &cp
}

func (r *Reference) WithContext(ctx map[string]string) *Reference {
	cp := r.clone()
	cp.context = copyContext(ctx)
	return cp
}

func (r *Reference) WithInvocationTimeout(d time.Duration) *Reference {
	cp := r.clone()
	cp.invocationTimeout = d
	return cp
}

func (r *Reference) WithEndpoints(eps []Endpoint) *Reference {
	cp := r.clone()
	cp.endpoints = append([]Endpoint(nil), eps...)
	cp.adapterID = ""
	return cp
}

func (r *Reference) WithAdapterID(id string) *Reference {
	cp := r.clone()
	cp.adapterID = id
	cp.endpoints = nil
	return cp
}

func (r *Reference) WithFacet(facet string) *Reference {
	cp := r.clone()
	cp.facet = facet
	return cp
}

func (r *Reference) WithMode(mode InvocationMode) *Reference {
	cp := r.clone()
	cp.mode = mode
	return cp
}

func (r *Reference) WithEncoding(v Version) *Reference {
	cp := r.clone()
	cp.encoding = v
	return cp
}

func (r *Reference) WithSecure(secure bool) *Reference {
	cp := r.clone()
	cp.secure = secure
	return cp
}

func (r *Reference) WithCompress(compress bool) *Reference {
	cp := r.clone()
	cp.compress = compress
	return cp
}

func (r *Reference) WithRouter(router *Reference) *Reference {
	cp := r.clone()
	cp.router = router
	return cp
}

func (r *Reference) WithLocator(locator *Reference) *Reference {
	cp := r.clone()
	cp.locator = locator
	return cp
}

// Key returns a deterministic string that two References produce
// identically if and only if they address the same connection target —
// used by pkg/requesthandler.Cache as the key that collapses its concurrent
// dials. It deliberately excludes fields that don't affect which
// connection serves the request (Context, per-call timeouts, facet).
func (r *Reference) Key() string {
	var b strings.Builder
	b.WriteString(r.identity.String())
	b.WriteByte('|')
	b.WriteString(r.mode.String())
	b.WriteByte('|')
	b.WriteString(r.protocol.String())
	b.WriteByte('|')
	if r.adapterID != "" {
		b.WriteString("adapter:")
		b.WriteString(r.adapterID)
	} else {
		eps := Endpoints(r.endpoints)
		eps.sortForKey()
		for i, ep := range eps {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(ep.key())
		}
	}
	b.WriteByte('|')
	if r.secure {
		b.WriteByte('s')
	}
	return b.String()
}

// Equal reports whether r and other describe the same object reachable the
// same way, field for field.
func (r *Reference) Equal(other *Reference) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.identity != other.identity ||
		r.facet != other.facet ||
		r.mode != other.mode ||
		r.protocol != other.protocol ||
		r.encoding != other.encoding ||
		r.adapterID != other.adapterID ||
		r.compress != other.compress ||
		r.invocationTimeout != other.invocationTimeout ||
		r.locatorCacheTimeout != other.locatorCacheTimeout ||
		r.endpointSelection != other.endpointSelection ||
		r.secure != other.secure ||
		r.collocationOptimized != other.collocationOptimized {
		return false
	}
	if len(r.endpoints) != len(other.endpoints) {
		return false
	}
	for i := range r.endpoints {
		if r.endpoints[i] != other.endpoints[i] {
			return false
		}
	}
	if len(r.context) != len(other.context) {
		return false
	}
	for k, v := range r.context {
		if other.context[k] != v {
			return false
		}
	}
	return true
}
