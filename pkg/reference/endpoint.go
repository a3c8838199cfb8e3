package reference

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies an endpoint's transport.
type Kind uint8

const (
	TCP Kind = iota
	UDP
	WS
)

func (k Kind) String() string {
	switch k {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	case WS:
		return "ws"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Endpoint is one transport-level address a reference's object might be
// reachable at. TypeTag is the endpoint-factory registration key used when
// an endpoint kind outside the three built-ins is registered with a
// Communicator; nothing in this package sets it, so for TCP/UDP/WS it is
// zero.
type Endpoint struct {
	Kind       Kind
	TypeTag    uint16
	Host       string
	Port       uint16
	SourceAddr string
	Timeout    time.Duration
	Compress   bool
}

func (e Endpoint) key() string {
	return fmt.Sprintf("%s:%s:%d", e.Kind, e.Host, e.Port)
}

// String renders an endpoint in the stringified reference grammar's
// endpoint-spec form, e.g. "tcp -h host -p 4061 -t 5000".
func (e Endpoint) String() string {
	s := fmt.Sprintf("%s -h %s -p %d", e.Kind, e.Host, e.Port)
	if e.SourceAddr != "" {
		s += fmt.Sprintf(" -sourceAddr %s", e.SourceAddr)
	}
	if e.Timeout > 0 {
		s += fmt.Sprintf(" -t %d", e.Timeout.Milliseconds())
	}
	if e.Compress {
		s += " -z"
	}
	return s
}

// Endpoints is a slice of Endpoint with a deterministic ordering on
// (Kind, Host, Port), used when EndpointSelection is Ordered.
type Endpoints []Endpoint

func (e Endpoints) Len() int      { return len(e) }
func (e Endpoints) Swap(i, j int) { e[i], e[j] = e[j], e[i] }
func (e Endpoints) Less(i, j int) bool {
	if e[i].Kind != e[j].Kind {
		return e[i].Kind < e[j].Kind
	}
	if e[i].Host != e[j].Host {
		return e[i].Host < e[j].Host
	}
	return e[i].Port < e[j].Port
}

func (e Endpoints) sortForKey() { sort.Sort(e) }

// Sort reorders e in place per Endpoints' (Kind, Host, Port) ordering,
// used by pkg/communicator's dial when EndpointSelection is Ordered.
func (e Endpoints) Sort() { sort.Sort(e) }
