package reference

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/frostrpc/frost/pkg/identity"
)

// ParseString parses the stringified reference grammar:
//
//	identity [facet] [-t|-o|-O|-d|-D] [-s] [endpoints | @adapterId]
//
// Identity uses "category/name"; '/' and non-printables within a component
// are backslash-escaped. Endpoints are colon-separated endpoint specs of
// the form "kind -h host -p port [-sourceAddr addr] [-t timeoutMs] [-z]".
func ParseString(s string) (*Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("reference: ParseError: empty reference string")
	}

	head, tail, tailKind := splitHeadTail(s)

	tokens := splitUnescapedSpace(head)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("reference: ParseError: missing identity in %q", s)
	}
	id, err := parseIdentityToken(tokens[0])
	if err != nil {
		return nil, err
	}

	opts := Options{Mode: Twoway}
	facetSeen := false
	for _, tok := range tokens[1:] {
		switch tok {
		case "-t":
			opts.Mode = Twoway
		case "-o":
			opts.Mode = Oneway
		case "-O":
			opts.Mode = BatchOneway
		case "-d":
			opts.Mode = Datagram
		case "-D":
			opts.Mode = BatchDatagram
		case "-s":
			opts.Secure = true
		default:
			if facetSeen {
				return nil, fmt.Errorf("reference: ParseError: unexpected token %q in %q", tok, s)
			}
			opts.Facet = unescape(tok)
			facetSeen = true
		}
	}

	switch tailKind {
	case tailAdapterID:
		opts.AdapterID = tail
	case tailEndpoints:
		eps, err := parseEndpoints(tail)
		if err != nil {
			return nil, err
		}
		opts.Endpoints = eps
	}

	return New(id, opts)
}

type tailKind int

const (
	tailNone tailKind = iota
	tailEndpoints
	tailAdapterID
)

// splitHeadTail separates the identity/facet/mode portion from a trailing
// endpoint list or "@adapterId", whichever (if either) comes first at the
// top level.
func splitHeadTail(s string) (head, tail string, kind tailKind) {
	for i, r := range s {
		switch r {
		case '@':
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), tailAdapterID
		case ':':
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), tailEndpoints
		}
	}
	return s, "", tailNone
}

func splitUnescapedSpace(s string) []string {
	var tokens []string
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
		case r == ' ' || r == '\t':
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func parseIdentityToken(tok string) (identity.Identity, error) {
	parts := splitUnescapedSlash(tok)
	switch len(parts) {
	case 1:
		return identity.New("", unescape(parts[0]))
	case 2:
		return identity.New(unescape(parts[0]), unescape(parts[1]))
	default:
		return identity.Identity{}, fmt.Errorf("reference: ParseError: malformed identity %q", tok)
	}
}

func splitUnescapedSlash(s string) []string {
	var parts []string
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			cur.WriteRune(r)
			escaped = true
		case r == '/':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

func unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func parseEndpoints(tail string) ([]Endpoint, error) {
	specs := strings.Split(tail, ":")
	eps := make([]Endpoint, 0, len(specs))
	for _, spec := range specs {
		ep, err := parseEndpointSpec(strings.TrimSpace(spec))
		if err != nil {
			return nil, err
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

func parseEndpointSpec(spec string) (Endpoint, error) {
	tokens := splitUnescapedSpace(spec)
	if len(tokens) == 0 {
		return Endpoint{}, fmt.Errorf("reference: ParseError: empty endpoint spec")
	}
	var ep Endpoint
	switch tokens[0] {
	case "tcp":
		ep.Kind = TCP
	case "udp":
		ep.Kind = UDP
	case "ws":
		ep.Kind = WS
	default:
		return Endpoint{}, fmt.Errorf("reference: ParseError: unknown endpoint kind %q", tokens[0])
	}

	for i := 1; i < len(tokens); i++ {
		switch tokens[i] {
		case "-h":
			i++
			if i >= len(tokens) {
				return Endpoint{}, fmt.Errorf("reference: ParseError: -h requires a host")
			}
			ep.Host = tokens[i]
		case "-p":
			i++
			if i >= len(tokens) {
				return Endpoint{}, fmt.Errorf("reference: ParseError: -p requires a port")
			}
			port, err := strconv.ParseUint(tokens[i], 10, 16)
			if err != nil {
				return Endpoint{}, fmt.Errorf("reference: ParseError: invalid port %q: %w", tokens[i], err)
			}
			ep.Port = uint16(port)
		case "-sourceAddr":
			i++
			if i >= len(tokens) {
				return Endpoint{}, fmt.Errorf("reference: ParseError: -sourceAddr requires a value")
			}
			ep.SourceAddr = tokens[i]
		case "-t":
			i++
			if i >= len(tokens) {
				return Endpoint{}, fmt.Errorf("reference: ParseError: -t requires a value")
			}
			ms, err := strconv.Atoi(tokens[i])
			if err != nil {
				return Endpoint{}, fmt.Errorf("reference: ParseError: invalid timeout %q: %w", tokens[i], err)
			}
			ep.Timeout = time.Duration(ms) * time.Millisecond
		case "-z":
			ep.Compress = true
		default:
			return Endpoint{}, fmt.Errorf("reference: ParseError: unknown endpoint option %q", tokens[i])
		}
	}
	return ep, nil
}

// String renders r in the stringified reference grammar, explicit about
// invocation mode even when it is the default twoway — matching the
// runtime's own proxyToString output rather than eliding it, so two
// references that differ only in which flags were spelled out still
// stringify identically.
func (r *Reference) String() string {
	var b strings.Builder
	b.WriteString(escapeIdentityComponent(r.identity.Category))
	if r.identity.Category != "" {
		b.WriteByte('/')
	}
	b.WriteString(escapeIdentityComponent(r.identity.Name))

	if r.facet != "" {
		b.WriteByte(' ')
		b.WriteString(escapeIdentityComponent(r.facet))
	}

	b.WriteByte(' ')
	switch r.mode {
	case Twoway:
		b.WriteString("-t")
	case Oneway:
		b.WriteString("-o")
	case BatchOneway:
		b.WriteString("-O")
	case Datagram:
		b.WriteString("-d")
	case BatchDatagram:
		b.WriteString("-D")
	}
	if r.secure {
		b.WriteString(" -s")
	}

	if r.adapterID != "" {
		b.WriteByte('@')
		b.WriteString(r.adapterID)
	} else if len(r.endpoints) > 0 {
		b.WriteByte(':')
		for i, ep := range r.endpoints {
			if i > 0 {
				b.WriteByte(':')
			}
			b.WriteString(ep.String())
		}
	}
	return b.String()
}

func escapeIdentityComponent(s string) string {
	if !strings.ContainsAny(s, "/\\ \t") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '/', '\\', ' ', '\t':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
