// Package transceiver adapts a raw network connection to the contract the
// connection state machine (pkg/connection) depends on: an object that can
// be read from and written to without blocking forever, and that reports
// which direction it still wants to make progress in.
package transceiver

import (
	"net"
)

// SocketOp reports which direction of I/O a Transceiver still needs to
// make progress, so the reactor knows what to wait for next.
type SocketOp uint8

const (
	OpNone SocketOp = iota
	OpRead
	OpWrite
)

func (op SocketOp) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "none"
	}
}

// Info describes a transceiver's endpoints and transport, surfaced through
// a connection's diagnostics (frostctl's "connection ls").
type Info struct {
	Transport  string
	LocalAddr  string
	RemoteAddr string
	Compress   bool
}

// Transceiver is the minimal contract a concrete transport (tcp.go) and
// its decorators (idletimeout.go, tls.go) must satisfy. Read and Write are
// non-blocking in the sense that they never block longer than their own
// configured deadline; a deadline expiry is reported as OpRead/OpWrite so
// the caller knows to retry once the reactor says the socket is ready
// again, rather than as an error.
type Transceiver interface {
	// Initialize performs any handshake needed before the connection is
	// usable (e.g. TLS). Returns OpNone once complete, or OpRead/OpWrite
	// if more I/O is needed before Initialize can finish.
	Initialize() (SocketOp, error)

	// Read fills buf as far as one call can without blocking past the
	// transceiver's read deadline. n is the number of bytes this call read;
	// op is OpRead if the deadline expired (the caller should wait and call
	// again) and OpNone otherwise, which does not imply buf is full.
	Read(buf []byte) (n int, op SocketOp, err error)

	// Write sends buf, returning similarly to Read.
	Write(buf []byte) (n int, op SocketOp, err error)

	// Closing begins a graceful shutdown; initiator is true when this end
	// started it (vs. reacting to a peer's close-connection message).
	Closing(initiator bool, cause error) error

	// Close releases the underlying resource immediately.
	Close() error

	// NativeHandle exposes the underlying net.Conn for registration with
	// the reactor's readiness notifier.
	NativeHandle() net.Conn

	// Protocol names the wire protocol this transceiver carries ("frost"
	// for the TCP transport, "frosts" for TLS; IdleTimeout passes its inner
	// transceiver's value through).
	Protocol() string

	String() string

	Info() Info
}
