//go:build !notls

package transceiver

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/frostrpc/frost/pkg/frosterr"
)

// TLSTransceiver wraps a Transceiver's underlying net.Conn in a
// *tls.Conn. It does not manage certificates or trust policy — the
// caller supplies an already-configured *tls.Config (secure-transport
// policy itself is a declared non-goal); this decorator only adapts the
// handshake into the Transceiver.Initialize contract.
type TLSTransceiver struct {
	conn     *tls.Conn
	compress bool
}

// NewTLSClient wraps conn (already dialed) as a TLS client using cfg.
func NewTLSClient(conn net.Conn, cfg *tls.Config, compress bool) *TLSTransceiver {
	return &TLSTransceiver{conn: tls.Client(conn, cfg), compress: compress}
}

// NewTLSServer wraps conn (already accepted) as a TLS server using cfg.
func NewTLSServer(conn net.Conn, cfg *tls.Config, compress bool) *TLSTransceiver {
	return &TLSTransceiver{conn: tls.Server(conn, cfg), compress: compress}
}

func (t *TLSTransceiver) Initialize() (SocketOp, error) {
	if err := t.conn.Handshake(); err != nil {
		return OpNone, frosterr.Wrap(frosterr.KindSocketError, err, "tls: handshake failed")
	}
	return OpNone, nil
}

func (t *TLSTransceiver) Read(buf []byte) (int, SocketOp, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, OpNone, frosterr.Wrap(frosterr.KindSocketError, err, "tls: set read deadline")
	}
	n, err := t.conn.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return n, OpRead, nil
		}
		return n, OpNone, classifyNetError(err)
	}
	return n, OpNone, nil
}

func (t *TLSTransceiver) Write(buf []byte) (int, SocketOp, error) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, OpNone, frosterr.Wrap(frosterr.KindSocketError, err, "tls: set write deadline")
	}
	n, err := t.conn.Write(buf)
	if err != nil {
		if isTimeout(err) {
			return n, OpWrite, nil
		}
		return n, OpNone, classifyNetError(err)
	}
	return n, OpNone, nil
}

func (t *TLSTransceiver) Closing(initiator bool, cause error) error { return nil }

func (t *TLSTransceiver) Close() error { return t.conn.Close() }

func (t *TLSTransceiver) NativeHandle() net.Conn { return t.conn }

func (t *TLSTransceiver) Protocol() string { return "frosts" }

func (t *TLSTransceiver) String() string {
	return "tls " + t.conn.LocalAddr().String() + " <-> " + t.conn.RemoteAddr().String()
}

func (t *TLSTransceiver) Info() Info {
	return Info{
		Transport:  "tls",
		LocalAddr:  t.conn.LocalAddr().String(),
		RemoteAddr: t.conn.RemoteAddr().String(),
		Compress:   t.compress,
	}
}
