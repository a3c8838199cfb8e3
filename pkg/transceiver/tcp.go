package transceiver

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/frostrpc/frost/pkg/frosterr"
)

// pollInterval bounds how long a single Read/Write deadline waits before
// reporting back to the reactor, mirroring the base adapter's
// interruptBlockingReads idiom of never blocking a goroutine forever on a
// socket call so a shutdown request can always make progress.
const pollInterval = 200 * time.Millisecond

// TCP is the one concrete Transceiver implementation built on net.Conn.
// It does not itself dial or listen — pkg/reactor.Listener owns accepting
// connections and pkg/communicator owns dialing outgoing ones; TCP only
// wraps the resulting net.Conn.
type TCP struct {
	conn     net.Conn
	compress bool
	closing  bool
}

// NewTCP wraps an already-connected net.Conn.
func NewTCP(conn net.Conn, compress bool) *TCP {
	return &TCP{conn: conn, compress: compress}
}

func (t *TCP) Initialize() (SocketOp, error) { return OpNone, nil }

func (t *TCP) Read(buf []byte) (int, SocketOp, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, OpNone, frosterr.Wrap(frosterr.KindSocketError, err, "tcp: set read deadline")
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

func (t *TCP) Write(buf []byte) (int, SocketOp, error) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, OpNone, frosterr.Wrap(frosterr.KindSocketError, err, "tcp: set write deadline")
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

func (t *TCP) Closing(initiator bool, cause error) error {
	t.closing = true
	return nil
}

func (t *TCP) Close() error {
	return t.conn.Close()
}

func (t *TCP) NativeHandle() net.Conn { return t.conn }

func (t *TCP) Protocol() string { return "frost" }

func (t *TCP) String() string {
	return fmt.Sprintf("tcp %s <-> %s", t.conn.LocalAddr(), t.conn.RemoteAddr())
}

func (t *TCP) Info() Info {
	return Info{
		Transport:  "tcp",
		LocalAddr:  t.conn.LocalAddr().String(),
		RemoteAddr: t.conn.RemoteAddr().String(),
		Compress:   t.compress,
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyNetError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return frosterr.Wrap(frosterr.KindConnectionIdle, err, "tcp: deadline exceeded")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return frosterr.Wrap(frosterr.KindConnectionLost, err, "tcp: connection lost")
	}
	return frosterr.Wrap(frosterr.KindSocketError, err, "tcp: socket error")
}
