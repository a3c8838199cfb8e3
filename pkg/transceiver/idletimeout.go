package transceiver

import (
	"net"
	"sync"
	"time"

	"github.com/frostrpc/frost/pkg/frosterr"
)

// IdleTimeout wraps a Transceiver with ACM/Connection.IdleTimeout behavior:
// a heartbeat write fires at idleTimeout/2 so an otherwise-silent
// connection still looks alive to any middlebox, and a connection that has
// seen no successful read for a full idleTimeout is failed with
// ConnectionIdle. The heartbeat ticker fires on its own schedule,
// independent of request traffic.
type IdleTimeout struct {
	inner       Transceiver
	idleTimeout time.Duration
	heartbeat   func() error

	mu       sync.Mutex
	lastRead time.Time
	timer    *time.Timer
	stopped  bool
}

// NewIdleTimeout wraps inner. heartbeat is invoked from the timer
// goroutine at idleTimeout/2 intervals to produce wire traffic (the
// connection's own validate-connection message) that resets the peer's
// idle clock without involving application data.
func NewIdleTimeout(inner Transceiver, idleTimeout time.Duration, heartbeat func() error) *IdleTimeout {
	it := &IdleTimeout{
		inner:       inner,
		idleTimeout: idleTimeout,
		heartbeat:   heartbeat,
		lastRead:    time.Now(),
	}
	if idleTimeout > 0 {
		it.timer = time.AfterFunc(idleTimeout/2, it.tick)
	}
	return it
}

func (it *IdleTimeout) tick() {
	it.mu.Lock()
	if it.stopped {
		it.mu.Unlock()
		return
	}
	silence := time.Since(it.lastRead)
	it.mu.Unlock()

	if silence >= it.idleTimeout {
		// The connection state machine notices ConnectionIdle on its next
		// Read call; there is nothing more for the timer itself to do.
		return
	}
	if it.heartbeat != nil {
		_ = it.heartbeat() // a heartbeat write failure is swallowed here; it never kills the connection directly
	}

	it.mu.Lock()
	if !it.stopped {
		it.timer = time.AfterFunc(it.idleTimeout/2, it.tick)
	}
	it.mu.Unlock()
}

func (it *IdleTimeout) Initialize() (SocketOp, error) { return it.inner.Initialize() }

func (it *IdleTimeout) Read(buf []byte) (int, SocketOp, error) {
	n, op, err := it.inner.Read(buf)
	if err != nil {
		return n, op, err
	}
	if n > 0 {
		it.mu.Lock()
		it.lastRead = time.Now()
		it.mu.Unlock()
	} else if it.idleTimeout > 0 {
		it.mu.Lock()
		silence := time.Since(it.lastRead)
		it.mu.Unlock()
		if silence >= it.idleTimeout {
			return n, OpNone, frosterr.New(frosterr.KindConnectionIdle, "no read activity for %s", it.idleTimeout)
		}
	}
	return n, op, nil
}

func (it *IdleTimeout) Write(buf []byte) (int, SocketOp, error) { return it.inner.Write(buf) }

func (it *IdleTimeout) Closing(initiator bool, cause error) error {
	return it.inner.Closing(initiator, cause)
}

func (it *IdleTimeout) Close() error {
	it.mu.Lock()
	it.stopped = true
	if it.timer != nil {
		it.timer.Stop()
	}
	it.mu.Unlock()
	return it.inner.Close()
}

func (it *IdleTimeout) NativeHandle() net.Conn { return it.inner.NativeHandle() }

func (it *IdleTimeout) Protocol() string { return it.inner.Protocol() }

func (it *IdleTimeout) String() string { return it.inner.String() }

func (it *IdleTimeout) Info() Info { return it.inner.Info() }
