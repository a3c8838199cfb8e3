package transceiver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPReadWriteRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ct := NewTCP(client, false)
	st := NewTCP(server, false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n, op, err := st.Write([]byte("hello"))
		require.NoError(t, err)
		assert.Equal(t, OpNone, op)
		assert.Equal(t, 5, n)
	}()

	buf := make([]byte, 5)
	var total int
	for total < len(buf) {
		n, op, err := ct.Read(buf[total:])
		require.NoError(t, err)
		total += n
		if op == OpRead && n == 0 {
			continue
		}
	}
	assert.Equal(t, "hello", string(buf))
	<-done
}

func TestTCPInfoReportsEndpoints(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ct := NewTCP(client, true)
	info := ct.Info()
	assert.Equal(t, "tcp", info.Transport)
	assert.True(t, info.Compress)
}

func TestIdleTimeoutFailsAfterSilence(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	ct := NewTCP(client, false)
	it := NewIdleTimeout(ct, 50*time.Millisecond, func() error { return nil })
	defer it.Close()

	time.Sleep(120 * time.Millisecond)
	buf := make([]byte, 1)
	_, _, err := it.Read(buf)
	require.Error(t, err)
}
