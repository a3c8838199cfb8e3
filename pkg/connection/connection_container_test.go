//go:build integration

package connection

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/frostrpc/frost/pkg/transceiver"
)

// TestHandshakeNeverCompletesAgainstNonFrostPeer dials a real containerized
// TCP listener that speaks no part of the wire protocol, and checks two
// things a net.Pipe pair can't: the handshake genuinely blocks forever
// against a peer that never sends ValidateConnection (rather than an
// artifact of an in-process mock), and killing the peer surfaces as a real
// socket error through the same abort path a dropped production connection
// takes.
func TestHandshakeNeverCompletesAgainstNonFrostPeer(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "alpine/socat:1.7.4.4",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"-d", "-d", "TCP-LISTEN:9000,fork,reuseaddr", "-"},
		WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%s", host, port.Port()))
	require.NoError(t, err)

	finished := make(chan error, 1)
	c := New("container-peer", transceiver.NewTCP(conn, false), Options{
		Outgoing:   true,
		OnFinished: func(_ *Connection, err error) { finished <- err },
	})
	go func() {
		c.Run(context.Background())
		c.Finished(false)
	}()

	// No ValidateConnection is ever sent by a bare socat listener, so the
	// handshake should still be stuck in NotValidated well after a real
	// frost peer would have reached Active.
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, StateNotValidated, c.State())

	_ = container.Terminate(ctx)

	select {
	case err := <-finished:
		require.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("connection never finished after its peer container was killed")
	}
}
