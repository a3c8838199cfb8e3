package adapter

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/connection"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/reactor"
	"github.com/frostrpc/frost/pkg/servant"
)

type nopServant struct{}

func (nopServant) Dispatch(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
	return servant.Result{}, nil
}

type echoDispatcher struct{}

func (echoDispatcher) Dispatch(ctx context.Context, conn *connection.Connection, req *connection.Request) *connection.Reply {
	if req.RequestID == 0 {
		return nil
	}
	return &connection.Reply{RequestID: req.RequestID, Status: frosterr.StatusOK}
}

type stubLocator struct {
	s      servant.Servant
	cookie any
	err    error
	finished int
}

func (l *stubLocator) Locate(ctx context.Context, current servant.Current) (servant.Servant, any, error) {
	return l.s, l.cookie, l.err
}
func (l *stubLocator) Finished(ctx context.Context, current servant.Current, s servant.Servant, cookie any) {
	l.finished++
}

func newAdapter() *Adapter {
	pool := reactor.New(reactor.Config{Name: "test", Size: 4})
	return New("test-adapter", pool, echoDispatcher{}, Options{Protocol: "tcp"})
}

func TestLocateFindsDirectlyRegisteredServant(t *testing.T) {
	a := newAdapter()
	id, err := identity.New("", "obj")
	require.NoError(t, err)
	s := nopServant{}
	require.NoError(t, a.AddServant(servant.Current{Identity: id}, s))

	found, finish, err := a.Locate(context.Background(), servant.Current{Identity: id})
	require.NoError(t, err)
	require.NotNil(t, finish)
	assert.Equal(t, s, found)
}

func TestLocateFallsBackToCategoryLocator(t *testing.T) {
	a := newAdapter()
	loc := &stubLocator{s: nopServant{}}
	a.RegisterLocator("widgets", loc)

	id, err := identity.New("widgets", "alpha")
	require.NoError(t, err)

	found, finish, err := a.Locate(context.Background(), servant.Current{Identity: id})
	require.NoError(t, err)
	require.NotNil(t, found)
	finish()
	assert.Equal(t, 1, loc.finished)
}

func TestLocateFallsBackToDefaultLocatorWhenNoCategoryMatch(t *testing.T) {
	a := newAdapter()
	def := &stubLocator{s: nopServant{}}
	a.RegisterDefaultLocator(def)

	id, err := identity.New("unregistered-category", "alpha")
	require.NoError(t, err)

	found, finish, err := a.Locate(context.Background(), servant.Current{Identity: id})
	require.NoError(t, err)
	require.NotNil(t, found)
	finish()
	assert.Equal(t, 1, def.finished)
}

func TestLocateReturnsObjectNotExistWhenNothingMatches(t *testing.T) {
	a := newAdapter()
	id, err := identity.New("", "missing")
	require.NoError(t, err)

	_, _, err = a.Locate(context.Background(), servant.Current{Identity: id})
	require.Error(t, err)
	assert.True(t, frosterr.Of(err, frosterr.KindObjectNotExist))
}

func TestLocateReturnsFacetNotExistWhenIdentityHasOtherFacets(t *testing.T) {
	a := newAdapter()
	id, err := identity.New("", "obj")
	require.NoError(t, err)
	require.NoError(t, a.AddServant(servant.Current{Identity: id, Facet: "stats"}, nopServant{}))

	_, _, err = a.Locate(context.Background(), servant.Current{Identity: id, Facet: "missing-facet"})
	require.Error(t, err)
	assert.True(t, frosterr.Of(err, frosterr.KindFacetNotExist))
}

func TestHoldAndActivateTransitionState(t *testing.T) {
	a := newAdapter()
	a.Hold()
	assert.Equal(t, StateHeld, a.State())
	a.Activate()
	assert.Equal(t, StateActive, a.State())
}

func TestServeAcceptsConnectionsAndDeactivateClosesThem(t *testing.T) {
	a := newAdapter()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		a.connMu.Lock()
		defer a.connMu.Unlock()
		return len(a.conns) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, a.Deactivate(context.Background()))
	assert.Equal(t, StateDeactivated, a.State())
}

func TestMapErrorMapsProtocolErrorStatus(t *testing.T) {
	err := frosterr.New(frosterr.KindObjectNotExist, "missing")
	assert.Equal(t, frosterr.StatusObjectNotExist, MapError(err))
}

func TestMapErrorFallsBackToUnknown(t *testing.T) {
	assert.Equal(t, frosterr.StatusUnknown, MapError(assertPlainError{}))
}

type assertPlainError struct{}

func (assertPlainError) Error() string { return "plain" }
