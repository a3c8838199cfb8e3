package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/servant"
)

type blobServant struct{ value []byte }

func (b *blobServant) Dispatch(ctx context.Context, current servant.Current, params *wire.EncapsulationView) (servant.Result, error) {
	return servant.Result{Body: b.value}, nil
}

func TestLocatePersistedIdentityActivatesServant(t *testing.T) {
	loc, err := Open(t.TempDir(), func(ctx context.Context, current servant.Current, value []byte) (servant.Servant, error) {
		return &blobServant{value: value}, nil
	})
	require.NoError(t, err)
	defer loc.Close()

	id, err := identity.New("widgets", "alpha")
	require.NoError(t, err)
	require.NoError(t, loc.Put(id, []byte("payload")))

	s, cookie, err := loc.Locate(context.Background(), servant.Current{Identity: id})
	require.NoError(t, err)
	assert.Nil(t, cookie)
	require.NotNil(t, s)

	result, err := s.Dispatch(context.Background(), servant.Current{Identity: id}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), result.Body)
}

func TestLocateMissingIdentityFallsThrough(t *testing.T) {
	loc, err := Open(t.TempDir(), func(ctx context.Context, current servant.Current, value []byte) (servant.Servant, error) {
		return &blobServant{value: value}, nil
	})
	require.NoError(t, err)
	defer loc.Close()

	id, err := identity.New("", "missing")
	require.NoError(t, err)
	s, cookie, err := loc.Locate(context.Background(), servant.Current{Identity: id})
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Nil(t, cookie)
}

func TestDeleteRemovesRecord(t *testing.T) {
	loc, err := Open(t.TempDir(), func(ctx context.Context, current servant.Current, value []byte) (servant.Servant, error) {
		return &blobServant{value: value}, nil
	})
	require.NoError(t, err)
	defer loc.Close()

	id, err := identity.New("", "gamma")
	require.NoError(t, err)
	require.NoError(t, loc.Put(id, []byte("x")))
	require.NoError(t, loc.Delete(id))

	s, _, err := loc.Locate(context.Background(), servant.Current{Identity: id})
	require.NoError(t, err)
	assert.Nil(t, s)
}
