package servant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/identity"
)

type nopServant struct{}

func (nopServant) Dispatch(ctx context.Context, current Current, params *wire.EncapsulationView) (Result, error) {
	return Result{}, nil
}

func TestAddFindRoundTrip(t *testing.T) {
	m := NewMap()
	id, err := identity.New("widgets", "alpha")
	require.NoError(t, err)

	s := nopServant{}
	require.NoError(t, m.Add(id, "", s))
	assert.Equal(t, s, m.Find(id, ""))
	assert.Nil(t, m.Find(id, "other-facet"))
}

func TestAddRejectsDuplicateIdentityFacet(t *testing.T) {
	m := NewMap()
	id, err := identity.New("", "obj")
	require.NoError(t, err)

	require.NoError(t, m.Add(id, "", nopServant{}))
	err = m.Add(id, "", nopServant{})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestAddRejectsNilServant(t *testing.T) {
	m := NewMap()
	id, err := identity.New("", "obj")
	require.NoError(t, err)
	assert.Error(t, m.Add(id, "", nil))
}

func TestRemoveReturnsPreviousServant(t *testing.T) {
	m := NewMap()
	id, err := identity.New("", "obj")
	require.NoError(t, err)
	s := nopServant{}
	require.NoError(t, m.Add(id, "", s))

	removed := m.Remove(id, "")
	assert.Equal(t, s, removed)
	assert.Nil(t, m.Find(id, ""))
	assert.Nil(t, m.Remove(id, ""))
}

func TestFacetNamesListsAllFacetsForIdentity(t *testing.T) {
	m := NewMap()
	id, err := identity.New("", "obj")
	require.NoError(t, err)
	other, err := identity.New("", "other")
	require.NoError(t, err)

	require.NoError(t, m.Add(id, "", nopServant{}))
	require.NoError(t, m.Add(id, "stats", nopServant{}))
	require.NoError(t, m.Add(other, "", nopServant{}))

	facets := m.FacetNames(id)
	assert.ElementsMatch(t, []string{"", "stats"}, facets)
}

func TestRemoveAllClearsEveryFacetOfIdentity(t *testing.T) {
	m := NewMap()
	id, err := identity.New("", "obj")
	require.NoError(t, err)
	other, err := identity.New("", "other")
	require.NoError(t, err)

	require.NoError(t, m.Add(id, "", nopServant{}))
	require.NoError(t, m.Add(id, "stats", nopServant{}))
	require.NoError(t, m.Add(other, "", nopServant{}))

	n := m.RemoveAll(id)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m.Len())
	assert.Nil(t, m.Find(id, "stats"))
	assert.NotNil(t, m.Find(other, ""))
}

func TestErrAlreadyRegisteredIsAlreadyRegisteredKind(t *testing.T) {
	assert.True(t, frosterr.Of(ErrAlreadyRegistered, frosterr.KindAlreadyRegistered))
}
