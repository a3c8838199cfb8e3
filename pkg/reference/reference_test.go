package reference

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/frostrpc/frost/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringRoundTripLiteral(t *testing.T) {
	input := "MyCategory/MyObject:tcp -h 127.0.0.1 -p 10000"
	ref, err := ParseString(input)
	require.NoError(t, err)

	assert.Equal(t, "MyCategory", ref.Identity().Category)
	assert.Equal(t, "MyObject", ref.Identity().Name)
	assert.Equal(t, Twoway, ref.Mode())
	require.Len(t, ref.Endpoints(), 1)
	ep := ref.Endpoints()[0]
	assert.Equal(t, TCP, ep.Kind)
	assert.Equal(t, "127.0.0.1", ep.Host)
	assert.Equal(t, uint16(10000), ep.Port)

	assert.Equal(t, "MyCategory/MyObject -t:tcp -h 127.0.0.1 -p 10000", ref.String())
}

func TestParseStringAdapterID(t *testing.T) {
	ref, err := ParseString("printers/hp -o@PrintAdapter")
	require.NoError(t, err)
	assert.Equal(t, Oneway, ref.Mode())
	assert.True(t, ref.IsIndirect())
	assert.Equal(t, "PrintAdapter", ref.AdapterID())
}

func TestNewRejectsEndpointsAndAdapterID(t *testing.T) {
	id, err := identity.New("cat", "obj")
	require.NoError(t, err)
	_, err = New(id, Options{
		Endpoints: []Endpoint{{Kind: TCP, Host: "h", Port: 1}},
		AdapterID: "adapter",
	})
	require.ErrorIs(t, err, ErrEndpointsAndAdapterID)
}

func TestKeyIgnoresContextAndTimeout(t *testing.T) {
	base, err := ParseString("cat/obj:tcp -h host -p 1")
	require.NoError(t, err)

	a := base.WithContext(map[string]string{"k": "v"})
	b := base.WithInvocationTimeout(1234).WithContext(map[string]string{"other": "x"})
	assert.Equal(t, a.Key(), b.Key())
}

func TestKeyDiffersOnEndpoint(t *testing.T) {
	a, err := ParseString("cat/obj:tcp -h host1 -p 1")
	require.NoError(t, err)
	b, err := ParseString("cat/obj:tcp -h host2 -p 1")
	require.NoError(t, err)
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestEqual(t *testing.T) {
	a, err := ParseString("cat/obj:tcp -h host -p 1")
	require.NoError(t, err)
	b, err := ParseString("cat/obj:tcp -h host -p 1")
	require.NoError(t, err)
	c, err := ParseString("cat/obj:tcp -h host -p 2")
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestWithDerivationsShareNothingMutable(t *testing.T) {
	base, err := ParseString("cat/obj:tcp -h host -p 1")
	require.NoError(t, err)
	derived := base.WithEndpoints([]Endpoint{{Kind: UDP, Host: "other", Port: 2}})

	assert.Equal(t, TCP, base.Endpoints()[0].Kind)
	assert.Equal(t, UDP, derived.Endpoints()[0].Kind)
}

// TestRoundTripProperty exercises the round-trip invariant
// "proxyToString(stringToProxy(s)) parses back to an equal reference" over
// a batch of randomly generated references, hand-rolled since nothing here
// pulls in a property-testing library.
func TestRoundTripProperty(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	kinds := []Kind{TCP, UDP, WS}
	modes := []InvocationMode{Twoway, Oneway, BatchOneway, Datagram, BatchDatagram}

	for i := 0; i < 200; i++ {
		category := fmt.Sprintf("cat%d", rnd.Intn(5))
		name := fmt.Sprintf("obj%d", rnd.Intn(50))
		mode := modes[rnd.Intn(len(modes))]
		kind := kinds[rnd.Intn(len(kinds))]
		host := fmt.Sprintf("10.0.%d.%d", rnd.Intn(256), rnd.Intn(256))
		port := uint16(1 + rnd.Intn(65534))

		id, err := identity.New(category, name)
		require.NoError(t, err)
		ref, err := New(id, Options{
			Mode:      mode,
			Endpoints: []Endpoint{{Kind: kind, Host: host, Port: port}},
		})
		require.NoError(t, err)

		s := ref.String()
		parsed, err := ParseString(s)
		require.NoError(t, err, "round-trip parse of %q", s)
		assert.True(t, ref.Equal(parsed), "round-trip mismatch for %q", s)
		assert.Equal(t, s, parsed.String(), "stringify not idempotent for %q", s)
	}
}
