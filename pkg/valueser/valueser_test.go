package valueser

import (
	"testing"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node is a two-level class hierarchy used to exercise slicing and the
// reference graph: node (most-derived) embeds base.
type base struct {
	Label string
}

func (b *base) ClassTypeID() string { return "::frost::test::base" }

func (b *base) WriteSlice(enc *Encoder) error {
	if err := enc.BeginSlice(b.ClassTypeID(), true); err != nil {
		return err
	}
	if err := enc.Buf().WriteString(b.Label); err != nil {
		return err
	}
	return enc.EndSlice()
}

func (b *base) ReadSlice(dec *Decoder) error {
	_, last, err := dec.BeginSlice()
	if err != nil {
		return err
	}
	if !last {
		return assertErr("base slice must be last")
	}
	b.Label, err = dec.Buf().ReadString()
	if err != nil {
		return err
	}
	return dec.EndSlice()
}

type node struct {
	base
	Name string
	Next *node
}

func (n *node) ClassTypeID() string { return "::frost::test::node" }

func (n *node) WriteSlice(enc *Encoder) error {
	if err := enc.BeginSlice(n.ClassTypeID(), false); err != nil {
		return err
	}
	if err := enc.Buf().WriteString(n.Name); err != nil {
		return err
	}
	if err := enc.WriteClass(n.Next); err != nil {
		return err
	}
	if err := enc.EndSlice(); err != nil {
		return err
	}
	return n.base.WriteSlice(enc)
}

func (n *node) ReadSlice(dec *Decoder) error {
	_, last, err := dec.BeginSlice()
	if err != nil {
		return err
	}
	if n.Name, err = dec.Buf().ReadString(); err != nil {
		return err
	}
	if err := dec.ReadClassField(nodeFactory, func(v Value) {
		if v == nil {
			n.Next = nil
			return
		}
		n.Next = v.(*node)
	}); err != nil {
		return err
	}
	if err := dec.EndSlice(); err != nil {
		return err
	}
	if last {
		return assertErr("node slice must not be last")
	}
	return n.base.ReadSlice(dec)
}

func nodeFactory(typeID string) Value {
	switch typeID {
	case "::frost::test::node":
		return &node{}
	case "::frost::test::base":
		return &base{}
	default:
		return nil
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestClassChainRoundTrip(t *testing.T) {
	n1 := &node{Name: "first", base: base{Label: "one"}}
	n2 := &node{Name: "second", base: base{Label: "two"}}
	n1.Next = n2

	buf := wire.NewBuffer()
	enc := NewEncoder(buf, Sliced, false)
	require.NoError(t, enc.WriteClass(n1))

	dec := NewDecoder(wire.NewBufferFromBytes(buf.Bytes()), Sliced, false, nil)
	var got Value
	require.NoError(t, dec.ReadClassField(nodeFactory, func(v Value) { got = v }))
	require.NoError(t, dec.FinalizePatches())

	decoded, ok := got.(*node)
	require.True(t, ok)
	assert.Equal(t, "first", decoded.Name)
	assert.Equal(t, "one", decoded.Label)
	require.NotNil(t, decoded.Next)
	assert.Equal(t, "second", decoded.Next.Name)
	assert.Equal(t, "two", decoded.Next.Label)
	assert.Nil(t, decoded.Next.Next)
}

func TestClassCycleRejectedWhenDisallowed(t *testing.T) {
	n1 := &node{Name: "a"}
	n2 := &node{Name: "b"}
	n1.Next = n2
	n2.Next = n1 // cycle

	buf := wire.NewBuffer()
	enc := NewEncoder(buf, Sliced, false)
	err := enc.WriteClass(n1)
	require.Error(t, err)
}

func TestClassCycleAcceptedWhenAllowed(t *testing.T) {
	n1 := &node{Name: "a"}
	n2 := &node{Name: "b"}
	n1.Next = n2
	n2.Next = n1

	buf := wire.NewBuffer()
	enc := NewEncoder(buf, Sliced, true)
	require.NoError(t, enc.WriteClass(n1))

	dec := NewDecoder(wire.NewBufferFromBytes(buf.Bytes()), Sliced, true, nil)
	var got Value
	require.NoError(t, dec.ReadClassField(nodeFactory, func(v Value) { got = v }))
	require.NoError(t, dec.FinalizePatches())

	decoded := got.(*node)
	assert.Equal(t, "a", decoded.Name)
	require.NotNil(t, decoded.Next)
	assert.Equal(t, "b", decoded.Next.Name)
	require.NotNil(t, decoded.Next.Next)
	assert.Same(t, decoded, decoded.Next.Next)
}

func TestUnknownTypePreservedUnderSlicedFormat(t *testing.T) {
	n1 := &node{Name: "known"}
	buf := wire.NewBuffer()
	enc := NewEncoder(buf, Sliced, false)
	require.NoError(t, enc.WriteClass(n1))

	// A receiver with no factories at all still preserves the instance.
	dec := NewDecoder(wire.NewBufferFromBytes(buf.Bytes()), Sliced, false, nil)
	var got Value
	noFactory := func(string) Value { return nil }
	require.NoError(t, dec.ReadClassField(noFactory, func(v Value) { got = v }))
	require.NoError(t, dec.FinalizePatches())

	sliced, ok := got.(*SlicedValue)
	require.True(t, ok)
	assert.Equal(t, "::frost::test::node", sliced.MostDerivedTypeID)
	assert.Len(t, sliced.Slices, 2)
	assert.Equal(t, "::frost::test::base", sliced.Slices[1].TypeID)
}

func TestUnknownTypeRejectedUnderCompactFormat(t *testing.T) {
	n1 := &node{Name: "known"}
	buf := wire.NewBuffer()
	enc := NewEncoder(buf, Compact, false)
	require.NoError(t, enc.WriteClass(n1))

	dec := NewDecoder(wire.NewBufferFromBytes(buf.Bytes()), Compact, false, nil)
	noFactory := func(string) Value { return nil }
	err := dec.ReadClassField(noFactory, func(Value) {})
	require.Error(t, err)
}

func TestFactoryManagerLookupOrder(t *testing.T) {
	fm := NewFactoryManager()
	called := ""
	fm.AddDefault(func(typeID string) Value {
		called = "default"
		return &base{}
	})
	v := fm.find("::frost::test::unregistered")
	require.NotNil(t, v)
	assert.Equal(t, "default", called)

	fm.Add("::frost::test::unregistered", func(typeID string) Value {
		called = "explicit"
		return &base{}
	})
	fm.find("::frost::test::unregistered")
	assert.Equal(t, "explicit", called)
}

func TestUnknownUserExceptionPreservesChain(t *testing.T) {
	buf := wire.NewBuffer()
	enc := NewEncoder(buf, Sliced, false)
	n := &node{Name: "oops"}
	// Exceptions reuse the same slice chain machinery without an index.
	require.NoError(t, n.WriteSlice(enc))

	dec := NewDecoder(wire.NewBufferFromBytes(buf.Bytes()), Sliced, false, nil)
	ex, err := dec.ReadException(func(string) UserException { return nil })
	require.NoError(t, err)
	unknown, ok := ex.(*UnknownUserException)
	require.True(t, ok)
	assert.Equal(t, "::frost::test::node", unknown.UnknownTypeID)
	assert.Len(t, unknown.KnownSlices, 2)
}
