package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarRoundTrip(t *testing.T) {
	b := NewBuffer()
	b.WriteU8(7)
	b.WriteU16(1234)
	b.WriteU32(99999)
	b.WriteU64(1 << 40)
	b.WriteI32(-5)
	b.WriteBool(true)
	b.WriteF64(3.25)

	r := NewBufferFromBytes(b.Bytes())
	u8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(7), u8)

	u16, err := r.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), u16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(99999), u32)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	i32, err := r.ReadI32()
	require.NoError(t, err)
	assert.Equal(t, int32(-5), i32)

	boolVal, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, boolVal)

	f64, err := r.ReadF64()
	require.NoError(t, err)
	assert.Equal(t, 3.25, f64)
}

func TestWriteSizePromotesExactly255ToLongForm(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.WriteSize(255))
	// long form: marker byte + 4-byte count == 5 bytes total
	assert.Equal(t, 5, b.Len())
	assert.Equal(t, uint8(0xFF), b.Bytes()[0])

	r := NewBufferFromBytes(b.Bytes())
	n, err := r.ReadSize()
	require.NoError(t, err)
	assert.Equal(t, 255, n)
}

func TestWriteSizeShortForm(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.WriteSize(254))
	assert.Equal(t, 1, b.Len())

	r := NewBufferFromBytes(b.Bytes())
	n, err := r.ReadSize()
	require.NoError(t, err)
	assert.Equal(t, 254, n)
}

func TestReadSizeAcceptsDeprecatedOneByteFormWithWarning(t *testing.T) {
	var warned string
	OnWarning = func(msg string) { warned = msg }
	defer func() { OnWarning = nil }()

	// A lone 0xFF byte with nothing following it: the invalid one-byte
	// encoding of 255 from a non-conforming writer.
	r := NewBufferFromBytes([]byte{0xFF})
	n, err := r.ReadSize()
	require.NoError(t, err)
	assert.Equal(t, 255, n)
	assert.NotEmpty(t, warned)
}

func TestStringRoundTrip(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.WriteString("hello"))
	require.NoError(t, b.WriteString(""))

	r := NewBufferFromBytes(b.Bytes())
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	empty, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestReadSequenceLenRejectsAllocatorDoS(t *testing.T) {
	b := NewBuffer()
	// Claim a huge sequence length but provide almost no bytes.
	require.NoError(t, b.WriteSize(1_000_000))
	b.WriteU8(1) // one byte of "body"

	r := NewBufferFromBytes(b.Bytes())
	_, err := r.ReadSequenceLen(8)
	require.Error(t, err)
}

func TestEncapsulationRoundTripAndSkip(t *testing.T) {
	b := NewBuffer()
	enc := b.StartEncapsulation(Version{1, 1})
	require.NoError(t, b.WriteString("payload"))
	enc.End()
	b.WriteU8(0xAA) // sentinel after the encapsulation

	r := NewBufferFromBytes(b.Bytes())
	view, err := r.ReadEncapsulation()
	require.NoError(t, err)
	assert.Equal(t, Version{1, 1}, view.Encoding)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "payload", s)
	view.Close()

	sentinel, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAA), sentinel)
}

func TestEncapsulationSkipUnknownBody(t *testing.T) {
	b := NewBuffer()
	enc := b.StartEncapsulation(Version{2, 0})
	b.WriteU32(1)
	b.WriteU32(2)
	b.WriteU32(3)
	enc.End()
	b.WriteU8(0xBB)

	r := NewBufferFromBytes(b.Bytes())
	view, err := r.ReadEncapsulation()
	require.NoError(t, err)
	view.Skip() // simulate "unknown encoding version, skip whole body"
	view.Close()

	sentinel, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xBB), sentinel)
}

func TestTaggedMemberSkipUnknownTag(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.WriteTaggedBytes(1, FormatF4, []byte{1, 2, 3, 4}))
	require.NoError(t, b.WriteTaggedBytes(5, FormatVSize, []byte("known")))

	r := NewBufferFromBytes(b.Bytes())
	tag, format, ok, err := r.ReadTagHeader()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, tag)
	require.NoError(t, r.SkipTagged(format)) // receiver doesn't know tag 1

	tag, format, ok, err = r.ReadTagHeader()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, tag)
	assert.Equal(t, FormatVSize, format)
	n, err := r.ReadSize()
	require.NoError(t, err)
	payload, err := r.ReadRaw(n)
	require.NoError(t, err)
	assert.Equal(t, "known", string(payload))
}

func TestWriteTagHeaderLargeTagNumber(t *testing.T) {
	b := NewBuffer()
	require.NoError(t, b.WriteTagHeader(500, FormatF1))
	r := NewBufferFromBytes(b.Bytes())
	tag, format, ok, err := r.ReadTagHeader()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 500, tag)
	assert.Equal(t, FormatF1, format)
}
