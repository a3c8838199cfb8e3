package wire

import "fmt"

// Format identifies how a tagged member's length is self-described on the
// wire, so an unknown tag can be skipped without understanding its type.
type Format uint8

const (
	FormatF1 Format = iota // fixed 1 byte
	FormatF2                // fixed 2 bytes
	FormatF4                // fixed 4 bytes
	FormatF8                // fixed 8 bytes
	FormatVSize              // size-prefixed variable length
	FormatFSize              // fixed 4-byte length prefix
	FormatSize               // a bare variable-length size (e.g. a count)
	FormatClass               // a class instance (reference-graph aware)
)

// WriteTagHeader writes the "tag<<3 | format" byte(s) that precede a
// tagged member's data. Tag numbers above the 5 bits available in one byte
// spill into additional bytes the same way the wire size encoding does:
// small tags (<30) fit in a single byte; larger tags use the escape value
// 30 followed by a full tag number.
func (b *Buffer) WriteTagHeader(tag int, format Format) error {
	if tag < 0 {
		return fmt.Errorf("wire: MarshalError: negative tag %d", tag)
	}
	if tag < 30 {
		b.WriteU8(uint8(tag)<<3 | uint8(format))
		return nil
	}
	b.WriteU8(30<<3 | uint8(format))
	if err := b.WriteSize(tag); err != nil {
		return err
	}
	return nil
}

// ReadTagHeader reads one tag header, returning the decoded tag number and
// format. ok is false if no more tagged members remain in this
// encapsulation (the caller has reached its end).
func (b *Buffer) ReadTagHeader() (tag int, format Format, ok bool, err error) {
	if b.Remaining() == 0 {
		return 0, 0, false, nil
	}
	raw, err := b.ReadU8()
	if err != nil {
		return 0, 0, false, err
	}
	format = Format(raw & 0x7)
	tagLow := int(raw >> 3)
	if tagLow < 30 {
		return tagLow, format, true, nil
	}
	tag, err = b.ReadSize()
	if err != nil {
		return 0, 0, false, err
	}
	return tag, format, true, nil
}

// wireSizeOf returns the number of bytes a fixed-format value occupies, or
// -1 if the format is self-describing some other way (VSize/Size carry
// their own length prefix; Class is resolved by the value serializer).
func wireSizeOf(f Format) int {
	switch f {
	case FormatF1:
		return 1
	case FormatF2:
		return 2
	case FormatF4:
		return 4
	case FormatF8:
		return 8
	default:
		return -1
	}
}

// SkipTagged advances past one tagged member's data once its header has
// already been read, using the format's self-describing length. Used when
// decoding a slice whose declared tag is not recognized by the receiver.
func (b *Buffer) SkipTagged(format Format) error {
	switch format {
	case FormatF1, FormatF2, FormatF4, FormatF8:
		n := wireSizeOf(format)
		_, err := b.requireBytes(n)
		return err
	case FormatFSize:
		n, err := b.ReadI32()
		if err != nil {
			return err
		}
		_, err = b.requireBytes(int(n))
		return err
	case FormatVSize, FormatSize:
		n, err := b.ReadSize()
		if err != nil {
			return err
		}
		_, err = b.requireBytes(n)
		return err
	case FormatClass:
		return fmt.Errorf("wire: cannot blind-skip a Class-formatted tag; caller must decode and discard it")
	default:
		return fmt.Errorf("wire: unknown tag format %d", format)
	}
}

// WriteTaggedBytes writes a tagged member whose payload is already-encoded
// bytes under a VSize/FSize/Size format (the common case for scalars and
// strings — the encoder writes the value into a scratch Buffer, then calls
// this with the scratch bytes).
func (b *Buffer) WriteTaggedBytes(tag int, format Format, payload []byte) error {
	if err := b.WriteTagHeader(tag, format); err != nil {
		return err
	}
	switch format {
	case FormatFSize:
		b.WriteI32(int32(len(payload)))
	case FormatVSize, FormatSize:
		if err := b.WriteSize(len(payload)); err != nil {
			return err
		}
	}
	b.WriteRaw(payload)
	return nil
}
