package wire

import "fmt"

// sizeLongFormMarker is the single-byte sentinel that signals the
// five-byte long form follows: a marker byte plus a 4-byte signed count.
const sizeLongFormMarker = 0xFF

// sizeShortFormMax is the largest value the single-byte short form can
// encode. A value of exactly 255 must use the long form:
// 255 written as a single byte is ambiguous with the long-form marker, so
// the write path always promotes it to five bytes.
const sizeShortFormMax = 254

// WriteSize writes the wire size encoding: a single byte if the value is
// <= 254, otherwise the long-form marker followed by a 4-byte signed count.
// Negative sizes are a MarshalError.
func (b *Buffer) WriteSize(n int) error {
	if n < 0 {
		return fmt.Errorf("wire: MarshalError: negative size %d", n)
	}
	if n <= sizeShortFormMax {
		b.WriteU8(uint8(n))
		return nil
	}
	b.WriteU8(sizeLongFormMarker)
	b.WriteI32(int32(n))
	return nil
}

// OnWarning is called by ReadSize when it encounters the deprecated
// one-byte encoding of 255. It defaults to a no-op;
// pkg/communicator.New wires it to logger.Warn unconditionally.
var OnWarning func(msg string)

func warn(format string, args ...any) {
	if OnWarning != nil {
		OnWarning(fmt.Sprintf(format, args...))
	}
}

// ReadSize reads the wire size encoding. A single byte value of 255
// read as the short form (i.e. not followed by the 4-byte count, because
// the writer emitted the invalid one-byte encoding) is still accepted for
// backward compatibility, but logs a warning. Distinguishing the two is
// only possible because the long form always uses the 0xFF marker byte
// followed by 4 more bytes: a reader that sees 0xFF must have the 4-byte
// count available, or the one-byte form was used.
func (b *Buffer) ReadSize() (int, error) {
	marker, err := b.ReadU8()
	if err != nil {
		return 0, err
	}
	if marker != sizeLongFormMarker {
		return int(marker), nil
	}
	if b.Remaining() < 4 {
		// No room for the 4-byte count: the writer used the invalid
		// one-byte encoding of 255. Accept it for backward compatibility.
		warn("wire: read deprecated one-byte size encoding of 255")
		return sizeLongFormMarker, nil
	}
	n, err := b.ReadI32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("wire: MarshalError: negative size %d", n)
	}
	return int(n), nil
}

// ReadSequenceLen reads a size-encoded sequence length and rejects lengths
// that could not possibly fit in the remaining bytes given the minimum
// wire size of one element — an allocator-DoS guard.
func (b *Buffer) ReadSequenceLen(minElemWireSize int) (int, error) {
	n, err := b.ReadSize()
	if err != nil {
		return 0, err
	}
	if minElemWireSize <= 0 {
		return n, nil
	}
	maxPossible := b.Remaining() / minElemWireSize
	if n > maxPossible {
		return 0, fmt.Errorf(
			"wire: MarshalError: sequence length %d exceeds remaining/minElemSize bound %d",
			n, maxPossible)
	}
	return n, nil
}

// WriteString encodes a UTF-8 string as size-prefixed bytes.
func (b *Buffer) WriteString(s string) error {
	if err := b.WriteSize(len(s)); err != nil {
		return err
	}
	b.WriteRaw([]byte(s))
	return nil
}

// ReadString decodes a size-prefixed UTF-8 string.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadSequenceLen(1)
	if err != nil {
		return "", err
	}
	raw, err := b.requireBytes(n)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WriteStringSeq writes a size-prefixed sequence of strings.
func (b *Buffer) WriteStringSeq(ss []string) error {
	if err := b.WriteSize(len(ss)); err != nil {
		return err
	}
	for _, s := range ss {
		if err := b.WriteString(s); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringSeq reads a size-prefixed sequence of strings. Each string's
// minimum wire size is one byte (its own size prefix).
func (b *Buffer) ReadStringSeq() ([]string, error) {
	n, err := b.ReadSequenceLen(1)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// WriteStringMap writes a size-prefixed dictionary<string,string> — used
// for the per-request Context map.
func (b *Buffer) WriteStringMap(m map[string]string) error {
	if err := b.WriteSize(len(m)); err != nil {
		return err
	}
	for k, v := range m {
		if err := b.WriteString(k); err != nil {
			return err
		}
		if err := b.WriteString(v); err != nil {
			return err
		}
	}
	return nil
}

// ReadStringMap reads a size-prefixed dictionary<string,string>.
func (b *Buffer) ReadStringMap() (map[string]string, error) {
	n, err := b.ReadSequenceLen(2) // each entry needs at least two 1-byte sizes
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := 0; i < n; i++ {
		k, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := b.ReadString()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
