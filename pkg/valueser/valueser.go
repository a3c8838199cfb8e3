// Package valueser implements class slicing, the reference graph, and user
// exception encoding on top of internal/wire's buffer and encapsulation
// primitives. It has no knowledge of connections or proxies — only of how a
// class instance or exception turns into, and back out of, bytes.
package valueser

import "github.com/frostrpc/frost/internal/wire"

// Format selects how class instances are framed on the wire. Compact
// assumes both ends share identical generated types and rejects an unknown
// most-derived type outright; Sliced is self-describing and lets a
// receiver preserve the slices of a type it doesn't recognize so the
// instance can still be forwarded unchanged.
type Format uint8

const (
	Compact Format = iota
	Sliced
)

// Value is implemented by every class type that can appear in the
// reference graph (written with Encoder.WriteClass, read with
// Decoder.ReadClassField). Generated code implements it directly;
// SlicedValue is the fallback used to preserve an instance of an unknown
// most-derived type when Format is Sliced.
type Value interface {
	ClassTypeID() string
	WriteSlice(enc *Encoder) error
	ReadSlice(dec *Decoder) error
}

// Slice is one preserved, type-tagged segment of a class or exception's
// data, undecoded. SlicedValue and UnknownUserException carry these so a
// receiver that doesn't know the most-derived type can still forward the
// instance unchanged.
type Slice struct {
	TypeID string
	Bytes  []byte
}

// SlicedValue stands in for a class instance whose most-derived type is not
// known to the receiver. Its Slices are kept verbatim, most-derived first,
// exactly as they were read, so the instance can be re-encoded unchanged.
type SlicedValue struct {
	MostDerivedTypeID string
	Slices            []Slice
}

func (v *SlicedValue) ClassTypeID() string { return v.MostDerivedTypeID }

// WriteSlice re-emits every preserved slice verbatim.
func (v *SlicedValue) WriteSlice(enc *Encoder) error {
	for i, s := range v.Slices {
		if err := enc.writeRawSlice(s, i == len(v.Slices)-1); err != nil {
			return err
		}
	}
	return nil
}

// ReadSlice reads and preserves every slice of the chain until the last
// slice flag is set, recording each one's type id and raw body.
func (v *SlicedValue) ReadSlice(dec *Decoder) error {
	v.Slices = v.Slices[:0]
	first := true
	for {
		typeID, last, err := dec.BeginSlice()
		if err != nil {
			return err
		}
		if first {
			v.MostDerivedTypeID = typeID
			first = false
		}
		body, err := dec.buf.ReadRaw(dec.buf.Remaining())
		if err != nil {
			return err
		}
		v.Slices = append(v.Slices, Slice{TypeID: typeID, Bytes: body})
		if err := dec.EndSlice(); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

// sliceFlagLast marks the final (most-base) slice of an instance or
// exception, so a reader knows when to stop walking the chain.
const sliceFlagLast = 0x1

func writeSliceHeader(buf *wire.Buffer, typeID string, last bool) error {
	if err := buf.WriteString(typeID); err != nil {
		return err
	}
	var flags uint8
	if last {
		flags |= sliceFlagLast
	}
	buf.WriteU8(flags)
	return nil
}

func readSliceHeader(buf *wire.Buffer) (typeID string, last bool, err error) {
	typeID, err = buf.ReadString()
	if err != nil {
		return "", false, err
	}
	flags, err := buf.ReadU8()
	if err != nil {
		return "", false, err
	}
	return typeID, flags&sliceFlagLast != 0, nil
}
