package valueser

import (
	"fmt"
	"reflect"

	"github.com/frostrpc/frost/internal/wire"
)

// Encoder writes class instances, the reference graph that binds them
// together, and user exceptions into a wire.Buffer.
type Encoder struct {
	buf               *wire.Buffer
	format            Format
	acceptClassCycles bool

	marked    map[uintptr]int32
	open      map[int32]bool
	nextIndex int32
	sizeStack []int
}

// NewEncoder creates an Encoder writing into buf. acceptClassCycles mirrors
// the communicator-wide AcceptClassCycles property: when false, a class
// graph with a genuine cycle (an instance referencing itself, directly or
// transitively, before it has finished writing) is rejected rather than
// silently truncated.
func NewEncoder(buf *wire.Buffer, format Format, acceptClassCycles bool) *Encoder {
	return &Encoder{
		buf:               buf,
		format:            format,
		acceptClassCycles: acceptClassCycles,
		marked:            make(map[uintptr]int32),
		open:              make(map[int32]bool),
	}
}

func identityKey(v Value) uintptr {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return rv.Pointer()
	}
	return 0
}

// WriteClass writes a class instance reference: a null marker for nil, a
// back-reference index for an instance already written earlier in this
// graph, or a fresh index followed by the instance's slice chain.
func (e *Encoder) WriteClass(v Value) error {
	if v == nil {
		e.buf.WriteI32(0)
		return nil
	}
	key := identityKey(v)
	if idx, ok := e.marked[key]; ok {
		if e.open[idx] && !e.acceptClassCycles {
			return fmt.Errorf("valueser: MarshalError: class cycle detected at index %d (AcceptClassCycles is false)", idx)
		}
		e.buf.WriteI32(-idx)
		return nil
	}
	e.nextIndex++
	idx := e.nextIndex
	e.marked[key] = idx
	e.buf.WriteI32(idx)
	e.open[idx] = true
	if err := v.WriteSlice(e); err != nil {
		return err
	}
	delete(e.open, idx)
	return nil
}

// BeginSlice writes one slice's type id, last-slice flag, and a 4-byte size
// placeholder, to be closed with EndSlice once the slice's members have
// been written. Generated WriteSlice implementations call this once per
// level of their inheritance chain.
func (e *Encoder) BeginSlice(typeID string, last bool) error {
	if err := writeSliceHeader(e.buf, typeID, last); err != nil {
		return err
	}
	e.sizeStack = append(e.sizeStack, e.buf.Len())
	e.buf.WriteI32(0)
	return nil
}

// EndSlice back-patches the size placeholder opened by the matching
// BeginSlice with the number of bytes actually written since.
func (e *Encoder) EndSlice() error {
	if len(e.sizeStack) == 0 {
		return fmt.Errorf("valueser: EndSlice called without a matching BeginSlice")
	}
	pos := e.sizeStack[len(e.sizeStack)-1]
	e.sizeStack = e.sizeStack[:len(e.sizeStack)-1]
	size := e.buf.Len() - (pos + 4)
	e.buf.PatchI32(pos, int32(size))
	return nil
}

// writeRawSlice emits an already-decoded Slice verbatim, used by
// SlicedValue and UnknownUserException to forward preserved data.
func (e *Encoder) writeRawSlice(s Slice, last bool) error {
	if err := e.BeginSlice(s.TypeID, last); err != nil {
		return err
	}
	e.buf.WriteRaw(s.Bytes)
	return e.EndSlice()
}

// Buf exposes the underlying wire.Buffer for generated code writing a
// slice's own members.
func (e *Encoder) Buf() *wire.Buffer { return e.buf }
