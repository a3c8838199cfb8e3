package valueser

import (
	"fmt"

	"github.com/frostrpc/frost/internal/wire"
)

// ValueFactory constructs a zero-value instance for a recognized type id,
// ready to have ReadSlice called on it. Returning nil means "I don't
// recognize this type id" and lets the next factory in the lookup order
// try.
type ValueFactory func(typeID string) Value

// patch records a not-yet-resolved class reference: index is the wire
// index of the instance it points to, and apply is invoked with the fully
// decoded instance once every body in the graph has been read.
type patch struct {
	index int32
	apply func(Value)
}

// Decoder reads class instances, their reference graph, and user
// exceptions from a wire.Buffer.
type Decoder struct {
	buf               *wire.Buffer
	format            Format
	acceptClassCycles bool
	factories         *FactoryManager

	instances   map[int32]Value
	openIndices map[int32]bool
	patches     []patch
	sliceStack  []int
}

// NewDecoder creates a Decoder reading from buf. factories may be nil, in
// which case only the preferred ValueFactory passed to each ReadClassField
// call (and, for Format Sliced, verbatim preservation) is available.
func NewDecoder(buf *wire.Buffer, format Format, acceptClassCycles bool, factories *FactoryManager) *Decoder {
	return &Decoder{
		buf:               buf,
		format:            format,
		acceptClassCycles: acceptClassCycles,
		factories:         factories,
		instances:         make(map[int32]Value),
		openIndices:       make(map[int32]bool),
	}
}

// ReadClassField reads one class reference and, once it is resolvable,
// invokes set with the result. For a fresh instance this happens only
// after FinalizePatches runs the deferred patch list — a reference that
// turns out to be part of a cycle cannot be handed to its holder until the
// whole graph has been read, so every reference is deferred uniformly
// rather than special-cased by whether it happens to need it.
func (d *Decoder) ReadClassField(preferred ValueFactory, set func(Value)) error {
	idx, err := d.buf.ReadI32()
	if err != nil {
		return err
	}
	if idx == 0 {
		set(nil)
		return nil
	}
	if idx < 0 {
		ref := -idx
		if d.openIndices[ref] && !d.acceptClassCycles {
			return fmt.Errorf("valueser: MarshalError: class cycle detected at index %d (AcceptClassCycles is false)", ref)
		}
		d.patches = append(d.patches, patch{index: ref, apply: set})
		return nil
	}

	// Peek the leading type id to pick a constructor, then rewind so the
	// constructed value's own ReadSlice/BeginSlice reads it again as part
	// of its normal slice-chain walk.
	peekPos := d.buf.Pos()
	typeID, err := d.buf.ReadString()
	if err != nil {
		return err
	}
	d.buf.SetPos(peekPos)

	v, err := d.resolve(typeID, preferred)
	if err != nil {
		return err
	}
	d.openIndices[idx] = true
	if err := v.ReadSlice(d); err != nil {
		return err
	}
	delete(d.openIndices, idx)
	d.instances[idx] = v
	d.patches = append(d.patches, patch{index: idx, apply: set})
	return nil
}

// ReadClass is the convenience form of ReadClassField for top-level values
// (a request parameter, a reply result) that are not embedded in a larger
// struct. Callers must still call FinalizePatches once the whole
// encapsulation has been decoded.
func (d *Decoder) ReadClass(preferred ValueFactory) (Value, error) {
	var result Value
	if err := d.ReadClassField(preferred, func(v Value) { result = v }); err != nil {
		return nil, err
	}
	return result, nil
}

// FinalizePatches applies every deferred class reference now that the
// entire graph has been read, in one final pass after all bodies are read.
// Must be called once per top-level decode; returns
// an error if a back-reference never resolved (a malformed graph).
func (d *Decoder) FinalizePatches() error {
	for _, p := range d.patches {
		v, ok := d.instances[p.index]
		if !ok {
			return fmt.Errorf("valueser: MarshalError: unresolved class reference at index %d", p.index)
		}
		p.apply(v)
	}
	d.patches = nil
	return nil
}

func (d *Decoder) resolve(typeID string, preferred ValueFactory) (Value, error) {
	if preferred != nil {
		if v := preferred(typeID); v != nil {
			return v, nil
		}
	}
	if d.factories != nil {
		if v := d.factories.find(typeID); v != nil {
			return v, nil
		}
	}
	if d.format == Sliced {
		return &SlicedValue{}, nil
	}
	return nil, fmt.Errorf("valueser: MarshalError: no factory for type %q (Compact format cannot preserve unknown types)", typeID)
}

// BeginSlice reads one slice's type id and last-slice flag, then a 4-byte
// size and clamps the buffer so reads cannot cross into the next slice.
// Generated ReadSlice implementations call this once per level of their
// inheritance chain; any members left unread when EndSlice runs (because a
// newer minor version added optional members this reader doesn't know
// about) are silently skipped.
func (d *Decoder) BeginSlice() (typeID string, last bool, err error) {
	typeID, last, err = readSliceHeader(d.buf)
	if err != nil {
		return "", false, err
	}
	size, err := d.buf.ReadI32()
	if err != nil {
		return "", false, err
	}
	if size < 0 {
		return "", false, fmt.Errorf("valueser: MarshalError: negative slice size %d", size)
	}
	bodyEnd := d.buf.Pos() + int(size)
	prev := d.buf.LimitTo(bodyEnd)
	d.sliceStack = append(d.sliceStack, prev)
	return typeID, last, nil
}

// EndSlice skips any unread bytes of the current slice and restores the
// buffer's prior limit.
func (d *Decoder) EndSlice() error {
	if len(d.sliceStack) == 0 {
		return fmt.Errorf("valueser: EndSlice called without a matching BeginSlice")
	}
	prev := d.sliceStack[len(d.sliceStack)-1]
	d.sliceStack = d.sliceStack[:len(d.sliceStack)-1]
	d.buf.SeekToLimit()
	d.buf.RestoreLimit(prev)
	return nil
}

// Buf exposes the underlying wire.Buffer for generated code reading a
// slice's own members.
func (d *Decoder) Buf() *wire.Buffer { return d.buf }
