package wire

import "fmt"

// Version is a protocol or encoding version (major.minor).
type Version struct {
	Major uint8
	Minor uint8
}

// Encapsulation is a write-side token returned by StartEncapsulation. End
// back-patches the 4-byte size placeholder once the body has been written.
type Encapsulation struct {
	buf        *Buffer
	sizePos    int
	encoding   Version
}

// StartEncapsulation records the current write position, emits a 4-byte
// size placeholder and the 2-byte encoding version, and returns a token
// used to close the encapsulation once its body is written.
func (b *Buffer) StartEncapsulation(encoding Version) *Encapsulation {
	sizePos := len(b.data)
	b.WriteI32(0) // placeholder, back-patched in End
	b.WriteU8(encoding.Major)
	b.WriteU8(encoding.Minor)
	return &Encapsulation{buf: b, sizePos: sizePos, encoding: encoding}
}

// End back-patches the encapsulation's size field with the number of bytes
// written since StartEncapsulation (including the 6-byte size+encoding
// prefix itself, matching the wire convention used by the outer message
// header).
func (e *Encapsulation) End() {
	size := len(e.buf.data) - e.sizePos
	e.buf.PatchI32(e.sizePos, int32(size))
}

// EncapsulationView is a read-side window onto one encapsulation's body.
// Reads through the owning Buffer are clamped to the declared size so
// nested decoders cannot cross the boundary.
type EncapsulationView struct {
	buf          *Buffer
	Encoding     Version
	bodyStart    int
	bodyEnd      int
	prevLimit    int
}

// ReadEncapsulation reads the 4-byte size and 2-byte encoding version, then
// narrows the buffer's Remaining() to the declared body so that forward
// skip-on-unknown-encoding logic cannot read past it. Callers must
// call Close to restore the buffer's prior limit.
func (b *Buffer) ReadEncapsulation() (*EncapsulationView, error) {
	size, err := b.ReadI32()
	if err != nil {
		return nil, err
	}
	if size < 6 {
		return nil, fmt.Errorf("wire: MarshalError: encapsulation size %d smaller than header", size)
	}
	major, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	minor, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	bodyStart := b.rpos
	bodyEnd := bodyStart + int(size) - 6
	if bodyEnd > len(b.data) {
		return nil, fmt.Errorf("wire: MarshalError: encapsulation body exceeds buffer")
	}
	prevLimit := b.limit
	b.limit = bodyEnd
	return &EncapsulationView{
		buf:       b,
		Encoding:  Version{major, minor},
		bodyStart: bodyStart,
		bodyEnd:   bodyEnd,
		prevLimit: prevLimit,
	}, nil
}

// Skip advances the buffer's read cursor past any unread bytes of this
// encapsulation — used by the dispatch engine to skip a request body whose
// encoding it does not support (forward-compatible skip).
func (v *EncapsulationView) Skip() {
	v.buf.rpos = v.bodyEnd
}

// Close restores the buffer's limit that was active before ReadEncapsulation,
// after positioning the cursor at the end of this encapsulation's body.
func (v *EncapsulationView) Close() {
	v.buf.rpos = v.bodyEnd
	v.buf.limit = v.prevLimit
}

// Bytes returns the raw encapsulation body bytes (used to preserve an
// UnknownSlicedValue verbatim).
func (v *EncapsulationView) Bytes() []byte {
	return v.buf.data[v.bodyStart:v.bodyEnd]
}
