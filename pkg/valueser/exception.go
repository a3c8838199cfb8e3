package valueser

import "fmt"

// UserException is implemented by every application-defined exception
// type. Unlike Value, exceptions are never entered into the reference
// graph — each occurrence on the wire is a fresh, self-contained slice
// chain; exceptions are never shared.
type UserException interface {
	error
	ExceptionTypeID() string
	WriteSlice(enc *Encoder) error
	ReadSlice(dec *Decoder) error
}

// ExceptionFactory constructs a zero-value UserException for a recognized
// type id, ready to have ReadSlice called on it.
type ExceptionFactory func(typeID string) UserException

// UnknownUserException is decoded when the receiver has no registered type
// for an exception's leading type id. Its KnownSlices preserve the full
// chain verbatim so the dispatcher can still report a meaningful
// UnknownUserException reply status rather than failing to decode at all.
type UnknownUserException struct {
	UnknownTypeID string
	KnownSlices   []Slice
}

func (e *UnknownUserException) Error() string {
	return fmt.Sprintf("valueser: unknown user exception %q", e.UnknownTypeID)
}

func (e *UnknownUserException) ExceptionTypeID() string { return e.UnknownTypeID }

func (e *UnknownUserException) WriteSlice(enc *Encoder) error {
	for i, s := range e.KnownSlices {
		if err := enc.writeRawSlice(s, i == len(e.KnownSlices)-1); err != nil {
			return err
		}
	}
	return nil
}

func (e *UnknownUserException) ReadSlice(dec *Decoder) error {
	e.KnownSlices = e.KnownSlices[:0]
	first := true
	for {
		typeID, last, err := dec.BeginSlice()
		if err != nil {
			return err
		}
		if first {
			e.UnknownTypeID = typeID
			first = false
		}
		body, err := dec.buf.ReadRaw(dec.buf.Remaining())
		if err != nil {
			return err
		}
		e.KnownSlices = append(e.KnownSlices, Slice{TypeID: typeID, Bytes: body})
		if err := dec.EndSlice(); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

// WriteException writes an exception's slice chain. Exceptions are not
// entered into the reference graph, so no index is written before it.
func (e *Encoder) WriteException(ex UserException) error {
	return ex.WriteSlice(e)
}

// ReadException reads an exception's slice chain, consulting factory to
// construct the right Go type for the leading type id. If factory returns
// nil (the type id is unrecognized) the whole chain is preserved in an
// UnknownUserException instead of failing the decode.
func (d *Decoder) ReadException(factory ExceptionFactory) (UserException, error) {
	peekPos := d.buf.Pos()
	typeID, err := d.buf.ReadString()
	if err != nil {
		return nil, err
	}
	d.buf.SetPos(peekPos)

	if factory != nil {
		if ex := factory(typeID); ex != nil {
			if err := ex.ReadSlice(d); err != nil {
				return nil, err
			}
			return ex, nil
		}
	}
	unknown := &UnknownUserException{}
	if err := unknown.ReadSlice(d); err != nil {
		return nil, err
	}
	return unknown, nil
}
