package connection

import (
	"fmt"

	"github.com/frostrpc/frost/internal/wire"
	"github.com/frostrpc/frost/pkg/frosterr"
	"github.com/frostrpc/frost/pkg/identity"
	"github.com/frostrpc/frost/pkg/reference"
)

// magic is the 4-byte sentinel that opens every message header.
var magic = [4]byte{0x49, 0x63, 0x65, 0x50}

// headerSize is the fixed length of every message header: magic(4) +
// protocol version(2) + encoding version(2) + message type(1) +
// compression status(1) + message size(4).
const headerSize = 14

// msgType identifies what follows the header.
type msgType uint8

const (
	msgRequest msgType = iota
	msgBatchRequest
	msgReply
	msgValidateConnection
	msgCloseConnection
)

func (t msgType) String() string {
	switch t {
	case msgRequest:
		return "Request"
	case msgBatchRequest:
		return "BatchRequest"
	case msgReply:
		return "Reply"
	case msgValidateConnection:
		return "ValidateConnection"
	case msgCloseConnection:
		return "CloseConnection"
	default:
		return fmt.Sprintf("msgType(%d)", uint8(t))
	}
}

type header struct {
	protocol    wire.Version
	encoding    wire.Version
	typ         msgType
	compressed  bool
	messageSize int32 // total size including the 14-byte header itself
}

func writeHeader(b *wire.Buffer, h header) {
	b.WriteRaw(magic[:])
	b.WriteU8(h.protocol.Major)
	b.WriteU8(h.protocol.Minor)
	b.WriteU8(h.encoding.Major)
	b.WriteU8(h.encoding.Minor)
	b.WriteU8(uint8(h.typ))
	if h.compressed {
		b.WriteU8(1)
	} else {
		b.WriteU8(0)
	}
	b.WriteI32(h.messageSize)
}

func readHeader(b *wire.Buffer) (header, error) {
	raw, err := b.ReadRaw(4)
	if err != nil {
		return header{}, frosterr.Wrap(frosterr.KindProtocolError, err, "connection: short header")
	}
	if raw[0] != magic[0] || raw[1] != magic[1] || raw[2] != magic[2] || raw[3] != magic[3] {
		return header{}, frosterr.New(frosterr.KindProtocolError, "connection: bad magic bytes")
	}
	pMaj, _ := b.ReadU8()
	pMin, _ := b.ReadU8()
	eMaj, _ := b.ReadU8()
	eMin, _ := b.ReadU8()
	typByte, err := b.ReadU8()
	if err != nil {
		return header{}, frosterr.Wrap(frosterr.KindProtocolError, err, "connection: short header")
	}
	compByte, err := b.ReadU8()
	if err != nil {
		return header{}, frosterr.Wrap(frosterr.KindProtocolError, err, "connection: short header")
	}
	size, err := b.ReadI32()
	if err != nil {
		return header{}, frosterr.Wrap(frosterr.KindProtocolError, err, "connection: short header")
	}
	if size < headerSize {
		return header{}, frosterr.New(frosterr.KindProtocolError, "connection: message size %d smaller than header", size)
	}
	return header{
		protocol:    wire.Version{Major: pMaj, Minor: pMin},
		encoding:    wire.Version{Major: eMaj, Minor: eMin},
		typ:         msgType(typByte),
		compressed:  compByte != 0,
		messageSize: size,
	}, nil
}

// Request is one invocation's wire representation, body already decoded up
// to the raw argument encapsulation (the dispatch engine decodes that
// further against the target operation's signature).
type Request struct {
	RequestID int32 // 0 for oneway/batch-oneway/datagram
	Identity  identity.Identity
	Facet     string
	Operation string
	Mode      reference.InvocationMode
	Context   map[string]string
	Params    *wire.EncapsulationView
}

func writeRequestBody(b *wire.Buffer, r *Request) error {
	b.WriteI32(r.RequestID)
	if err := b.WriteString(r.Identity.Category); err != nil {
		return err
	}
	if err := b.WriteString(r.Identity.Name); err != nil {
		return err
	}
	if err := b.WriteString(r.Facet); err != nil {
		return err
	}
	if err := b.WriteString(r.Operation); err != nil {
		return err
	}
	b.WriteU8(uint8(r.Mode))
	if err := b.WriteStringMap(r.Context); err != nil {
		return err
	}
	return nil
}

func readRequestBody(b *wire.Buffer) (*Request, error) {
	id, err := b.ReadI32()
	if err != nil {
		return nil, err
	}
	category, err := b.ReadString()
	if err != nil {
		return nil, err
	}
	name, err := b.ReadString()
	if err != nil {
		return nil, err
	}
	facet, err := b.ReadString()
	if err != nil {
		return nil, err
	}
	op, err := b.ReadString()
	if err != nil {
		return nil, err
	}
	modeByte, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	ctx, err := b.ReadStringMap()
	if err != nil {
		return nil, err
	}
	view, err := b.ReadEncapsulation()
	if err != nil {
		return nil, err
	}
	return &Request{
		RequestID: id,
		Identity:  identity.Identity{Category: category, Name: name},
		Facet:     facet,
		Operation: op,
		Mode:      reference.InvocationMode(modeByte),
		Context:   ctx,
		Params:    view,
	}, nil
}

// Reply is one request's response, carrying one of the wire reply statuses.
type Reply struct {
	RequestID int32
	Status    frosterr.ReplyStatus
	Body      []byte // empty for StatusOK with void return; otherwise an encapsulation
}

func writeReply(b *wire.Buffer, protocol, encoding wire.Version, rep *Reply) {
	sizePos := len(b.Bytes())
	writeHeader(b, header{protocol: protocol, encoding: encoding, typ: msgReply})
	b.WriteI32(rep.RequestID)
	b.WriteU8(uint8(rep.Status))
	b.WriteRaw(rep.Body)
	b.PatchI32(sizePos+10, int32(len(b.Bytes())-sizePos))
}

func readReplyBody(b *wire.Buffer, bodyEnd int) (*Reply, error) {
	id, err := b.ReadI32()
	if err != nil {
		return nil, err
	}
	statusByte, err := b.ReadU8()
	if err != nil {
		return nil, err
	}
	body, err := b.ReadRaw(bodyEnd - b.Pos())
	if err != nil {
		return nil, err
	}
	return &Reply{RequestID: id, Status: frosterr.ReplyStatus(statusByte), Body: body}, nil
}
