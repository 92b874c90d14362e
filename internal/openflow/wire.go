// Package openflow implements the subset of the OpenFlow 1.3 control
// protocol this controller speaks: Hello, FeaturesRequest/Reply, PacketIn,
// FlowMod, and PacketOut.
//
// Every message starts with the fixed 8-byte OpenFlow header; the receiver
// reads the header first to learn the total message length, then reads
// exactly the remaining bytes.
//
//	0        1        2         4          8
//	┌────────┬────────┬─────────┬──────────┬───────────────┐
//	│version │  type  │ length  │   xid    │   body ...    │
//	│  0x04  │        │ uint16  │  uint32  │               │
//	└────────┴────────┴─────────┴──────────┴───────────────┘
//
// Match and action blocks use a fixed layout instead of the full OXM TLV
// space: only the four match fields and three actions the controller uses
// exist on the wire.
package openflow

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Version is the only protocol version accepted on the wire (OpenFlow 1.3).
const Version byte = 0x04

// HeaderSize is the fixed OpenFlow header length in bytes.
const HeaderSize = 8

// MsgType identifies the message carried after the header.
// Values follow the OpenFlow 1.3 numbering.
type MsgType byte

const (
	TypeHello           MsgType = 0
	TypeFeaturesRequest MsgType = 5
	TypeFeaturesReply   MsgType = 6
	TypePacketIn        MsgType = 10
	TypePacketOut       MsgType = 13
	TypeFlowMod         MsgType = 14
)

// Reserved output ports.
const (
	PortFlood      uint32 = 0xfffffffb
	PortController uint32 = 0xfffffffd
)

// NoBuffer indicates the full frame travels in the message instead of a
// switch buffer.
const NoBuffer uint32 = 0xffffffff

// Message is one decoded OpenFlow message.
type Message interface {
	MsgType() MsgType
	encodeBody() []byte
	decodeBody(body []byte) error
}

// Encode writes a complete message (header + body) to w. The caller must
// hold a write lock if multiple goroutines share the same writer, otherwise
// messages interleave and corrupt the stream.
func Encode(w io.Writer, xid uint32, msg Message) error {
	body := msg.encodeBody()

	total := HeaderSize + len(body)
	if total > 0xffff {
		return fmt.Errorf("openflow: message too large: %d bytes", total)
	}

	buf := make([]byte, HeaderSize, total)
	buf[0] = Version
	buf[1] = byte(msg.MsgType())
	binary.BigEndian.PutUint16(buf[2:4], uint16(total))
	binary.BigEndian.PutUint32(buf[4:8], xid)
	buf = append(buf, body...)

	if _, err := w.Write(buf); err != nil {
		return err
	}
	return nil
}

// Decode reads one complete message from r. It validates the version and
// message type and uses io.ReadFull so partial reads never produce a
// truncated body.
func Decode(r io.Reader) (uint32, Message, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	if header[0] != Version {
		return 0, nil, fmt.Errorf("openflow: unsupported version: 0x%02x", header[0])
	}

	length := binary.BigEndian.Uint16(header[2:4])
	if int(length) < HeaderSize {
		return 0, nil, fmt.Errorf("openflow: invalid message length: %d", length)
	}
	xid := binary.BigEndian.Uint32(header[4:8])

	body := make([]byte, int(length)-HeaderSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	var msg Message
	switch MsgType(header[1]) {
	case TypeHello:
		msg = &Hello{}
	case TypeFeaturesRequest:
		msg = &FeaturesRequest{}
	case TypeFeaturesReply:
		msg = &FeaturesReply{}
	case TypePacketIn:
		msg = &PacketIn{}
	case TypePacketOut:
		msg = &PacketOut{}
	case TypeFlowMod:
		msg = &FlowMod{}
	default:
		return 0, nil, fmt.Errorf("openflow: unsupported message type: %d", header[1])
	}

	if err := msg.decodeBody(body); err != nil {
		return 0, nil, err
	}

	return xid, msg, nil
}
