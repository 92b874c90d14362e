package openflow

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Hello opens the handshake; both sides send it on connect.
type Hello struct{}

func (m *Hello) MsgType() MsgType { return TypeHello }

func (m *Hello) encodeBody() []byte { return nil }

func (m *Hello) decodeBody(body []byte) error { return nil }

// FeaturesRequest asks the switch for its identity.
type FeaturesRequest struct{}

func (m *FeaturesRequest) MsgType() MsgType { return TypeFeaturesRequest }

func (m *FeaturesRequest) encodeBody() []byte { return nil }

func (m *FeaturesRequest) decodeBody(body []byte) error { return nil }

// FeaturesReply carries the switch's datapath identity.
type FeaturesReply struct {
	DatapathID uint64
}

func (m *FeaturesReply) MsgType() MsgType { return TypeFeaturesReply }

func (m *FeaturesReply) encodeBody() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, m.DatapathID)
	return buf
}

func (m *FeaturesReply) decodeBody(body []byte) error {
	if len(body) != 8 {
		return fmt.Errorf("openflow: features reply body must be 8 bytes, got %d", len(body))
	}
	m.DatapathID = binary.BigEndian.Uint64(body)
	return nil
}

// PacketIn is a data-plane miss delivered to the controller.
type PacketIn struct {
	BufferID uint32
	InPort   uint32
	Frame    []byte
}

func (m *PacketIn) MsgType() MsgType { return TypePacketIn }

func (m *PacketIn) encodeBody() []byte {
	buf := make([]byte, 10+len(m.Frame))
	binary.BigEndian.PutUint32(buf[0:4], m.BufferID)
	binary.BigEndian.PutUint32(buf[4:8], m.InPort)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(m.Frame)))
	copy(buf[10:], m.Frame)
	return buf
}

func (m *PacketIn) decodeBody(body []byte) error {
	if len(body) < 10 {
		return fmt.Errorf("openflow: packet-in body too short: %d bytes", len(body))
	}
	m.BufferID = binary.BigEndian.Uint32(body[0:4])
	m.InPort = binary.BigEndian.Uint32(body[4:8])
	frameLen := int(binary.BigEndian.Uint16(body[8:10]))
	if len(body) != 10+frameLen {
		return fmt.Errorf("openflow: packet-in frame length mismatch: header says %d, body carries %d", frameLen, len(body)-10)
	}
	m.Frame = make([]byte, frameLen)
	copy(m.Frame, body[10:])
	return nil
}

// Match selects the packets a flow entry applies to. Zero values are
// wildcards: InPort 0, EthType 0, and nil IPs match anything.
type Match struct {
	InPort   uint32
	EthType  uint16
	IPv4Src  net.IP
	IPv4Dst  net.IP
}

const matchSize = 14

func (m Match) encode(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], m.InPort)
	binary.BigEndian.PutUint16(buf[4:6], m.EthType)
	putIPv4(buf[6:10], m.IPv4Src)
	putIPv4(buf[10:14], m.IPv4Dst)
}

func decodeMatch(buf []byte) Match {
	return Match{
		InPort:  binary.BigEndian.Uint32(buf[0:4]),
		EthType: binary.BigEndian.Uint16(buf[4:6]),
		IPv4Src: ipv4At(buf[6:10]),
		IPv4Dst: ipv4At(buf[10:14]),
	}
}

// ActionType identifies a flow or packet-out action.
type ActionType byte

const (
	ActionTypeOutput     ActionType = 0
	ActionTypeSetIPv4Src ActionType = 1
	ActionTypeSetIPv4Dst ActionType = 2
)

// Action is one output or set-field action. Port is used by output actions,
// IP by the set-field actions.
type Action struct {
	Type ActionType
	Port uint32
	IP   net.IP
}

const actionSize = 9

// OutputAction forwards the packet out the given port.
func OutputAction(port uint32) Action {
	return Action{Type: ActionTypeOutput, Port: port}
}

// SetIPv4SrcAction rewrites the IPv4 source address.
func SetIPv4SrcAction(ip net.IP) Action {
	return Action{Type: ActionTypeSetIPv4Src, IP: ip}
}

// SetIPv4DstAction rewrites the IPv4 destination address.
func SetIPv4DstAction(ip net.IP) Action {
	return Action{Type: ActionTypeSetIPv4Dst, IP: ip}
}

func (a Action) encode(buf []byte) {
	buf[0] = byte(a.Type)
	binary.BigEndian.PutUint32(buf[1:5], a.Port)
	putIPv4(buf[5:9], a.IP)
}

func decodeAction(buf []byte) (Action, error) {
	t := ActionType(buf[0])
	switch t {
	case ActionTypeOutput, ActionTypeSetIPv4Src, ActionTypeSetIPv4Dst:
	default:
		return Action{}, fmt.Errorf("openflow: unsupported action type: %d", buf[0])
	}
	return Action{
		Type: t,
		Port: binary.BigEndian.Uint32(buf[1:5]),
		IP:   ipv4At(buf[5:9]),
	}, nil
}

// FlowMod installs a flow entry: packets matching Match get Actions applied.
// Zero timeouts leave expiry to the switch default.
type FlowMod struct {
	Priority    uint16
	IdleTimeout uint16
	HardTimeout uint16
	Match       Match
	Actions     []Action
}

func (m *FlowMod) MsgType() MsgType { return TypeFlowMod }

func (m *FlowMod) encodeBody() []byte {
	buf := make([]byte, 6+matchSize+2+actionSize*len(m.Actions))

	offset := 0
	binary.BigEndian.PutUint16(buf[offset:offset+2], m.Priority)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:offset+2], m.IdleTimeout)
	offset += 2
	binary.BigEndian.PutUint16(buf[offset:offset+2], m.HardTimeout)
	offset += 2

	m.Match.encode(buf[offset : offset+matchSize])
	offset += matchSize

	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(m.Actions)))
	offset += 2

	for _, a := range m.Actions {
		a.encode(buf[offset : offset+actionSize])
		offset += actionSize
	}

	return buf
}

func (m *FlowMod) decodeBody(body []byte) error {
	if len(body) < 6+matchSize+2 {
		return fmt.Errorf("openflow: flow-mod body too short: %d bytes", len(body))
	}

	offset := 0
	m.Priority = binary.BigEndian.Uint16(body[offset : offset+2])
	offset += 2
	m.IdleTimeout = binary.BigEndian.Uint16(body[offset : offset+2])
	offset += 2
	m.HardTimeout = binary.BigEndian.Uint16(body[offset : offset+2])
	offset += 2

	m.Match = decodeMatch(body[offset : offset+matchSize])
	offset += matchSize

	count := int(binary.BigEndian.Uint16(body[offset : offset+2]))
	offset += 2

	if len(body) != offset+count*actionSize {
		return fmt.Errorf("openflow: flow-mod action block length mismatch")
	}

	m.Actions = make([]Action, 0, count)
	for i := 0; i < count; i++ {
		a, err := decodeAction(body[offset : offset+actionSize])
		if err != nil {
			return err
		}
		m.Actions = append(m.Actions, a)
		offset += actionSize
	}

	return nil
}

// PacketOut instructs the switch to emit a packet, either the buffered one
// referenced by BufferID or the frame carried in the message.
type PacketOut struct {
	BufferID uint32
	InPort   uint32
	Actions  []Action
	Frame    []byte
}

func (m *PacketOut) MsgType() MsgType { return TypePacketOut }

func (m *PacketOut) encodeBody() []byte {
	buf := make([]byte, 10+actionSize*len(m.Actions)+len(m.Frame))

	offset := 0
	binary.BigEndian.PutUint32(buf[offset:offset+4], m.BufferID)
	offset += 4
	binary.BigEndian.PutUint32(buf[offset:offset+4], m.InPort)
	offset += 4
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(m.Actions)))
	offset += 2

	for _, a := range m.Actions {
		a.encode(buf[offset : offset+actionSize])
		offset += actionSize
	}

	copy(buf[offset:], m.Frame)

	return buf
}

func (m *PacketOut) decodeBody(body []byte) error {
	if len(body) < 10 {
		return fmt.Errorf("openflow: packet-out body too short: %d bytes", len(body))
	}

	offset := 0
	m.BufferID = binary.BigEndian.Uint32(body[offset : offset+4])
	offset += 4
	m.InPort = binary.BigEndian.Uint32(body[offset : offset+4])
	offset += 4
	count := int(binary.BigEndian.Uint16(body[offset : offset+2]))
	offset += 2

	if len(body) < offset+count*actionSize {
		return fmt.Errorf("openflow: packet-out action block length mismatch")
	}

	m.Actions = make([]Action, 0, count)
	for i := 0; i < count; i++ {
		a, err := decodeAction(body[offset : offset+actionSize])
		if err != nil {
			return err
		}
		m.Actions = append(m.Actions, a)
		offset += actionSize
	}

	m.Frame = make([]byte, len(body)-offset)
	copy(m.Frame, body[offset:])

	return nil
}

func putIPv4(buf []byte, ip net.IP) {
	if v4 := ip.To4(); v4 != nil {
		copy(buf, v4)
	}
}

func ipv4At(buf []byte) net.IP {
	if buf[0] == 0 && buf[1] == 0 && buf[2] == 0 && buf[3] == 0 {
		return nil
	}
	ip := make(net.IP, 4)
	copy(ip, buf)
	return ip
}
