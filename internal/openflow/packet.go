package openflow

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Ethernet type values the controller cares about.
const (
	EthTypeIPv4 uint16 = 0x0800
	EthTypeLLDP uint16 = 0x88cc
)

const ethernetHeaderSize = 14

// EthernetFrame is a parsed Ethernet II header plus payload.
type EthernetFrame struct {
	Dst     net.HardwareAddr
	Src     net.HardwareAddr
	EthType uint16
	Payload []byte
}

// IsLLDP reports whether the frame is a topology-discovery control frame.
func (f *EthernetFrame) IsLLDP() bool {
	return f.EthType == EthTypeLLDP
}

// ParseEthernet parses an Ethernet II header. The payload slice aliases the
// input buffer.
func ParseEthernet(data []byte) (*EthernetFrame, error) {
	if len(data) < ethernetHeaderSize {
		return nil, fmt.Errorf("openflow: ethernet frame too short: %d bytes", len(data))
	}

	frame := &EthernetFrame{
		Dst:     net.HardwareAddr(data[0:6]),
		Src:     net.HardwareAddr(data[6:12]),
		EthType: binary.BigEndian.Uint16(data[12:14]),
		Payload: data[ethernetHeaderSize:],
	}

	return frame, nil
}

// IPv4Header is the subset of the IPv4 header the controller matches on.
type IPv4Header struct {
	Src      net.IP
	Dst      net.IP
	Protocol byte
}

// ParseIPv4 parses an IPv4 header from an Ethernet payload.
func ParseIPv4(payload []byte) (*IPv4Header, error) {
	if len(payload) < 20 {
		return nil, fmt.Errorf("openflow: ipv4 header too short: %d bytes", len(payload))
	}

	if version := payload[0] >> 4; version != 4 {
		return nil, fmt.Errorf("openflow: not an ipv4 packet: version %d", version)
	}

	src := make(net.IP, 4)
	copy(src, payload[12:16])
	dst := make(net.IP, 4)
	copy(dst, payload[16:20])

	return &IPv4Header{
		Src:      src,
		Dst:      dst,
		Protocol: payload[9],
	}, nil
}
