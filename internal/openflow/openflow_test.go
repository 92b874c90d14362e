package openflow_test

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/sdn-lb/internal/openflow"
)

func TestOpenFlow(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OpenFlow Suite")
}

var _ = Describe("Wire", func() {
	It("should carry a flow mod across encode and decode", func() {
		mod := &openflow.FlowMod{
			Priority: 10,
			Match: openflow.Match{
				InPort:  3,
				EthType: openflow.EthTypeIPv4,
				IPv4Src: net.IPv4(10, 0, 0, 7).To4(),
				IPv4Dst: net.IPv4(10, 0, 0, 100).To4(),
			},
			Actions: []openflow.Action{
				openflow.SetIPv4DstAction(net.IPv4(10, 0, 0, 1).To4()),
				openflow.OutputAction(2),
			},
		}

		var buf bytes.Buffer
		Expect(openflow.Encode(&buf, 42, mod)).To(Succeed())

		xid, msg, err := openflow.Decode(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(xid).To(Equal(uint32(42)))

		decoded, ok := msg.(*openflow.FlowMod)
		Expect(ok).To(BeTrue())
		Expect(decoded.Priority).To(Equal(uint16(10)))
		Expect(decoded.Match.InPort).To(Equal(uint32(3)))
		Expect(decoded.Match.EthType).To(Equal(openflow.EthTypeIPv4))
		Expect(decoded.Match.IPv4Src.Equal(net.IPv4(10, 0, 0, 7))).To(BeTrue())
		Expect(decoded.Match.IPv4Dst.Equal(net.IPv4(10, 0, 0, 100))).To(BeTrue())
		Expect(decoded.Actions).To(HaveLen(2))
		Expect(decoded.Actions[0].Type).To(Equal(openflow.ActionTypeSetIPv4Dst))
		Expect(decoded.Actions[1].Port).To(Equal(uint32(2)))
	})

	It("should treat zero match fields as wildcards", func() {
		mod := &openflow.FlowMod{
			Priority: 0,
			Actions:  []openflow.Action{openflow.OutputAction(openflow.PortController)},
		}

		var buf bytes.Buffer
		Expect(openflow.Encode(&buf, 1, mod)).To(Succeed())

		_, msg, err := openflow.Decode(&buf)
		Expect(err).NotTo(HaveOccurred())

		decoded := msg.(*openflow.FlowMod)
		Expect(decoded.Match.InPort).To(BeZero())
		Expect(decoded.Match.EthType).To(BeZero())
		Expect(decoded.Match.IPv4Src).To(BeNil())
		Expect(decoded.Match.IPv4Dst).To(BeNil())
	})

	It("should reject an unsupported version", func() {
		var buf bytes.Buffer
		Expect(openflow.Encode(&buf, 1, &openflow.Hello{})).To(Succeed())

		raw := buf.Bytes()
		raw[0] = 0x01

		_, _, err := openflow.Decode(bytes.NewReader(raw))
		Expect(err).To(MatchError(ContainSubstring("unsupported version")))
	})

	It("should reject an unsupported message type", func() {
		var buf bytes.Buffer
		Expect(openflow.Encode(&buf, 1, &openflow.Hello{})).To(Succeed())

		raw := buf.Bytes()
		raw[1] = 0x77

		_, _, err := openflow.Decode(bytes.NewReader(raw))
		Expect(err).To(MatchError(ContainSubstring("unsupported message type")))
	})

	It("should fail on a truncated body", func() {
		var buf bytes.Buffer
		Expect(openflow.Encode(&buf, 1, &openflow.PacketIn{
			BufferID: openflow.NoBuffer,
			InPort:   1,
			Frame:    []byte{1, 2, 3, 4},
		})).To(Succeed())

		raw := buf.Bytes()

		_, _, err := openflow.Decode(bytes.NewReader(raw[:len(raw)-2]))
		Expect(err).To(HaveOccurred())
	})

	It("should reject a packet-in whose frame length disagrees with the body", func() {
		var buf bytes.Buffer
		Expect(openflow.Encode(&buf, 1, &openflow.PacketIn{
			BufferID: openflow.NoBuffer,
			InPort:   1,
			Frame:    []byte{1, 2, 3, 4},
		})).To(Succeed())

		raw := buf.Bytes()
		// Corrupt the embedded frame length.
		binary.BigEndian.PutUint16(raw[openflow.HeaderSize+8:], 9)

		_, _, err := openflow.Decode(bytes.NewReader(raw))
		Expect(err).To(MatchError(ContainSubstring("frame length mismatch")))
	})

	It("should decode consecutive messages off one stream", func() {
		var buf bytes.Buffer
		Expect(openflow.Encode(&buf, 1, &openflow.Hello{})).To(Succeed())
		Expect(openflow.Encode(&buf, 2, &openflow.FeaturesReply{DatapathID: 0xabcdef})).To(Succeed())

		xid, msg, err := openflow.Decode(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(xid).To(Equal(uint32(1)))
		Expect(msg).To(BeAssignableToTypeOf(&openflow.Hello{}))

		xid, msg, err = openflow.Decode(&buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(xid).To(Equal(uint32(2)))
		Expect(msg.(*openflow.FeaturesReply).DatapathID).To(Equal(uint64(0xabcdef)))
	})
})

var _ = Describe("Packet parsing", func() {
	It("should parse an Ethernet frame and its IPv4 payload", func() {
		frame := buildIPv4Frame(net.IPv4(10, 0, 0, 9), net.IPv4(10, 0, 0, 100))

		eth, err := openflow.ParseEthernet(frame)
		Expect(err).NotTo(HaveOccurred())
		Expect(eth.EthType).To(Equal(openflow.EthTypeIPv4))
		Expect(eth.IsLLDP()).To(BeFalse())

		ip, err := openflow.ParseIPv4(eth.Payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(ip.Src.Equal(net.IPv4(10, 0, 0, 9))).To(BeTrue())
		Expect(ip.Dst.Equal(net.IPv4(10, 0, 0, 100))).To(BeTrue())
	})

	It("should flag LLDP frames", func() {
		frame := make([]byte, 14)
		binary.BigEndian.PutUint16(frame[12:14], openflow.EthTypeLLDP)

		eth, err := openflow.ParseEthernet(frame)
		Expect(err).NotTo(HaveOccurred())
		Expect(eth.IsLLDP()).To(BeTrue())
	})

	It("should reject short frames", func() {
		_, err := openflow.ParseEthernet([]byte{1, 2, 3})
		Expect(err).To(HaveOccurred())
	})

	It("should reject non-IPv4 payloads", func() {
		payload := make([]byte, 20)
		payload[0] = 0x60 // version 6

		_, err := openflow.ParseIPv4(payload)
		Expect(err).To(MatchError(ContainSubstring("not an ipv4 packet")))
	})
})

// buildIPv4Frame assembles a minimal Ethernet II + IPv4 header.
func buildIPv4Frame(src, dst net.IP) []byte {
	frame := make([]byte, 14+20)
	binary.BigEndian.PutUint16(frame[12:14], openflow.EthTypeIPv4)

	ip := frame[14:]
	ip[0] = 0x45 // version 4, IHL 5
	ip[9] = 6    // TCP
	copy(ip[12:16], src.To4())
	copy(ip[16:20], dst.To4())

	return frame
}
