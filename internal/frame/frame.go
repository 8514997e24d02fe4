// Package frame implements the 42-octet ARP-over-Ethernet wire codec.
//
// The layout matches spec.md section 3: an Ethernet header followed by an
// ARP-shaped payload whose sender-hardware-address field has been
// repurposed as a covert-channel payload carrier rather than a real MAC.
// Because of that repurposing the payload cannot round-trip through
// gopacket's layers.ARP (which validates hardware/protocol address widths
// against its own semantics), so the ARP-shaped portion is encoded and
// decoded directly against the byte table below; only the Ethernet header
// is built with gopacket, matching the teacher's BuildL2Rewrite idiom.
package frame

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/gbonacini/arpchat/pkg/logger"
)

// Size is the exact on-wire length of an ArpPacket frame.
const Size = 42

const (
	offEthDstMAC    = 0
	offEthSrcMAC    = 6
	offFrameType    = 12
	offHwType       = 14
	offProtoType    = 16
	offHwSize       = 18
	offProtoSize    = 19
	offOpcode       = 20
	offArpSenderMAC = 22
	offArpSenderIP  = 28
	offArpTargetMAC = 32
	offArpTargetIP  = 38
)

// MacAddr is an ordered 6-octet hardware address.
type MacAddr [6]byte

// String renders m in the standard colon-separated hex form, the same
// shape net.HardwareAddr uses, for log lines and config snapshots.
func (m MacAddr) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IpAddr is an ordered 4-octet IPv4 address.
type IpAddr [4]byte

// String renders ip in dotted-decimal form.
func (ip IpAddr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}

// ArpPacket is the host-order, in-memory view of the 42-octet wire frame.
// All multi-octet fields are host-order; Encode/Decode perform the network
// byte order conversion at the boundary.
type ArpPacket struct {
	EthDstMAC    MacAddr
	EthSrcMAC    MacAddr
	FrameType    uint16
	HwType       uint16
	ProtoType    uint16
	HwSize       uint8
	ProtoSize    uint8
	Opcode       uint16
	ArpSenderMAC MacAddr
	ArpSenderIP  IpAddr
	ArpTargetMAC MacAddr
	ArpTargetIP  IpAddr
}

// DecodeError reports a malformed or undersized inbound frame.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode arp frame: %s", e.Reason)
}

var log = logger.Get(logger.Frame)

// Encode serializes pkt into a fixed 42-octet buffer in network byte order.
func Encode(pkt ArpPacket) ([Size]byte, error) {
	var out [Size]byte

	eth := &layers.Ethernet{
		SrcMAC:       pkt.EthSrcMAC[:],
		DstMAC:       pkt.EthDstMAC[:],
		EthernetType: layers.EthernetType(pkt.FrameType),
	}

	buf := gopacket.NewSerializeBuffer()
	if err := eth.SerializeTo(buf, gopacket.SerializeOptions{}); err != nil {
		return out, fmt.Errorf("encode arp frame: serialize ethernet header: %w", err)
	}
	copy(out[offEthDstMAC:], buf.Bytes())

	putUint16(out[offHwType:], pkt.HwType)
	putUint16(out[offProtoType:], pkt.ProtoType)
	out[offHwSize] = pkt.HwSize
	out[offProtoSize] = pkt.ProtoSize
	putUint16(out[offOpcode:], pkt.Opcode)
	copy(out[offArpSenderMAC:], pkt.ArpSenderMAC[:])
	copy(out[offArpSenderIP:], pkt.ArpSenderIP[:])
	copy(out[offArpTargetMAC:], pkt.ArpTargetMAC[:])
	copy(out[offArpTargetIP:], pkt.ArpTargetIP[:])

	log.Debug("encoded frame", "frame_type", pkt.FrameType, "opcode", pkt.Opcode)

	return out, nil
}

// Decode parses a wire buffer into an ArpPacket. buf may be longer than
// Size (a raw socket read delivers up to 65535 octets); only the first
// Size octets are consulted. A buffer shorter than Size fails with
// DecodeError.
func Decode(buf []byte) (ArpPacket, error) {
	var pkt ArpPacket

	if len(buf) < Size {
		return pkt, &DecodeError{Reason: fmt.Sprintf("short buffer: got %d want %d", len(buf), Size)}
	}

	copy(pkt.EthDstMAC[:], buf[offEthDstMAC:offEthDstMAC+6])
	copy(pkt.EthSrcMAC[:], buf[offEthSrcMAC:offEthSrcMAC+6])
	pkt.FrameType = getUint16(buf[offFrameType:])
	pkt.HwType = getUint16(buf[offHwType:])
	pkt.ProtoType = getUint16(buf[offProtoType:])
	pkt.HwSize = buf[offHwSize]
	pkt.ProtoSize = buf[offProtoSize]
	pkt.Opcode = getUint16(buf[offOpcode:])
	copy(pkt.ArpSenderMAC[:], buf[offArpSenderMAC:offArpSenderMAC+6])
	copy(pkt.ArpSenderIP[:], buf[offArpSenderIP:offArpSenderIP+4])
	copy(pkt.ArpTargetMAC[:], buf[offArpTargetMAC:offArpTargetMAC+6])
	copy(pkt.ArpTargetIP[:], buf[offArpTargetIP:offArpTargetIP+4])

	return pkt, nil
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func getUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
