// Package filter evaluates equality predicates over a decoded ArpPacket.
//
// spec.md section 9 flags the teacher's pattern of keying filter actions by
// capture-everything closures over the shared packet; this package replaces
// that with a closed sum type, FieldName, and a single Evaluate function —
// no heterogeneous function map is needed.
package filter

import (
	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/pkg/logger"
)

// FieldName is the closed set of fields a rule may match against.
type FieldName string

const (
	FieldFrameType FieldName = "frameType"
	FieldHwType    FieldName = "hwType"
	FieldProtType  FieldName = "protType"
	FieldHwSize    FieldName = "hwSize"
	FieldProtSize  FieldName = "protSize"
	FieldOpcode    FieldName = "opcode"
	FieldSenderMAC FieldName = "senderMAC"
	FieldSenderIp  FieldName = "senderIp"
	FieldTargetMAC FieldName = "targetMAC"
	FieldTargetIp  FieldName = "targetIp"
)

// Value is the expected value of a rule, matching the width of its field.
type Value struct {
	U8  uint8
	U16 uint16
	MAC frame.MacAddr
	IP  frame.IpAddr
}

// U8Value builds a Value for the 1-octet fields (hwSize, protSize).
func U8Value(v uint8) Value { return Value{U8: v} }

// U16Value builds a Value for the 2-octet fields (frameType, hwType,
// protType, opcode).
func U16Value(v uint16) Value { return Value{U16: v} }

// MACValue builds a Value for the MAC fields (senderMAC, targetMAC).
func MACValue(v frame.MacAddr) Value { return Value{MAC: v} }

// IPValue builds a Value for the IP fields (senderIp, targetIp).
func IPValue(v frame.IpAddr) Value { return Value{IP: v} }

// Rules is a set of named equality predicates. A zero-value (nil or empty)
// Rules accepts every packet.
type Rules map[FieldName]Value

var log = logger.Get(logger.Filter)

// Evaluate reports whether pkt matches every rule in rules. With no rules,
// every packet is accepted (spec.md section 4.3).
//
// The targetIp rule resolution follows spec.md section 9 open question 1,
// option (b): each named rule matches the field of the same name, so
// FieldTargetIp compares against pkt.ArpTargetIP, not the sender IP the
// original C++ implementation mistakenly compared it against.
func Evaluate(rules Rules, pkt frame.ArpPacket) bool {
	for name, expected := range rules {
		if !matchField(name, expected, pkt) {
			log.Debug("packet filtered", "field", name)
			return false
		}
	}
	return true
}

func matchField(name FieldName, expected Value, pkt frame.ArpPacket) bool {
	switch name {
	case FieldFrameType:
		return expected.U16 == pkt.FrameType
	case FieldHwType:
		return expected.U16 == pkt.HwType
	case FieldProtType:
		return expected.U16 == pkt.ProtoType
	case FieldHwSize:
		return expected.U8 == pkt.HwSize
	case FieldProtSize:
		return expected.U8 == pkt.ProtoSize
	case FieldOpcode:
		return expected.U16 == pkt.Opcode
	case FieldSenderMAC:
		return expected.MAC == pkt.ArpSenderMAC
	case FieldSenderIp:
		return expected.IP == pkt.ArpSenderIP
	case FieldTargetMAC:
		return expected.MAC == pkt.ArpTargetMAC
	case FieldTargetIp:
		return expected.IP == pkt.ArpTargetIP
	default:
		log.Warn("unknown filter field, treating as non-match", "field", name)
		return false
	}
}
