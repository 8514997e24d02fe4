package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gbonacini/arpchat/internal/frame"
)

func TestEvaluateEmptyRulesAcceptsEverything(t *testing.T) {
	pkt := frame.ArpPacket{Opcode: 1}
	require.True(t, Evaluate(nil, pkt))
	require.True(t, Evaluate(Rules{}, pkt))
}

func TestEvaluateOpcodeFilterScenarioS4(t *testing.T) {
	rules := Rules{FieldOpcode: U16Value(2)}

	dropped := frame.ArpPacket{Opcode: 1}
	require.False(t, Evaluate(rules, dropped))

	accepted := frame.ArpPacket{Opcode: 2}
	require.True(t, Evaluate(rules, accepted))
}

func TestEvaluateTargetIpMatchesTargetField(t *testing.T) {
	rules := Rules{FieldTargetIp: IPValue(frame.IpAddr{10, 0, 0, 9})}

	pkt := frame.ArpPacket{
		ArpSenderIP: frame.IpAddr{10, 0, 0, 9},
		ArpTargetIP: frame.IpAddr{10, 0, 0, 1},
	}
	require.False(t, Evaluate(rules, pkt), "targetIp rule must compare against the target field, not sender")

	pkt.ArpTargetIP = frame.IpAddr{10, 0, 0, 9}
	require.True(t, Evaluate(rules, pkt))
}

func TestEvaluateAllRulesMustMatch(t *testing.T) {
	rules := Rules{
		FieldOpcode:    U16Value(1),
		FieldFrameType: U16Value(0x0806),
	}

	pkt := frame.ArpPacket{Opcode: 1, FrameType: 0x0800}
	require.False(t, Evaluate(rules, pkt))

	pkt.FrameType = 0x0806
	require.True(t, Evaluate(rules, pkt))
}

func TestEvaluateMACAndSizeFields(t *testing.T) {
	mac := frame.MacAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	rules := Rules{
		FieldSenderMAC: MACValue(mac),
		FieldHwSize:    U8Value(6),
		FieldProtSize:  U8Value(4),
	}

	pkt := frame.ArpPacket{ArpSenderMAC: mac, HwSize: 6, ProtoSize: 4}
	require.True(t, Evaluate(rules, pkt))

	pkt.HwSize = 8
	require.False(t, Evaluate(rules, pkt))
}
