package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleInstance() ArpPacket {
	return ArpPacket{
		EthDstMAC:    MacAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthSrcMAC:    MacAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0x55},
		FrameType:    0x0806,
		HwType:       1,
		ProtoType:    0x0800,
		HwSize:       6,
		ProtoSize:    4,
		Opcode:       1,
		ArpSenderMAC: MacAddr{0x68, 0x69, 0x00, 0x00, 0x00, 0x00},
		ArpSenderIP:  IpAddr{10, 0, 0, 1},
		ArpTargetMAC: MacAddr{0, 0, 0, 0, 0, 0},
		ArpTargetIP:  IpAddr{10, 0, 0, 2},
	}
}

func TestEncodeSizeIsExact(t *testing.T) {
	out, err := Encode(sampleInstance())
	require.NoError(t, err)
	require.Len(t, out, Size)
}

func TestRoundTrip(t *testing.T) {
	want := sampleInstance()

	out, err := Encode(want)
	require.NoError(t, err)

	got, err := Decode(out[:])
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeShortBufferFails(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	require.Error(t, err)

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecodeToleratesLongerBuffer(t *testing.T) {
	want := sampleInstance()
	out, err := Encode(want)
	require.NoError(t, err)

	padded := append(out[:], make([]byte, 100)...)
	got, err := Decode(padded)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEndiannessOfFrameType(t *testing.T) {
	pkt := sampleInstance()
	pkt.FrameType = 0x0806

	out, err := Encode(pkt)
	require.NoError(t, err)

	require.Equal(t, byte(0x08), out[offFrameType])
	require.Equal(t, byte(0x06), out[offFrameType+1])
}
