package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/yaml.v3"

	"github.com/gbonacini/arpchat/internal/frame"
)

func TestTemplateFieldsFillsWireConstants(t *testing.T) {
	cfg := &Config{
		HdrSenderMAC: frame.MacAddr{1, 2, 3, 4, 5, 6},
		HdrTargetMAC: frame.MacAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		FrameType:    0x0806,
		Opcode:       1,
	}

	pkt := cfg.TemplateFields()
	assert.Equal(t, uint16(1), pkt.HwType)
	assert.Equal(t, uint16(0x0800), pkt.ProtoType)
	assert.Equal(t, uint8(6), pkt.HwSize)
	assert.Equal(t, uint8(4), pkt.ProtoSize)
	assert.Equal(t, cfg.HdrSenderMAC, pkt.EthSrcMAC)
	assert.Equal(t, cfg.HdrTargetMAC, pkt.EthDstMAC)
}

func TestSaveSnapshotRoundTripsThroughYAML(t *testing.T) {
	cfg := &Config{
		HdrSenderMAC: frame.MacAddr{1, 2, 3, 4, 5, 6},
		FrameType:    0x0806,
		Opcode:       1,
		SenderIP:     frame.IpAddr{10, 0, 0, 1},
	}

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, SaveSnapshot(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got Config
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, cfg.HdrSenderMAC, got.HdrSenderMAC)
	assert.Equal(t, cfg.FrameType, got.FrameType)
	assert.Equal(t, cfg.SenderIP, got.SenderIP)
}

func TestValueAccessorsRejectWrongVariant(t *testing.T) {
	v := TextValue("hi")
	_, err := v.Integer("some-key")
	require.Error(t, err)

	var mismatch *TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestValueIsEmpty(t *testing.T) {
	assert.True(t, TextValue("").IsEmpty())
	assert.False(t, TextValue("x").IsEmpty())
	assert.False(t, IntegerValue(0).IsEmpty())
}
