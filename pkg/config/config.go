package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gbonacini/arpchat/internal/filter"
	"github.com/gbonacini/arpchat/internal/frame"
)

// Error reports an unreadable or invalid configuration file, or a
// mistyped value within one (spec.md section 7's ConfigError). It is
// fatal at init.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s", e.Reason)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Reason)
}

// Config is the typed key/value environment spec.md section 6 requires
// every config-loader collaborator to fill. The mandatory fields seed the
// outgoing frame template; the optional filter fields populate
// filter.Rules.
type Config struct {
	HdrSenderMAC frame.MacAddr `yaml:"hdrSenderMAC"`
	HdrTargetMAC frame.MacAddr `yaml:"hdrTargetMAC"`
	FrameType    uint16        `yaml:"frameType"`
	Opcode       uint16        `yaml:"opcode"`
	TargetMAC    frame.MacAddr `yaml:"targetMAC"`
	TargetIP     frame.IpAddr  `yaml:"targetIp"`
	SenderIP     frame.IpAddr  `yaml:"senderIp"`

	FilterRules filter.Rules `yaml:"filterRules,omitempty"`
}

// ConfigSource is the contract any config-loader collaborator must
// satisfy. spec.md treats the config-file loader as an external
// collaborator supplying a typed key/value environment. The core
// (internal/transport) takes the *Config such a loader returns rather
// than a concrete file format, and Loader (pkg/config/kv) is the
// default, runnable implementation of this interface.
type ConfigSource interface {
	Load(path string) (*Config, error)
}

// TemplateFields returns the frame.ArpPacket defaults a Config seeds for
// the outgoing packet template, with the constants spec.md section 3
// fixes (hw_type=1, proto_type=0x0800, hw_size=6, proto_size=4) filled
// in alongside the configured values.
func (c *Config) TemplateFields() frame.ArpPacket {
	return frame.ArpPacket{
		EthDstMAC:    c.HdrTargetMAC,
		EthSrcMAC:    c.HdrSenderMAC,
		FrameType:    c.FrameType,
		HwType:       1,
		ProtoType:    0x0800,
		HwSize:       6,
		ProtoSize:    4,
		Opcode:       c.Opcode,
		ArpSenderIP:  c.SenderIP,
		ArpTargetMAC: c.TargetMAC,
		ArpTargetIP:  c.TargetIP,
	}
}

// SaveSnapshot dumps the resolved Config as YAML, mirroring the
// teacher's pkg/config.Save. The on-wire config format is the flat
// key/value grammar in spec.md section 6, not YAML; this exists purely
// as a debug/verbose-mode snapshot of what a loader actually resolved
// (used by cmd/arpchat under -d 2), not as an alternate input format.
func SaveSnapshot(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return &Error{Path: path, Reason: "marshal snapshot: " + err.Error()}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &Error{Path: path, Reason: "write snapshot: " + err.Error()}
	}
	return nil
}
