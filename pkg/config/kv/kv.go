// Package kv is the default, runnable implementation of
// config.ConfigSource (spec.md section 6): a flat "key = value" text
// file, one assignment per line, '#' comments and blank lines ignored.
// spec.md treats the config loader as an out-of-scope collaborator, but
// a complete repository still needs one concrete implementation to run;
// this one follows the original C++ implementation's addLoadableVariable
// key set and MAC/IP text grammar exactly.
package kv

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/gbonacini/arpchat/internal/filter"
	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/pkg/config"
	"github.com/gbonacini/arpchat/pkg/logger"
)

var log = logger.Get(logger.Config)

// mandatory text/numeric keys that seed the outgoing frame template.
const (
	keyHdrSenderMAC = "hdrSenderMAC"
	keyHdrTargetMAC = "hdrTargetMAC"
	keyFrameType    = "frameType"
	keyOpcode       = "opcode"
	keyTargetMAC    = "targetMAC"
	keyTargetIp     = "targetIp"
	keySenderIp     = "senderIp"
)

// optional filter keys; absence means "no rule for this field".
const (
	keyFrameTypeFilter = "frameTypeFilter"
	keyHardTypeFilter  = "hardTypeFilter"
	keyProtTypeFilter  = "protTypeFilter"
	keyHardSizeFilter  = "hardSizeFilter"
	keyProtSizeFilter  = "protSizeFilter"
	keyOpcodeFilter    = "opcodeFilter"
	keySenderMACFilter = "senderMACFilter"
	keyTargetMACFilter = "targetMACFilter"
	keySenderIpFilter  = "senderIpFilter"
	keyTargetIpFilter  = "targetIpFilter"
)

var mandatoryKeys = []string{
	keyHdrSenderMAC, keyHdrTargetMAC, keyFrameType, keyOpcode,
	keyTargetMAC, keyTargetIp, keySenderIp,
}

// Loader implements config.ConfigSource over the flat key/value grammar.
type Loader struct{}

// NewLoader returns the default kv Loader.
func NewLoader() *Loader { return &Loader{} }

// Load reads path, parses every recognized key (spec.md section 6's
// table) into a tagged-union environment, and derives the typed Config
// from it via Value's accessors. Any unreadable file, missing mandatory
// key, or mistyped value fails with *config.Error.
func (l *Loader) Load(path string) (*config.Config, error) {
	raw, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	for _, key := range mandatoryKeys {
		v, ok := raw[key]
		if !ok || v.IsEmpty() {
			return nil, &config.Error{Path: path, Reason: fmt.Sprintf("missing mandatory key %q", key)}
		}
	}

	cfg := &config.Config{FilterRules: filter.Rules{}}

	var parseErr error
	assign := func(fn func() error) {
		if parseErr != nil {
			return
		}
		parseErr = fn()
	}

	assign(func() (err error) { cfg.HdrSenderMAC, err = macOf(raw[keyHdrSenderMAC], keyHdrSenderMAC); return })
	assign(func() (err error) { cfg.HdrTargetMAC, err = macOf(raw[keyHdrTargetMAC], keyHdrTargetMAC); return })
	assign(func() (err error) { cfg.FrameType, err = uint16Of(raw[keyFrameType], keyFrameType); return })
	assign(func() (err error) { cfg.Opcode, err = uint16Of(raw[keyOpcode], keyOpcode); return })
	assign(func() (err error) { cfg.TargetMAC, err = macOf(raw[keyTargetMAC], keyTargetMAC); return })
	assign(func() (err error) { cfg.TargetIP, err = ipOf(raw[keyTargetIp], keyTargetIp); return })
	assign(func() (err error) { cfg.SenderIP, err = ipOf(raw[keySenderIp], keySenderIp); return })

	if parseErr != nil {
		return nil, &config.Error{Path: path, Reason: parseErr.Error()}
	}

	if err := applyFilterRules(raw, cfg.FilterRules); err != nil {
		return nil, &config.Error{Path: path, Reason: err.Error()}
	}

	log.Info("config loaded", "path", path, "filter_rules", len(cfg.FilterRules))

	return cfg, nil
}

// uint16Of, uint8Of, macOf and ipOf derive a domain-typed value from a
// config.Value via its accessors: a key whose stored variant doesn't
// match what the caller expects surfaces as a config.TypeMismatchError
// rather than silently parsing garbage.
func uint16Of(v config.Value, key string) (uint16, error) {
	n, err := v.Integer(key)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xffff {
		return 0, fmt.Errorf("%s: value out of range for a 2-octet field", key)
	}
	return uint16(n), nil
}

func uint8Of(v config.Value, key string) (uint8, error) {
	n, err := v.Integer(key)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xff {
		return 0, fmt.Errorf("%s: value out of range for a 1-octet field", key)
	}
	return uint8(n), nil
}

func macOf(v config.Value, key string) (frame.MacAddr, error) {
	text, err := v.Text(key)
	if err != nil {
		return frame.MacAddr{}, err
	}
	return parseMAC(text)
}

func ipOf(v config.Value, key string) (frame.IpAddr, error) {
	text, err := v.Text(key)
	if err != nil {
		return frame.IpAddr{}, err
	}
	return parseIP(text)
}

func applyFilterRules(raw map[string]config.Value, rules filter.Rules) error {
	u16 := func(key string, field filter.FieldName) error {
		v, ok := raw[key]
		if !ok || v.IsEmpty() {
			return nil
		}
		n, err := uint16Of(v, key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		rules[field] = filter.U16Value(n)
		return nil
	}
	u8 := func(key string, field filter.FieldName) error {
		v, ok := raw[key]
		if !ok || v.IsEmpty() {
			return nil
		}
		n, err := uint8Of(v, key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		rules[field] = filter.U8Value(n)
		return nil
	}
	mac := func(key string, field filter.FieldName) error {
		v, ok := raw[key]
		if !ok || v.IsEmpty() {
			return nil
		}
		m, err := macOf(v, key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		rules[field] = filter.MACValue(m)
		return nil
	}
	ip := func(key string, field filter.FieldName) error {
		v, ok := raw[key]
		if !ok || v.IsEmpty() {
			return nil
		}
		addr, err := ipOf(v, key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		rules[field] = filter.IPValue(addr)
		return nil
	}

	for _, step := range []func() error{
		func() error { return u16(keyFrameTypeFilter, filter.FieldFrameType) },
		func() error { return u16(keyHardTypeFilter, filter.FieldHwType) },
		func() error { return u16(keyProtTypeFilter, filter.FieldProtType) },
		func() error { return u8(keyHardSizeFilter, filter.FieldHwSize) },
		func() error { return u8(keyProtSizeFilter, filter.FieldProtSize) },
		func() error { return u16(keyOpcodeFilter, filter.FieldOpcode) },
		func() error { return mac(keySenderMACFilter, filter.FieldSenderMAC) },
		func() error { return mac(keyTargetMACFilter, filter.FieldTargetMAC) },
		func() error { return ip(keySenderIpFilter, filter.FieldSenderIp) },
		func() error { return ip(keyTargetIpFilter, filter.FieldTargetIp) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// parseFile reads path into a tagged-union environment keyed by config
// key: a value that parses whole as a decimal or "0x"-prefixed
// hexadecimal number becomes the integer variant, everything else (MAC
// and IP values always carry ':' or '.') becomes the text variant. This
// is the original implementation's ConfigVar role — each loaded variable
// carries its own type tag rather than staying a bag of strings.
func parseFile(path string) (map[string]config.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &config.Error{Path: path, Reason: err.Error()}
	}
	defer f.Close()

	out := make(map[string]config.Value)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, &config.Error{Path: path, Reason: fmt.Sprintf("line %d: missing '='", lineNo)}
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])

		if n, ok := tryParseInteger(value); ok {
			out[key] = config.IntegerValue(n)
		} else {
			out[key] = config.TextValue(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &config.Error{Path: path, Reason: err.Error()}
	}

	return out, nil
}

// tryParseInteger reports whether text parses whole as a decimal or
// "0x"-prefixed hexadecimal number.
func tryParseInteger(text string) (int64, bool) {
	if text == "" {
		return 0, false
	}
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		v, err := strconv.ParseInt(text[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	return v, err == nil
}

// parseMAC validates six ':'-separated hex groups, each 1-4 characters
// (an optional "0x" prefix allowed), each evaluating to at most 255 —
// the grammar in spec.md section 6. It is a small custom state machine
// rather than reuse of net.ParseMAC, since net.ParseMAC requires exactly
// two hex digits per group and rejects the "0x"-prefixed, variable-width
// groups this format allows.
func parseMAC(text string) (frame.MacAddr, error) {
	var mac frame.MacAddr

	groups := strings.Split(text, ":")
	if len(groups) != 6 {
		return mac, fmt.Errorf("parse MAC %q: want 6 ':'-separated groups, got %d", text, len(groups))
	}

	for i, g := range groups {
		g = strings.TrimPrefix(strings.TrimPrefix(g, "0x"), "0X")
		if len(g) == 0 || len(g) > 4 {
			return mac, fmt.Errorf("parse MAC %q: group %d %q must be 1-4 hex characters", text, i, groups[i])
		}
		v, err := strconv.ParseUint(g, 16, 32)
		if err != nil || v > 255 {
			return mac, fmt.Errorf("parse MAC %q: group %d %q out of range", text, i, groups[i])
		}
		mac[i] = byte(v)
	}

	return mac, nil
}

// parseIP validates four '.'-separated decimal groups, each 1-3
// characters, each at most 255 (spec.md section 6), using the standard
// library's IPv4 parser per spec.md section 9's recommendation.
func parseIP(text string) (frame.IpAddr, error) {
	var ip frame.IpAddr

	groups := strings.Split(text, ".")
	if len(groups) != 4 {
		return ip, fmt.Errorf("parse IP %q: want 4 '.'-separated groups, got %d", text, len(groups))
	}
	for i, g := range groups {
		if len(g) == 0 || len(g) > 3 {
			return ip, fmt.Errorf("parse IP %q: group %d %q must be 1-3 digits", text, i, g)
		}
	}

	parsed := net.ParseIP(text)
	if parsed == nil {
		return ip, fmt.Errorf("parse IP %q: invalid IPv4 address", text)
	}
	v4 := parsed.To4()
	if v4 == nil {
		return ip, fmt.Errorf("parse IP %q: not an IPv4 address", text)
	}
	copy(ip[:], v4)

	return ip, nil
}

