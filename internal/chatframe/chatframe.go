// Package chatframe implements the fragmentation and reassembly framing
// that turns user text into a sequence of ARP frames and back
// (spec.md section 4.8).
//
// Content octets are sent unescaped, and Reassembler.Feed treats every
// 0x01 octet as a message boundary, so a 0x01 inside user text closes
// the current line just as the sentinel does.
package chatframe

import (
	"strings"
	"sync"

	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/pkg/logger"
)

// FragmentSize is the number of payload octets carried per ARP frame.
const FragmentSize = 6

// SentinelFirstByte marks the end-of-message fragment (spec.md section 3).
const SentinelFirstByte = 0x01

// Sentinel is the fragment appended after the last content fragment of a
// message: first octet 0x01, the remaining five zero.
var Sentinel = [FragmentSize]byte{SentinelFirstByte, 0, 0, 0, 0, 0}

// IsSentinel reports whether a fragment is the end-of-message marker.
func IsSentinel(fragment [FragmentSize]byte) bool {
	return fragment == Sentinel
}

// Fragment splits text into FragmentSize-octet chunks followed by the
// sentinel. The last partial chunk is right-padded with 0x00. An empty
// text yields a single fragment: just the sentinel (spec.md S1).
func Fragment(text string) [][FragmentSize]byte {
	b := []byte(text)
	n := (len(b) + FragmentSize - 1) / FragmentSize

	out := make([][FragmentSize]byte, 0, n+1)
	for i := 0; i < len(b); i += FragmentSize {
		var f [FragmentSize]byte
		end := i + FragmentSize
		if end > len(b) {
			end = len(b)
		}
		copy(f[:], b[i:end])
		out = append(out, f)
	}
	out = append(out, Sentinel)
	return out
}

// Reassembler accumulates inbound fragments into a display buffer plus a
// derived lines cache. Reassembly is stateless per fragment: there is no
// per-sender session, so every accepted packet's payload is appended to
// the same stream regardless of who sent it (spec.md section 4.8).
type Reassembler struct {
	mu        sync.Mutex
	lineWidth int
	lines     []string
	current   strings.Builder
}

// NewReassembler returns a Reassembler that wraps lines at lineWidth
// octets. A non-positive lineWidth disables wrapping.
func NewReassembler(lineWidth int) *Reassembler {
	return &Reassembler{lineWidth: lineWidth}
}

var log = logger.Get(logger.ChatFrame)

// Feed consumes one fragment drawn from the packet queue (the decoded
// ArpSenderMAC field of an accepted packet) and updates the display
// buffer, scanning its six payload octets in order per spec.md section
// 4.8: 0x00 is ignored, 0x01 closes the current line and starts a new
// one, anything else is appended (honoring the configured line-wrap
// width). It returns true if a message boundary was crossed while
// processing this fragment; the canonical sentinel fragment always
// triggers this on its first octet.
func (r *Reassembler) Feed(fragment frame.MacAddr) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	closed := false
	for _, octet := range fragment {
		switch octet {
		case 0x00:
			// right-padding of the final partial fragment; ignored.
		case SentinelFirstByte:
			r.lines = append(r.lines, r.current.String())
			r.current.Reset()
			closed = true
		default:
			r.current.WriteByte(octet)
			if r.lineWidth > 0 && r.current.Len() >= r.lineWidth {
				r.lines = append(r.lines, r.current.String())
				r.current.Reset()
			}
		}
	}

	if closed {
		log.Debug("message boundary reached", "lines", len(r.lines))
	}
	return closed
}

// Lines returns a snapshot of the closed lines accumulated so far, plus
// the in-progress (not yet terminated) current line.
func (r *Reassembler) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.lines), len(r.lines)+1)
	copy(out, r.lines)
	if r.current.Len() > 0 {
		out = append(out, r.current.String())
	}
	return out
}
