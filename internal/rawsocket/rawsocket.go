// Package rawsocket opens an AF_PACKET link-layer raw socket and exposes
// the send/recv/close contract the receiver loop and chat framer need
// (spec.md section 4.4). It is the idiomatic Go equivalent of the
// original C++ implementation's socket(PF_PACKET, SOCK_RAW, ...),
// sendto, and recvfrom calls, built directly on golang.org/x/sys/unix
// the way the teacher's pkg/dataplane/shm client opens raw AF_UNIX/mmap
// descriptors.
package rawsocket

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/pkg/logger"
)

// RecvBufferSize is the buffer size used for one recv() call, matching
// the 65535-octet buffer mandated by spec.md section 4.4.
const RecvBufferSize = 65535

// SocketError reports a failure opening or binding the raw socket.
type SocketError struct {
	Reason string
}

func (e *SocketError) Error() string { return fmt.Sprintf("raw socket: %s", e.Reason) }

// SendError reports a kernel-level transmit failure.
type SendError struct {
	Reason string
}

func (e *SendError) Error() string { return fmt.Sprintf("raw socket send: %s", e.Reason) }

// RecvError reports a kernel-level receive failure.
type RecvError struct {
	Reason string
}

func (e *RecvError) Error() string { return fmt.Sprintf("raw socket recv: %s", e.Reason) }

var log = logger.Get(logger.RawSocket)

// Socket wraps one AF_PACKET/SOCK_RAW file descriptor bound to a single
// interface. The zero value is not usable; construct with Open.
type Socket struct {
	fd      int
	ifIndex int
	mu      sync.Mutex
	closed  bool
}

// Open allocates a link-layer raw socket capturing every Ethernet frame
// (ETH_P_ALL) on the interface identified by ifIndex, and binds it to
// that interface so sends and receives are scoped to it. It fails with
// SocketError when the calling process lacks CAP_NET_RAW.
func Open(ifIndex int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, &SocketError{Reason: "socket: " + err.Error()}
	}

	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifIndex,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, &SocketError{Reason: "bind: " + err.Error()}
	}

	log.Info("raw socket opened", "if_index", ifIndex)

	return &Socket{fd: fd, ifIndex: ifIndex}, nil
}

// Send transmits exactly frame.Size octets onto the bound interface.
func (s *Socket) Send(f [frame.Size]byte) (int, error) {
	addr := &unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  s.ifIndex,
	}

	if err := unix.Sendto(s.fd, f[:], 0, addr); err != nil {
		return 0, &SendError{Reason: err.Error()}
	}

	return len(f), nil
}

// Recv blocks until one frame is readable and returns the number of
// octets delivered into buf. buf should be at least RecvBufferSize long.
func (s *Socket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, &RecvError{Reason: err.Error()}
	}
	return n, nil
}

// Fd exposes the underlying descriptor for readiness polling (the
// receiver loop's select/poll primitive watches this).
func (s *Socket) Fd() int {
	return s.fd
}

// Close releases the descriptor. Safe to call more than once.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := unix.Close(s.fd); err != nil {
		return &SocketError{Reason: "close: " + err.Error()}
	}
	return nil
}

func htons(v int) uint16 {
	return uint16(v<<8&0xff00 | v>>8&0x00ff)
}
