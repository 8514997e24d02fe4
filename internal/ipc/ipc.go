// Package ipc implements the local stream-socket bridge the receiver
// loop uses to wake the UI/consumer thread after enqueuing packets
// (spec.md section 4.7). It deliberately carries no protocol: the bytes
// written are a human-readable queue-depth string the reader discards.
package ipc

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gbonacini/arpchat/pkg/logger"
)

// DefaultSocketPath is the well-known filesystem path for the notifier,
// matching the original implementation's /tmp/.arpchat.uddsocket.server.
const DefaultSocketPath = "/tmp/.arpchat.uddsocket.server"

const (
	connectRetries  = 5
	connectInterval = time.Millisecond
)

// Error wraps any bind/listen/accept/connect/read/write failure on the
// notifier socket.
type Error struct {
	Op     string
	Reason string
}

func (e *Error) Error() string { return fmt.Sprintf("ipc %s: %s", e.Op, e.Reason) }

var log = logger.Get(logger.IPC)

// Listener is the UI-side half: it binds the well-known path, accepts
// exactly one connection from the receiver, and lets the caller drain
// wake bytes from it.
type Listener struct {
	path string
	ln   net.Listener
	conn net.Conn
}

// Listen unlinks any stale socket file at path, then binds and listens
// on it. net.Listen uses the system's default listen backlog, not a
// backlog of 1; only one connection is ever taken, by Accept. Accepting
// is deferred to Accept so it can be the one blocking startup step the
// caller chooses when to take.
func Listen(path string) (*Listener, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, &Error{Op: "listen", Reason: err.Error()}
	}

	if unixLn, ok := ln.(*net.UnixListener); ok {
		unixLn.SetUnlinkOnClose(true)
	}

	log.Info("notifier listening", "path", path)

	return &Listener{path: path, ln: ln}, nil
}

// Accept blocks until the receiver connects. It is the only point where
// UI initialization may stall, per spec.md section 4.7.
func (l *Listener) Accept() error {
	conn, err := l.ln.Accept()
	if err != nil {
		return &Error{Op: "accept", Reason: err.Error()}
	}
	l.conn = conn
	log.Info("notifier accepted connection")
	return nil
}

// Drain reads and discards whatever bytes are currently buffered on the
// accepted connection; its only purpose is to consume the wake-up so the
// sender's next write does not block. It returns once a read succeeds;
// the caller is expected to follow up with the packet queue's own Size
// to know how much work actually arrived.
func (l *Listener) Drain(buf []byte) (int, error) {
	if l.conn == nil {
		return 0, &Error{Op: "drain", Reason: "not accepted"}
	}
	n, err := l.conn.Read(buf)
	if err != nil {
		return n, &Error{Op: "drain", Reason: err.Error()}
	}
	return n, nil
}

// Close shuts down the listener and any accepted connection. Idempotent.
func (l *Listener) Close() error {
	var firstErr error
	if l.conn != nil {
		if err := l.conn.Close(); err != nil && firstErr == nil {
			firstErr = &Error{Op: "close", Reason: err.Error()}
		}
		l.conn = nil
	}
	if l.ln != nil {
		if err := l.ln.Close(); err != nil && firstErr == nil {
			firstErr = &Error{Op: "close", Reason: err.Error()}
		}
		l.ln = nil
	}
	return firstErr
}

// Notifier is the receiver-side half: it connects to the well-known path
// (retrying up to connectRetries times) and writes a queue-depth wake
// byte string after each accepted packet.
type Notifier struct {
	conn net.Conn
	tag  string
}

// Connect dials path, retrying connectRetries times at connectInterval,
// matching spec.md section 4.5's retry policy. Failing every attempt is
// fatal to the receiver.
func Connect(path string) (*Notifier, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	tag := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt < connectRetries; attempt++ {
		conn, err := net.Dial("unix", path)
		if err == nil {
			log.Debug("notifier connected", "attempt", attempt+1, "conn_id", tag)
			return &Notifier{conn: conn, tag: tag}, nil
		}
		lastErr = err
		time.Sleep(connectInterval)
	}

	return nil, &Error{Op: "connect", Reason: fmt.Sprintf("exhausted %d retries: %s (conn_id=%s)", connectRetries, lastErr, tag)}
}

// Wake writes a short human-readable queue-depth string to the notifier.
// Its content is not a protocol (spec.md section 9 open question 4); any
// payload that wakes the reader satisfies the contract.
func (n *Notifier) Wake(queueDepth int) error {
	msg := strconv.Itoa(queueDepth)
	if _, err := n.conn.Write([]byte(msg)); err != nil {
		return &Error{Op: "write", Reason: err.Error()}
	}
	return nil
}

// Close closes the receiver-side connection. Idempotent.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	if err != nil {
		return &Error{Op: "close", Reason: err.Error()}
	}
	return nil
}
