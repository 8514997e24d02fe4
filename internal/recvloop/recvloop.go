// Package recvloop implements the single dedicated receiver thread that
// polls the raw socket, decodes and filters inbound frames, and hands
// accepted packets to the queue + IPC notifier (spec.md section 4.5).
package recvloop

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"

	"github.com/gbonacini/arpchat/internal/filter"
	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/internal/queue"
	"github.com/gbonacini/arpchat/internal/rawsocket"
	"github.com/gbonacini/arpchat/pkg/logger"
)

// ReadinessTimeout bounds how long the loop waits for the raw socket to
// become readable before looping back to check the shutdown signal.
const ReadinessTimeout = 3 * time.Second

// IterationSleep is the cooperative scheduling yield the original
// implementation takes between iterations (spec.md section 4.5).
// recvloop takes it only after a frame has been enqueued and the
// notifier woken; iterations that time out or drop a frame loop back
// without sleeping.
const IterationSleep = 250 * time.Microsecond

var log = logger.Get(logger.Receiver)

var (
	framesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arpchat_frames_received_total",
		Help: "Ethernet frames successfully read off the raw socket.",
	})
	framesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arpchat_frames_accepted_total",
		Help: "Frames that decoded cleanly and passed the filter, and were enqueued.",
	})
	framesDroppedFilter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arpchat_frames_dropped_filter_total",
		Help: "Frames dropped because they did not match the configured filter rules.",
	})
	framesDroppedDecode = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arpchat_frames_dropped_decode_total",
		Help: "Frames dropped because they failed to decode as a 42-octet ARP-over-Ethernet frame.",
	})
)

func init() {
	prometheus.MustRegister(framesReceived, framesAccepted, framesDroppedFilter, framesDroppedDecode)
}

// reader is the narrow contract Loop needs from the raw socket: a
// pollable file descriptor plus a blocking receive. Satisfied by
// *rawsocket.Socket, and by a synthetic frame source in tests.
type reader interface {
	Fd() int
	Recv(buf []byte) (int, error)
}

// waker is the narrow contract Loop needs from the IPC bridge. Satisfied
// by *ipc.Notifier, and by a fake in tests.
type waker interface {
	Wake(queueDepth int) error
}

// Loop owns the receive→decode→filter→enqueue→notify pipeline for one
// raw socket. It does not own the socket's or notifier's lifetime;
// internal/transport closes both after Run returns.
type Loop struct {
	sock     reader
	rules    filter.Rules
	queue    *queue.Queue
	notifier waker
}

// New builds a Loop over an already-open socket, filter rule set, packet
// queue, and connected notifier. sock and notifier need only satisfy
// reader and waker, so a test can drive Run with synthetic frames
// without a privileged AF_PACKET socket or a real unix-domain peer.
func New(sock reader, rules filter.Rules, q *queue.Queue, notifier waker) *Loop {
	return &Loop{sock: sock, rules: rules, queue: q, notifier: notifier}
}

// Run executes the Running/Draining state machine until ctx is cancelled
// (the lifecycle's shared running flag going false, translated into
// context cancellation by internal/transport) or a non-recoverable
// socket error occurs. A cancelled context is not an error: Run returns
// nil so the caller can tell deliberate shutdown apart from failure.
func (l *Loop) Run(ctx context.Context) error {
	buf := make([]byte, rawsocket.RecvBufferSize)

	for {
		select {
		case <-ctx.Done():
			log.Info("receiver loop draining")
			return nil
		default:
		}

		ready, err := l.waitReadable(ReadinessTimeout)
		if err != nil {
			log.Error("readiness wait failed", "err", err)
			return err
		}
		if !ready {
			log.Debug("readiness timeout, continuing")
			continue
		}

		n, err := l.sock.Recv(buf)
		if err != nil {
			log.Error("recv failed, terminating receiver loop", "err", err)
			return err
		}
		if n == 0 {
			log.Warn("recv returned zero length, terminating receiver loop")
			return errors.New("recvloop: zero-length read")
		}

		framesReceived.Inc()

		pkt, err := frame.Decode(buf[:n])
		if err != nil {
			framesDroppedDecode.Inc()
			log.Debug("dropping malformed frame", "err", err)
			continue
		}

		if !filter.Evaluate(l.rules, pkt) {
			framesDroppedFilter.Inc()
			continue
		}

		framesAccepted.Inc()
		l.queue.Push(pkt)

		peerLog := logger.WithPeer(log, logger.PeerAttrs{
			SenderMAC: pkt.EthSrcMAC.String(),
			TargetMAC: pkt.EthDstMAC.String(),
			Opcode:    pkt.Opcode,
		})
		peerLog.Debug("frame accepted and enqueued", "queue_size", l.queue.Size())

		if err := l.notifier.Wake(l.queue.Size()); err != nil {
			log.Error("notifier wake failed, terminating receiver loop", "err", err)
			return err
		}

		time.Sleep(IterationSleep)
	}
}

func (l *Loop) waitReadable(timeout time.Duration) (bool, error) {
	fd := l.sock.Fd()

	var readFds unix.FdSet
	fdSet(&readFds, fd)

	tv := unix.NsecToTimeval(timeout.Nanoseconds())

	for {
		n, err := unix.Select(fd+1, &readFds, nil, nil, &tv)
		if err != nil {
			if err == unix.EINTR {
				fdSet(&readFds, fd)
				continue
			}
			return false, err
		}
		return n > 0, nil
	}
}

func fdSet(set *unix.FdSet, fd int) {
	*set = unix.FdSet{}
	set.Bits[fd/64] |= 1 << (int64(fd) % 64)
}
