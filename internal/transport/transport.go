// Package transport implements the lifecycle component (spec.md section
// 4.10, C10): it wires together interface resolution, privilege
// reduction, the raw socket, the receiver loop, the IPC bridge, and the
// chat framer into one Transport, and owns their creation and shutdown
// order. It plays the role the teacher's pkg/component Base/Orchestrator
// pattern plays for "start N independent BNG subsystems", generalized to
// this system's single ARP transport subsystem.
package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gbonacini/arpchat/internal/chatframe"
	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/internal/iface"
	"github.com/gbonacini/arpchat/internal/ipc"
	"github.com/gbonacini/arpchat/internal/privilege"
	"github.com/gbonacini/arpchat/internal/queue"
	"github.com/gbonacini/arpchat/internal/rawsocket"
	"github.com/gbonacini/arpchat/internal/recvloop"
	"github.com/gbonacini/arpchat/pkg/component"
	"github.com/gbonacini/arpchat/pkg/config"
	"github.com/gbonacini/arpchat/pkg/logger"
)

var log = logger.Get(logger.Transport)

// sender is the narrow interface Transport needs from the raw socket to
// emit frames; satisfied by *rawsocket.Socket, and by a fake in tests.
type sender interface {
	Send(f [frame.Size]byte) (int, error)
}

// Options configures a Transport before Start.
type Options struct {
	Interface     string
	Config        *config.Config
	IPCSocketPath string
	LineWidth     int
	SkipPrivDrop  bool // test-only escape hatch; never set outside tests
}

// Transport is the C10 lifecycle component: construction resolves the
// interface and opens the raw socket (Running state is not entered
// until Start), Start launches the receiver thread and completes the
// IPC handshake, Stop tears everything down in reverse order. It embeds
// component.Base for the context/cancel/WaitGroup bookkeeping the
// teacher's subsystems use to manage their own goroutines.
type Transport struct {
	component.Base

	opts     Options
	template frame.ArpPacket

	resolved iface.Resolved
	sock     *rawsocket.Socket
	queue    *queue.Queue
	listener *ipc.Listener
	notifier *ipc.Notifier
	loop     *recvloop.Loop
	reasm    *chatframe.Reassembler

	running atomic.Bool
	runErr  error
}

// New performs the Privilege Gate → Frame defaults → Interface Resolver
// → Raw Socket open steps of spec.md section 4.10's creation order. The
// returned Transport is constructed but not yet running; call Start to
// launch the receiver thread and complete the IPC handshake.
func New(opts Options) (*Transport, error) {
	if !opts.SkipPrivDrop {
		if err := privilege.Drop(); err != nil {
			return nil, fmt.Errorf("transport init: %w", err)
		}
	}

	template := opts.Config.TemplateFields()

	resolved, err := iface.Resolve(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("transport init: %w", err)
	}
	template.EthSrcMAC = resolved.LocalMAC
	template.ArpSenderMAC = resolved.LocalMAC
	if (template.ArpSenderIP == frame.IpAddr{}) {
		template.ArpSenderIP = resolved.LocalIP
	}

	sock, err := rawsocket.Open(resolved.IfIndex)
	if err != nil {
		return nil, fmt.Errorf("transport init: %w", err)
	}

	return &Transport{
		Base:     *component.NewBase("transport"),
		opts:     opts,
		template: template,
		resolved: resolved,
		sock:     sock,
		queue:    queue.New(queue.DefaultCapacity),
		reasm:    chatframe.NewReassembler(opts.LineWidth),
	}, nil
}

// Start completes the remaining startup steps: it binds the IPC
// listener, runs Accept in a helper goroutine while connecting the
// notifier from the calling goroutine, waits for Accept to finish, and
// only then launches the receiver thread. The receiver thread does not
// connect the notifier itself.
func (t *Transport) Start(ctx context.Context) error {
	listener, err := ipc.Listen(t.opts.IPCSocketPath)
	if err != nil {
		return fmt.Errorf("transport start: %w", err)
	}
	t.listener = listener

	t.StartContext(ctx)

	acceptErrCh := make(chan error, 1)
	go func() { acceptErrCh <- t.listener.Accept() }()

	notifier, err := ipc.Connect(t.opts.IPCSocketPath)
	if err != nil {
		t.StopContext()
		return fmt.Errorf("transport start: %w", err)
	}
	t.notifier = notifier

	if err := <-acceptErrCh; err != nil {
		t.StopContext()
		return fmt.Errorf("transport start: %w", err)
	}

	t.loop = recvloop.New(t.sock, t.opts.Config.FilterRules, t.queue, t.notifier)
	t.running.Store(true)

	t.Go(func() {
		t.runErr = t.loop.Run(t.Ctx)
		t.running.Store(false)
	})

	log.Info("transport started", "interface", t.opts.Interface, "if_index", t.resolved.IfIndex)
	return nil
}

// Stop signals the receiver loop to drain, joins it, and closes every
// descriptor in reverse creation order. Idempotent.
func (t *Transport) Stop(ctx context.Context) error {
	t.StopContext()

	if t.notifier != nil {
		_ = t.notifier.Close()
	}
	if t.listener != nil {
		_ = t.listener.Close()
	}
	if t.sock != nil {
		_ = t.sock.Close()
	}

	log.Info("transport stopped")
	return t.runErr
}

// Running reports whether the receiver loop is currently active.
func (t *Transport) Running() bool { return t.running.Load() }

// Send fragments text per the Chat Framer (spec.md section 4.8) and
// transmits each fragment, then the sentinel, over the raw socket using
// the frame template established at construction.
func (t *Transport) Send(text string) error {
	return send(t.sock, t.template, text)
}

func send(s sender, template frame.ArpPacket, text string) error {
	for _, fragment := range chatframe.Fragment(text) {
		pkt := template
		pkt.ArpSenderMAC = fragment
		buf, err := frame.Encode(pkt)
		if err != nil {
			return fmt.Errorf("transport send: %w", err)
		}
		if _, err := s.Send(buf); err != nil {
			return fmt.Errorf("transport send: %w", err)
		}
	}
	return nil
}

// DrainIncoming reads the notifier wake payload (discarding its
// content, per spec.md section 4.7) and then drains every packet
// currently queued, feeding each fragment to the chat reassembler. It is
// the pattern spec.md section 5 mandates: size() then pop() that many,
// since pushes may race ahead of a drain otherwise.
func (t *Transport) DrainIncoming() error {
	wakeBuf := make([]byte, 64)
	if _, err := t.listener.Drain(wakeBuf); err != nil {
		return fmt.Errorf("transport drain: %w", err)
	}

	for _, pkt := range t.queue.DrainAll() {
		t.reasm.Feed(pkt.ArpSenderMAC)
	}
	return nil
}

// Lines returns the chat reassembler's current display buffer.
func (t *Transport) Lines() []string { return t.reasm.Lines() }

var _ component.Component = (*Transport)(nil)
