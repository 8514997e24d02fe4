package recvloop

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbonacini/arpchat/internal/filter"
	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/internal/queue"
)

func TestFdSetLowAndHighBits(t *testing.T) {
	var set unix.FdSet
	fdSet(&set, 3)
	assert.Equal(t, int64(1<<3), set.Bits[0])

	fdSet(&set, 65)
	assert.Equal(t, int64(1<<1), set.Bits[1])
	assert.Equal(t, int64(0), set.Bits[0])
}

// fakeReader satisfies reader over a real, select()-pollable pipe fd: the
// write end is primed once so the read end reports readable forever, and
// Recv hands back a pre-encoded frame on every call regardless of what, if
// anything, is actually sitting in the pipe's buffer.
type fakeReader struct {
	fd    int
	frame [frame.Size]byte

	mu    sync.Mutex
	calls int
}

func (r *fakeReader) Fd() int { return r.fd }

func (r *fakeReader) Recv(buf []byte) (int, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	n := copy(buf, r.frame[:])
	return n, nil
}

func (r *fakeReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeWaker satisfies waker and records every depth it was woken with.
type fakeWaker struct {
	mu    sync.Mutex
	wakes []int
}

func (w *fakeWaker) Wake(queueDepth int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.wakes = append(w.wakes, queueDepth)
	return nil
}

func (w *fakeWaker) wakeCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.wakes)
}

func TestRunDecodesFiltersEnqueuesAndWakesOnAcceptedFrame(t *testing.T) {
	rp, wp, err := os.Pipe()
	require.NoError(t, err)
	defer rp.Close()
	defer wp.Close()

	_, err = wp.Write([]byte{0})
	require.NoError(t, err)

	pkt := frame.ArpPacket{
		EthDstMAC:    frame.MacAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthSrcMAC:    frame.MacAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
		FrameType:    0x0806,
		HwType:       1,
		ProtoType:    0x0800,
		HwSize:       6,
		ProtoSize:    4,
		Opcode:       1,
		ArpSenderMAC: frame.MacAddr{1, 2, 3, 4, 5, 6},
		ArpSenderIP:  frame.IpAddr{10, 0, 0, 5},
		ArpTargetMAC: frame.MacAddr{0, 0, 0, 0, 0, 0},
		ArpTargetIP:  frame.IpAddr{255, 255, 255, 255},
	}
	buf, err := frame.Encode(pkt)
	require.NoError(t, err)

	sock := &fakeReader{fd: int(rp.Fd()), frame: buf}
	notifier := &fakeWaker{}
	q := queue.New(queue.DefaultCapacity)

	l := New(sock, filter.Rules{}, q, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return q.Size() > 0
	}, time.Second, time.Millisecond, "frame was never enqueued")

	require.Eventually(t, func() bool {
		return notifier.wakeCount() > 0
	}, time.Second, time.Millisecond, "notifier was never woken")

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	got, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, pkt, got)
	assert.GreaterOrEqual(t, sock.callCount(), 1)
}
