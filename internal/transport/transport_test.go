package transport

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbonacini/arpchat/internal/chatframe"
	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/internal/ipc"
	"github.com/gbonacini/arpchat/internal/queue"
)

type fakeSender struct {
	sent [][frame.Size]byte
}

func (f *fakeSender) Send(buf [frame.Size]byte) (int, error) {
	f.sent = append(f.sent, buf)
	return frame.Size, nil
}

func TestSendEmitsFragmentsThenSentinel(t *testing.T) {
	template := frame.ArpPacket{FrameType: 0x0806, Opcode: 1, HwSize: 6, ProtoSize: 4}
	fs := &fakeSender{}

	require.NoError(t, send(fs, template, "hi"))

	require.Len(t, fs.sent, 2)

	firstPkt, err := frame.Decode(fs.sent[0][:])
	require.NoError(t, err)
	assert.Equal(t, frame.MacAddr{0x68, 0x69, 0x00, 0x00, 0x00, 0x00}, firstPkt.ArpSenderMAC)

	secondPkt, err := frame.Decode(fs.sent[1][:])
	require.NoError(t, err)
	assert.True(t, chatframe.IsSentinel(secondPkt.ArpSenderMAC))
}

func TestDrainIncomingFeedsReassembler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arpchat.test.sock")
	ln, err := ipc.Listen(path)
	require.NoError(t, err)
	defer ln.Close()

	acceptErrCh := make(chan error, 1)
	go func() { acceptErrCh <- ln.Accept() }()

	notifier, err := ipc.Connect(path)
	require.NoError(t, err)
	defer notifier.Close()
	require.NoError(t, <-acceptErrCh)

	tr := &Transport{
		queue:    queue.New(16),
		reasm:    chatframe.NewReassembler(0),
		listener: ln,
	}

	tr.queue.Push(frame.ArpPacket{ArpSenderMAC: frame.MacAddr{'h', 'i', 0, 0, 0, 0}})
	tr.queue.Push(frame.ArpPacket{ArpSenderMAC: chatframe.Sentinel})
	require.NoError(t, notifier.Wake(tr.queue.Size()))

	require.NoError(t, tr.DrainIncoming())

	lines := tr.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "hi", lines[0])
}
