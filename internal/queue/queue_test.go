package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gbonacini/arpchat/internal/frame"
)

func pktWithOpcode(op uint16) frame.ArpPacket {
	var pkt frame.ArpPacket
	pkt.Opcode = op
	return pkt
}

func TestQueueOrderPreserved(t *testing.T) {
	q := New(16)

	for i := uint16(0); i < 5; i++ {
		q.Push(pktWithOpcode(i))
	}

	require.Equal(t, 5, q.Size())

	for i := uint16(0); i < 5; i++ {
		pkt, err := q.Pop()
		require.NoError(t, err)
		assert.Equal(t, i, pkt.Opcode)
	}
}

func TestQueuePopEmptyFails(t *testing.T) {
	q := New(4)

	_, err := q.Pop()
	require.Error(t, err)

	var emptyErr *EmptyError
	assert.ErrorAs(t, err, &emptyErr)
}

func TestQueueDropsOldestAtCapacity(t *testing.T) {
	q := New(2)

	q.Push(pktWithOpcode(1))
	q.Push(pktWithOpcode(2))
	q.Push(pktWithOpcode(3))

	require.Equal(t, 2, q.Size())

	first, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), first.Opcode)

	second, err := q.Pop()
	require.NoError(t, err)
	assert.Equal(t, uint16(3), second.Opcode)
}

func TestQueueDrainAll(t *testing.T) {
	q := New(16)
	q.Push(pktWithOpcode(1))
	q.Push(pktWithOpcode(2))
	q.Push(pktWithOpcode(3))

	drained := q.DrainAll()
	require.Len(t, drained, 3)
	assert.Equal(t, uint16(1), drained[0].Opcode)
	assert.Equal(t, uint16(2), drained[1].Opcode)
	assert.Equal(t, uint16(3), drained[2].Opcode)
	assert.Equal(t, 0, q.Size())
}
