// Package queue implements the bounded, thread-safe FIFO of accepted ARP
// packets that sits between the receiver loop (producer) and the chat
// framer (consumer).
package queue

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gbonacini/arpchat/internal/frame"
	"github.com/gbonacini/arpchat/pkg/logger"
)

// DefaultCapacity is the cap suggested by spec.md section 9 open question 2.
// The source implementation is unbounded; this caps memory use and drops
// the oldest entry on overflow rather than growing without bound.
const DefaultCapacity = 4096

// EmptyError is returned by Pop when the queue has no entries. Popping an
// empty queue is a programming error in the consumer, not a runtime
// condition to recover from silently.
type EmptyError struct{}

func (e *EmptyError) Error() string { return "pop on empty packet queue" }

var log = logger.Get(logger.Queue)

var depthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "arpchat_queue_depth",
	Help: "Number of accepted ARP packets waiting in the packet queue.",
})

var droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "arpchat_queue_dropped_total",
	Help: "Packets dropped from the queue because it was at capacity.",
})

func init() {
	prometheus.MustRegister(depthGauge, droppedCounter)
}

// Queue is a bounded, insertion-ordered FIFO of frame.ArpPacket. All
// methods are safe for concurrent use by exactly one producer (the
// receiver loop) and one consumer (the chat framer / UI poller).
type Queue struct {
	mu       sync.Mutex
	items    []frame.ArpPacket
	capacity int
}

// New returns an empty Queue bounded at capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		items:    make([]frame.ArpPacket, 0, capacity),
		capacity: capacity,
	}
}

// Push appends pkt to the tail of the queue. When the queue is already at
// capacity the oldest entry is dropped and a warning logged, per spec.md
// section 9 open question 2.
func (q *Queue) Push(pkt frame.ArpPacket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		droppedCounter.Inc()
		log.Warn("packet queue at capacity, dropping oldest", "capacity", q.capacity)
	}

	q.items = append(q.items, pkt)
	depthGauge.Set(float64(len(q.items)))
}

// Pop removes and returns the oldest entry. It fails with EmptyError rather
// than blocking; callers drain the queue after a wake notification and
// stop once it reports empty.
func (q *Queue) Pop() (frame.ArpPacket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return frame.ArpPacket{}, &EmptyError{}
	}

	pkt := q.items[0]
	q.items = q.items[1:]
	depthGauge.Set(float64(len(q.items)))
	return pkt, nil
}

// Size reports the number of entries currently queued.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainAll pops every currently queued entry in order. It is the pattern
// the consumer is expected to use on each IPC wake: call Size once, then
// pop that many, since pushes may race ahead of the drain otherwise.
func (q *Queue) DrainAll() []frame.ArpPacket {
	n := q.Size()
	out := make([]frame.ArpPacket, 0, n)
	for i := 0; i < n; i++ {
		pkt, err := q.Pop()
		if err != nil {
			break
		}
		out = append(out, pkt)
	}
	return out
}
