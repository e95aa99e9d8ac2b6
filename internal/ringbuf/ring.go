package ringbuf

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var ErrCapacity = errors.New("ringbuf: capacity must be >= 2")

// Ring is a single-producer/single-consumer queue of raw bus words over
// caller-owned storage. One slot is always kept empty, so a ring built on
// len(storage) == C holds at most C-1 words.
//
// head is stored only by the producer and tail only by the consumer. The atomic
// store of an index happens after the slot access it publishes, which gives the
// other side acquire/release ordering on the slot contents.
type Ring struct {
	buf  []uint32
	size uint32

	head atomic.Uint32
	_    [60]byte
	tail atomic.Uint32
}

func New(storage []uint32) (*Ring, error) {
	if len(storage) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, len(storage))
	}
	return &Ring{buf: storage, size: uint32(len(storage))}, nil
}

// Capacity is the number of slots, including the reserved empty slot.
func (r *Ring) Capacity() int { return int(r.size) }

func (r *Ring) next(i uint32) uint32 {
	i++
	if i == r.size {
		return 0
	}
	return i
}

// Push enqueues v. It reports false without blocking when the ring is full.
// Producer only.
func (r *Ring) Push(v uint32) bool {
	head := r.head.Load()
	next := r.next(head)
	if next == r.tail.Load() {
		return false
	}
	r.buf[head] = v
	r.head.Store(next)
	return true
}

// Pop dequeues the oldest word. Consumer only.
func (r *Ring) Pop() (uint32, bool) {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return 0, false
	}
	v := r.buf[tail]
	r.tail.Store(r.next(tail))
	return v, true
}

// Peek returns the oldest word without removing it. Consumer only.
func (r *Ring) Peek() (uint32, bool) {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return 0, false
	}
	return r.buf[tail], true
}

func (r *Ring) Count() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int((head + r.size - tail) % r.size)
}

// Free is Capacity()-1-Count().
func (r *Ring) Free() int {
	return int(r.size) - 1 - r.Count()
}

func (r *Ring) IsEmpty() bool { return r.head.Load() == r.tail.Load() }

func (r *Ring) IsFull() bool { return r.next(r.head.Load()) == r.tail.Load() }

// Reset discards queued words. Call it from the consumer while the producer is quiescent.
func (r *Ring) Reset() {
	r.tail.Store(r.head.Load())
}
