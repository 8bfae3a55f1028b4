package async

import "sync/atomic"

type queueSlot[T any] struct {
	seq atomic.Uint64
	val T
}

// ArrayQueue is a bounded multi-producer multi-consumer FIFO queue. Push and
// Pop never block and never allocate which makes the queue safe to use
// from interrupt handlers.
//
// Each slot carries a sequence number that tells producers and consumers
// whether the slot is free for the current lap of the ring.
type ArrayQueue[T any] struct {
	head  atomic.Uint64
	tail  atomic.Uint64
	slots []queueSlot[T]
}

// NewArrayQueue returns a queue that holds at most capacity items. The slot
// storage is allocated here, so queues must be created before interrupts
// that use them are unmasked.
func NewArrayQueue[T any](capacity int) *ArrayQueue[T] {
	if capacity < 1 {
		capacity = 1
	}

	q := &ArrayQueue[T]{slots: make([]queueSlot[T], capacity)}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}

	return q
}

// Push appends v to the queue. It returns false without modifying the queue
// if the queue is full.
func (q *ArrayQueue[T]) Push(v T) bool {
	capacity := uint64(len(q.slots))
	pos := q.tail.Load()
	for {
		slot := &q.slots[pos%capacity]
		seq := slot.seq.Load()

		switch diff := int64(seq - pos); {
		case diff == 0:
			if q.tail.CompareAndSwap(pos, pos+1) {
				slot.val = v
				slot.seq.Store(pos + 1)
				return true
			}
			pos = q.tail.Load()
		case diff < 0:
			// The slot still holds the value from the previous lap.
			return false
		default:
			pos = q.tail.Load()
		}
	}
}

// Pop removes and returns the oldest item in the queue. The second return
// value is false if the queue is empty.
func (q *ArrayQueue[T]) Pop() (T, bool) {
	var zero T

	capacity := uint64(len(q.slots))
	pos := q.head.Load()
	for {
		slot := &q.slots[pos%capacity]
		seq := slot.seq.Load()

		switch diff := int64(seq - (pos + 1)); {
		case diff == 0:
			if q.head.CompareAndSwap(pos, pos+1) {
				v := slot.val
				slot.val = zero
				slot.seq.Store(pos + capacity)
				return v, true
			}
			pos = q.head.Load()
		case diff < 0:
			return zero, false
		default:
			pos = q.head.Load()
		}
	}
}

// Len returns the number of items in the queue. The value is a snapshot and
// may be stale by the time the caller inspects it.
func (q *ArrayQueue[T]) Len() int {
	for {
		tail := q.tail.Load()
		head := q.head.Load()
		if q.tail.Load() != tail {
			continue
		}

		if n := int(tail - head); n > 0 {
			if n > len(q.slots) {
				return len(q.slots)
			}
			return n
		}
		return 0
	}
}

// Cap returns the queue capacity.
func (q *ArrayQueue[T]) Cap() int {
	return len(q.slots)
}
