package tpuart

import "github.com/arloliu/go-tpuart/knx"

// pendingQueue holds third-party telegrams that arrive while a send awaits its
// echo or confirmation. Slots are fixed buffers; occupied slots always form a
// prefix in arrival order, so the first free slot is the next one to fill.
type pendingQueue struct {
	slots []queueSlot
}

type queueSlot struct {
	occupied bool
	buf      [knx.MaxTelegramSize]byte
}

func (s *queueSlot) telegram() knx.Telegram {
	return knx.Telegram(s.buf[:knx.Telegram(s.buf[:]).Len()])
}

func newPendingQueue(size int) *pendingQueue {
	return &pendingQueue{slots: make([]queueSlot, size)}
}

// Enqueue copies t into the first free slot. It returns false when the queue is
// full; the telegram is then dropped.
func (q *pendingQueue) Enqueue(t knx.Telegram) bool {
	for i := range q.slots {
		s := &q.slots[i]
		if s.occupied {
			continue
		}
		copy(s.buf[:], t)
		s.occupied = true

		return true
	}

	return false
}

// Flush hands every queued telegram to fn in arrival order and empties the queue.
// The telegram passed to fn aliases the slot and is only valid during the call.
func (q *pendingQueue) Flush(fn func(knx.Telegram)) int {
	n := 0
	for i := range q.slots {
		s := &q.slots[i]
		if !s.occupied {
			break
		}
		fn(s.telegram())
		s.occupied = false
		n++
	}

	return n
}

func (q *pendingQueue) Len() int {
	n := 0
	for i := range q.slots {
		if q.slots[i].occupied {
			n++
		}
	}

	return n
}

func (q *pendingQueue) Cap() int { return len(q.slots) }

func (q *pendingQueue) IsFull() bool { return q.Len() == q.Cap() }
