// Package confqueue implements ConfQueue (spec §4.2, C2): a small ring of
// pending future RadioConfig changes keyed by a connEventCount instant,
// dequeued when that instant arrives or has already passed.
package confqueue

import "github.com/cwsl/blesniffercore/internal/radioconf"

// capacity is MODULO_MASK+1 in the original (7 usable slots out of an
// 8-slot backing array).
const capacity = 8
const modMask = capacity - 1

type entry struct {
	nextInstant uint16
	conf        radioconf.RadioConfig
}

// Queue is a ConfQueue instance. The zero value is ready to use.
type Queue struct {
	entries [capacity]entry
	head    uint32 // next write index (mod capacity)
	tail    uint32 // next read index (mod capacity)
}

func (q *Queue) size() uint32 {
	return q.head - q.tail
}

// Enqueue adds a pending config change at nextInstant. Silently drops the
// entry if the queue is full (spec §4.2), mirroring rconf_enqueue's
// "qsz >= MODULO_MASK" full check which reserves one slot as a gap between
// head and tail.
func (q *Queue) Enqueue(nextInstant uint16, conf radioconf.RadioConfig) {
	if q.size() >= modMask {
		return
	}
	idx := q.head & modMask
	q.entries[idx] = entry{nextInstant: nextInstant, conf: conf}
	q.head++
}

// Dequeue pops and returns the oldest pending entry if its instant is due:
// either it equals connEventCount exactly, or it lies in the past half of
// the 16-bit instant space (signed delta >= 0x8000). Both cases are applied
// by the caller unconditionally when ok is true — a pending change that was
// somehow missed still takes effect rather than being silently dropped.
func (q *Queue) Dequeue(connEventCount uint16) (instant uint16, conf radioconf.RadioConfig, ok bool) {
	if q.size() == 0 {
		return 0, radioconf.RadioConfig{}, false
	}

	idx := q.tail & modMask
	e := q.entries[idx]

	delta := (e.nextInstant - connEventCount) & 0xFFFF
	if e.nextInstant == connEventCount || delta >= 0x8000 {
		q.tail++
		return e.nextInstant, e.conf, true
	}

	return 0, radioconf.RadioConfig{}, false
}

// Latest returns the most recently enqueued entry (head-1), used as the
// baseline when a new future change inherits unchanged fields.
func (q *Queue) Latest() (radioconf.RadioConfig, bool) {
	if q.size() == 0 {
		return radioconf.RadioConfig{}, false
	}
	idx := (q.head - 1) & modMask
	return q.entries[idx].conf, true
}

// Reset empties the queue.
func (q *Queue) Reset() {
	q.head = 0
	q.tail = 0
}
