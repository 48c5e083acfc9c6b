// Package packetring implements PacketRing (spec §4.4, C4): a lock-free
// single-producer/single-consumer ring of fixed-size Frames bridging the
// radio-ISR producer (on_frame/indicatePacket) and the host-link consumer
// task, plus the advertiser MAC/RPA/RSSI filtering that runs before enqueue.
package packetring

import (
	"sync"
	"sync/atomic"

	"github.com/cwsl/blesniffercore/internal/frame"
)

// Size is the fixed, power-of-two slot count (spec §4.4).
const Size = 8
const mask = Size - 1

// Ring is a PacketRing instance. The zero value is ready to use. Exactly
// one goroutine may call Send, and exactly one goroutine may call Recv.
type Ring struct {
	slots [Size]frame.Frame
	head  atomic.Uint32 // producer writes here
	tail  atomic.Uint32 // consumer reads here

	avail sync.Cond
	mu    sync.Mutex
}

// ensureInit lazily wires the condition variable to its mutex; Go has no
// zero-value sync.Cond, so Ring provides its own constructor-equivalent.
func (r *Ring) ensureInit() {
	if r.avail.L == nil {
		r.avail.L = &r.mu
	}
}

// Send attempts to enqueue f (producer side, called from radio-callback
// context). Returns false if the ring is full, in which case the frame is
// silently dropped (spec §4.4/§8 invariant #5: "once full, producer drops
// and reports nothing to consumer").
func (r *Ring) Send(f *frame.Frame) bool {
	r.ensureInit()

	head := r.head.Load()
	tail := r.tail.Load()
	if (head-tail)&mask == mask {
		return false
	}

	idx := head & mask
	r.slots[idx] = *f
	r.head.Store(head + 1)

	r.mu.Lock()
	r.avail.Signal()
	r.mu.Unlock()
	return true
}

// Recv blocks until a frame is available, then returns it (consumer side).
func (r *Ring) Recv() frame.Frame {
	r.ensureInit()

	r.mu.Lock()
	for (r.head.Load()-r.tail.Load())&mask == 0 {
		r.avail.Wait()
	}
	r.mu.Unlock()

	tail := r.tail.Load()
	idx := tail & mask
	f := r.slots[idx]
	r.tail.Store(tail + 1)
	return f
}

// TryRecv is the non-blocking variant of Recv, used by tests. It consumes
// frames just as Recv does, so it counts as the ring's single consumer.
func (r *Ring) TryRecv() (frame.Frame, bool) {
	r.ensureInit()

	head := r.head.Load()
	tail := r.tail.Load()
	if (head-tail)&mask == 0 {
		return frame.Frame{}, false
	}
	idx := tail & mask
	f := r.slots[idx]
	r.tail.Store(tail + 1)
	return f, true
}

// Len reports the number of frames currently queued.
func (r *Ring) Len() int {
	return int((r.head.Load() - r.tail.Load()) & mask)
}
