package confqueue

import (
	"testing"

	"github.com/cwsl/blesniffercore/internal/radioconf"
)

func TestEnqueueDequeueExactMatch(t *testing.T) {
	var q Queue
	want := radioconf.RadioConfig{HopIntervalTicks: 12345}
	q.Enqueue(50, want)

	instant, conf, ok := q.Dequeue(50)
	if !ok {
		t.Fatal("expected dequeue to succeed on exact match")
	}
	if instant != 50 {
		t.Errorf("instant = %d, want 50", instant)
	}
	if conf != want {
		t.Errorf("conf = %+v, want %+v", conf, want)
	}

	if _, _, ok := q.Dequeue(50); ok {
		t.Fatal("single-dequeue semantics violated: entry dequeued twice")
	}
}

func TestDequeueMissByOnePastEntry(t *testing.T) {
	// Scenario S4.
	var q Queue
	q.Enqueue(100, radioconf.RadioConfig{})

	instant, _, ok := q.Dequeue(101)
	if !ok {
		t.Fatal("expected dequeue(101) to pop the past entry")
	}
	if instant == 101 {
		t.Fatal("popped entry should carry its own past instant (100), not the query instant")
	}

	if _, _, ok := q.Dequeue(100); ok {
		t.Fatal("expected subsequent dequeue(100) to return nothing, queue already drained")
	}
}

func TestDequeueFutureInstantWaits(t *testing.T) {
	var q Queue
	q.Enqueue(200, radioconf.RadioConfig{})
	if _, _, ok := q.Dequeue(100); ok {
		t.Fatal("dequeue should not return an entry whose instant is still in the future")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	var q Queue
	for i := 0; i < capacity; i++ {
		q.Enqueue(uint16(i), radioconf.RadioConfig{})
	}
	// capacity is 7 usable slots; the 8th enqueue should be silently dropped.
	// Dequeue(7) pops the accepted instants 0-6 as past entries one by one,
	// and would pop instant 7 as an exact match had it been accepted.
	popped := 0
	for {
		instant, _, ok := q.Dequeue(7)
		if !ok {
			break
		}
		if instant == 7 {
			t.Fatal("instant 7 should never have been accepted once the queue was full")
		}
		popped++
	}
	if popped != capacity-1 {
		t.Fatalf("popped %d entries, want %d", popped, capacity-1)
	}
}

func TestLatestReturnsMostRecentlyEnqueued(t *testing.T) {
	var q Queue
	q.Enqueue(1, radioconf.RadioConfig{HopIntervalTicks: 1})
	q.Enqueue(2, radioconf.RadioConfig{HopIntervalTicks: 2})

	latest, ok := q.Latest()
	if !ok {
		t.Fatal("expected Latest to return a value")
	}
	if latest.HopIntervalTicks != 2 {
		t.Errorf("Latest() = %+v, want HopIntervalTicks=2", latest)
	}
}

func TestReset(t *testing.T) {
	var q Queue
	q.Enqueue(1, radioconf.RadioConfig{})
	q.Reset()
	if _, ok := q.Latest(); ok {
		t.Fatal("expected empty queue after reset")
	}
}
