package auxsched

import (
	"testing"

	"github.com/cwsl/blesniffercore/internal/frame"
)

func TestInsertOverlapMerge(t *testing.T) {
	// Scenario S3: insert (chan=2, PHY1M, t=1000, dur=4000) then
	// (chan=2, PHY1M, t=3000, dur=4000). Expect a single merged entry
	// t=1000, dur=6000.
	var s Sched
	if ok := s.Insert(2, frame.PHY1M, 1000, 4000); !ok {
		t.Fatal("first insert should succeed")
	}
	if ok := s.Insert(2, frame.PHY1M, 3000, 4000); !ok {
		t.Fatal("second insert should succeed")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 merged entry, got %d", s.Len())
	}
	if s.events[0].radioTime != 1000 || s.events[0].duration != 6000 {
		t.Fatalf("expected {t:1000 dur:6000}, got {t:%d dur:%d}",
			s.events[0].radioTime, s.events[0].duration)
	}
}

func TestInsertKeepsSortedNoOverlap(t *testing.T) {
	var s Sched
	s.Insert(1, frame.PHY1M, 5000, 1000)
	s.Insert(2, frame.PHY1M, 1000, 1000)
	s.Insert(3, frame.PHY1M, 3000, 1000)

	if s.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", s.Len())
	}
	for i := 1; i < len(s.events); i++ {
		if s.events[i].radioTime < s.events[i-1].radioTime {
			t.Fatalf("events not sorted ascending by radioTime: %+v", s.events)
		}
	}
}

func TestInsertFullReturnsFalse(t *testing.T) {
	var s Sched
	for i := 0; i < MaxEvents; i++ {
		if !s.Insert(uint8(i), frame.PHY1M, uint32(i*10000), 100) {
			t.Fatalf("insert %d should have succeeded", i)
		}
	}
	if s.Insert(200, frame.PHY1M, 999999, 100) {
		t.Fatal("insert at capacity should fail")
	}
	if s.Len() != MaxEvents {
		t.Fatalf("full scheduler should still hold exactly %d entries", MaxEvents)
	}
}

func TestInsertColocatedNeverGrowsList(t *testing.T) {
	var s Sched
	for i := 0; i < 20; i++ {
		s.Insert(5, frame.PHY2M, uint32(i*500), 1000)
	}
	if s.Len() != 1 {
		t.Fatalf("colocated overlapping inserts should merge into 1 entry, got %d", s.Len())
	}
}

func TestNextNothingScheduled(t *testing.T) {
	var s Sched
	until, ch, phy := s.Next(1000)
	if ch != NoneScheduledChan {
		t.Fatalf("expected sentinel channel, got %d", ch)
	}
	if phy != frame.PHY1M {
		t.Fatalf("expected PHY1M sentinel, got %v", phy)
	}
	if until <= 1000 {
		t.Fatalf("expected until in the future, got %d", until)
	}
}

func TestNextActiveEventChainedOverlap(t *testing.T) {
	var s Sched
	s.Insert(1, frame.PHY1M, 0, 1000)
	s.Insert(2, frame.PHY1M, 500, 1000) // overlapping, different chan so no merge

	until, ch, phy := s.Next(600)
	if ch != 2 || phy != frame.PHY1M {
		t.Fatalf("expected the most recently started ongoing event (chan 2), got chan=%d", ch)
	}
	if until != 1500 {
		t.Fatalf("expected until=1500 (end of chan 2 window), got %d", until)
	}
}

func TestNextClearsPastEntries(t *testing.T) {
	var s Sched
	s.Insert(1, frame.PHY1M, 0, 1000)
	// exactly ending at now: should survive this Next() call (Open Question #2)
	_, _, _ = s.Next(1000)
	if s.Len() != 1 {
		t.Fatalf("entry ending exactly at now should survive one more Next call, len=%d", s.Len())
	}
	// now past its end: should be cleared
	_, _, _ = s.Next(1001)
	if s.Len() != 0 {
		t.Fatalf("entry strictly in the past should be cleared, len=%d", s.Len())
	}
}

func TestReset(t *testing.T) {
	var s Sched
	s.Insert(1, frame.PHY1M, 0, 1000)
	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("expected empty scheduler after reset, got %d", s.Len())
	}
}
