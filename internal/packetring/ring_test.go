package packetring

import (
	"testing"

	"github.com/cwsl/blesniffercore/internal/frame"
)

func TestSendRecvFIFO(t *testing.T) {
	var r Ring
	for i := 0; i < 5; i++ {
		f := frame.Frame{EventCtr: uint16(i)}
		if !r.Send(&f) {
			t.Fatalf("send %d should have succeeded", i)
		}
	}
	for i := 0; i < 5; i++ {
		f, ok := r.TryRecv()
		if !ok {
			t.Fatalf("recv %d should have succeeded", i)
		}
		if f.EventCtr != uint16(i) {
			t.Fatalf("got EventCtr=%d, want %d (FIFO order)", f.EventCtr, i)
		}
	}
}

func TestSendDropsWhenFull(t *testing.T) {
	var r Ring
	accepted := 0
	for i := 0; i < Size+4; i++ {
		f := frame.Frame{EventCtr: uint16(i)}
		if r.Send(&f) {
			accepted++
		}
	}
	// mask semantics: at most Size-1 entries fit before (head-tail)&mask==mask
	if accepted != Size-1 {
		t.Fatalf("accepted %d frames, want %d (invariant #5)", accepted, Size-1)
	}
	if _, ok := r.TryRecv(); !ok {
		t.Fatal("expected at least one frame queued")
	}
}

func TestTryRecvEmpty(t *testing.T) {
	var r Ring
	if _, ok := r.TryRecv(); ok {
		t.Fatal("expected empty ring to report no frame")
	}
}

func TestRecvBlocksUntilSend(t *testing.T) {
	var r Ring
	done := make(chan frame.Frame, 1)
	go func() {
		done <- r.Recv()
	}()

	f := frame.Frame{EventCtr: 42}
	r.Send(&f)

	got := <-done
	if got.EventCtr != 42 {
		t.Fatalf("got EventCtr=%d, want 42", got.EventCtr)
	}
}
