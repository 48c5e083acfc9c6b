package radio

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestHopDelayFiresImmediatelyOnZeroDelay(t *testing.T) {
	var fired atomic.Bool
	var h HopDelay
	h.Trigger(0, func() { fired.Store(true) })
	if !fired.Load() {
		t.Fatal("expected immediate fire on zero delay")
	}
}

func TestHopDelayFiresAfterDelay(t *testing.T) {
	var fired atomic.Bool
	var h HopDelay
	h.Trigger(2000, func() { fired.Store(true) }) // 2ms

	if fired.Load() {
		t.Fatal("should not have fired yet")
	}
	time.Sleep(20 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("expected fire after delay elapsed")
	}
}

func TestHopDelayPostponeExtendsDelay(t *testing.T) {
	var fired atomic.Bool
	var h HopDelay
	h.Trigger(5*1000, func() { fired.Store(true) }) // 5ms
	h.Postpone(20 * 1000)                           // +20ms

	time.Sleep(10 * time.Millisecond)
	if fired.Load() {
		t.Fatal("postponed trigger fired too early")
	}
	time.Sleep(30 * time.Millisecond)
	if !fired.Load() {
		t.Fatal("postponed trigger never fired")
	}
}

func TestStopDelayImmediateOnZero(t *testing.T) {
	var called atomic.Bool
	s := NewStopDelay(func() { called.Store(true) })
	s.Trigger(0)
	if !called.Load() {
		t.Fatal("expected immediate stop callback on zero delay")
	}
}

func TestStopDelayCannotBeDelayedFurther(t *testing.T) {
	var calls atomic.Int32
	s := NewStopDelay(func() { calls.Add(1) })

	s.Trigger(5 * 1000)  // pending stop in 5ms
	s.Trigger(50 * 1000) // longer delay must be ignored

	time.Sleep(15 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 stop callback near the original 5ms target, got %d", calls.Load())
	}
}

func TestStopDelayCanBeMadeSooner(t *testing.T) {
	var calls atomic.Int32
	s := NewStopDelay(func() { calls.Add(1) })

	s.Trigger(50 * 1000) // pending stop in 50ms
	s.Trigger(5 * 1000)  // shorter delay should override

	time.Sleep(15 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("expected the sooner trigger to win, got %d calls", calls.Load())
	}
}

func TestStopDelayCancel(t *testing.T) {
	var called atomic.Bool
	s := NewStopDelay(func() { called.Store(true) })
	s.Trigger(5 * 1000)
	s.Cancel()

	time.Sleep(15 * time.Millisecond)
	if called.Load() {
		t.Fatal("cancelled trigger should not fire")
	}
}
