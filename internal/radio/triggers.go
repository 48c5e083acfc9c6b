package radio

import (
	"sync"
	"time"
)

// timeTrigger is a time.Timer-backed implementation shared by HopDelay and
// StopDelay. Unlike the radio Wrapper, the underlying timer primitive here
// is the standard library's monotonic clock, not special MCU hardware, so
// it is implemented directly rather than left as an external collaborator.
type timeTrigger struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	target  time.Time
}

// HopDelay implements HopTrigger (DelayHopTrigger.c): fires immediately (via
// the zero-delay callback) when delayMicros is 0, otherwise schedules fire
// after delayMicros; Postpone extends a pending trigger's remaining delay.
type HopDelay struct {
	t timeTrigger
}

func (h *HopDelay) Trigger(delayMicros uint32, fire func()) {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()

	if delayMicros == 0 {
		fire()
		return
	}

	if h.t.timer != nil {
		h.t.timer.Stop()
	}
	d := time.Duration(delayMicros) * time.Microsecond
	h.t.target = time.Now().Add(d)
	h.t.pending = true
	h.t.timer = time.AfterFunc(d, func() {
		h.t.mu.Lock()
		h.t.pending = false
		h.t.mu.Unlock()
		fire()
	})
}

func (h *HopDelay) Postpone(delayMicros uint32) {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()

	if !h.t.pending || h.t.timer == nil {
		return
	}
	h.t.timer.Stop()
	newDelay := time.Until(h.t.target) + time.Duration(delayMicros)*time.Microsecond
	h.t.timer.Reset(newDelay)
	h.t.target = time.Now().Add(newDelay)
}

// StopDelay implements StopTrigger (DelayStopTrigger.c): schedules onStop
// after a delay, but per the original "never allow delaying a stop, only
// allow making it sooner" a later Trigger call with a longer remaining
// delay than the currently pending one is ignored.
type StopDelay struct {
	onStop func()
	t      timeTrigger
}

// NewStopDelay returns a StopDelay that calls onStop when it fires.
func NewStopDelay(onStop func()) *StopDelay {
	return &StopDelay{onStop: onStop}
}

func (s *StopDelay) Trigger(delayMicros uint32) {
	if delayMicros == 0 {
		s.t.mu.Lock()
		if s.t.timer != nil {
			s.t.timer.Stop()
		}
		s.t.pending = false
		s.t.mu.Unlock()
		s.onStop()
		return
	}

	s.t.mu.Lock()
	newTarget := time.Now().Add(time.Duration(delayMicros) * time.Microsecond)
	if s.t.pending && newTarget.After(s.t.target) {
		s.t.mu.Unlock()
		return
	}

	if s.t.timer != nil {
		s.t.timer.Stop()
	}
	s.t.pending = true
	s.t.target = newTarget
	s.t.timer = time.AfterFunc(time.Until(newTarget), func() {
		s.t.mu.Lock()
		s.t.pending = false
		s.t.mu.Unlock()
		s.onStop()
	})
	s.t.mu.Unlock()
}

func (s *StopDelay) Cancel() {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	if s.t.timer != nil {
		s.t.timer.Stop()
	}
	s.t.pending = false
}
