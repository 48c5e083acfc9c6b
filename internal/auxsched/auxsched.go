// Package auxsched implements AuxAdvSched (spec §4.1, C1): a small,
// time-sorted queue of pending secondary-advertising-channel receive
// windows, with overlap merging and wrap-around-safe time comparison.
package auxsched

import "github.com/cwsl/blesniffercore/internal/frame"

// MaxEvents is the fixed capacity of the scheduler (spec §3 invariant:
// "AuxAdvSched holds at most 8 entries").
const MaxEvents = 8

// NoneScheduledChan is the sentinel channel value Next returns when no aux
// event is active right now.
const NoneScheduledChan = 0xFF

type event struct {
	ch        uint8
	phy       frame.PHY
	radioTime uint32
	duration  uint32
}

// Sched is an AuxAdvSched instance. The zero value is ready to use.
type Sched struct {
	events []event // kept sorted ascending by radioTime, len <= MaxEvents
}

// signedDelta interprets b-a as a signed 32-bit quantity, per spec §9's
// wrap-around-safe time arithmetic convention used throughout this module.
func signedDelta(b, a uint32) int32 {
	return int32(b - a)
}

// Insert places a new receive window into the schedule, merging it with any
// existing entry on the same (chan, phy) that overlaps in time (spec §4.1's
// six-case table). Returns false if the scheduler is full and the event is
// genuinely distinct (caller silently drops, per spec §4.1 failure mode).
func (s *Sched) Insert(chanNum uint8, phy frame.PHY, radioTime, duration uint32) bool {
	e := event{ch: chanNum, phy: phy, radioTime: radioTime, duration: duration}

	for i := 0; i < len(s.events); i++ {
		existing := &s.events[i]
		if existing.ch == chanNum && existing.phy == phy {
			startA, endA := existing.radioTime, existing.radioTime+existing.duration
			startB, endB := e.radioTime, e.radioTime+e.duration

			// offset calculation to simplify handling of wraparound
			var offset uint32
			switch {
			case startB-startA >= 0x80000000:
				offset = startB
			case startA-startB >= 0x80000000:
				offset = startA
			case startA > startB:
				offset = startB
			default:
				offset = startA
			}
			startA -= offset
			startB -= offset
			endA -= offset
			endB -= offset

			switch {
			case startB < startA:
				switch {
				case endB < startA:
					// Case A: no overlap, falls through to sorted insert below
				case endB < endA:
					// Case B: extend existing backwards to start_b
					existing.duration += startA - startB
					existing.radioTime = e.radioTime
					s.resort()
					return true
				default:
					// Case C: replace existing with new
					*existing = e
					s.resort()
					return true
				}
			case startB < endA:
				if endB < endA {
					// Case D: fully subsumed, no change
					return true
				}
				// Case E: extend existing forward to end_b
				existing.duration += endB - endA
				return true
			default:
				// Case F: start_b >= end_a, no overlap
			}
		}

		if len(s.events) == MaxEvents {
			return false
		}
		if signedDelta(existing.radioTime, e.radioTime) > 0 {
			s.events = append(s.events, event{})
			copy(s.events[i+1:], s.events[i:])
			s.events[i] = e
			return true
		}
	}

	if len(s.events) == MaxEvents {
		return false
	}
	s.events = append(s.events, e)
	return true
}

func (s *Sched) resort() {
	// insertion sort: at most one element is ever out of place after a merge
	for i := 1; i < len(s.events); i++ {
		for j := i; j > 0 && signedDelta(s.events[j].radioTime, s.events[j-1].radioTime) < 0; j-- {
			s.events[j], s.events[j-1] = s.events[j-1], s.events[j]
		}
	}
}

// clearPast drops every entry whose window ended strictly before now (spec
// §9 Open Question #2: the signed "strictly before" compare is preserved, so
// an entry ending exactly at now survives one more Next call).
func (s *Sched) clearPast(now uint32) {
	kept := s.events[:0]
	for _, e := range s.events {
		etime := e.radioTime + e.duration
		if signedDelta(etime, now) < 0 {
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
}

// Next returns the (until, chan, phy) triple describing the aux window
// active at now (spec §4.1, resolving Open Question #1 in favor of the
// newer chained-overlap-walk revision): it first prunes past entries, then
// either returns the most recently started of the entries already active at
// now - with its end clipped at the next entry's start if that comes sooner
// - or, if nothing is active yet, (now+delta, 0xFF, PHY1M) where delta is
// the time until the earliest future entry.
func (s *Sched) Next(now uint32) (until uint32, chanNum uint8, phy frame.PHY) {
	s.clearPast(now)

	timeToSoonest := int32(0x7FFFFFFF)
	if len(s.events) > 0 {
		timeToSoonest = signedDelta(s.events[0].radioTime, now)
	}

	if timeToSoonest <= 0 {
		eventToUse := 0
		for i := 1; i < len(s.events); i++ {
			if signedDelta(s.events[i].radioTime, now) <= 0 {
				eventToUse = i
			} else {
				break
			}
		}

		etime := s.events[eventToUse].radioTime + s.events[eventToUse].duration
		if len(s.events) > eventToUse+1 {
			nextStart := s.events[eventToUse+1].radioTime
			if signedDelta(nextStart, etime) < 0 {
				etime = nextStart
			}
		}

		return etime, s.events[eventToUse].ch, s.events[eventToUse].phy
	}

	return now + uint32(timeToSoonest), NoneScheduledChan, frame.PHY1M
}

// Reset clears all scheduled events.
func (s *Sched) Reset() {
	s.events = nil
}

// Len reports the number of currently scheduled events (test/diagnostic use).
func (s *Sched) Len() int {
	return len(s.events)
}
