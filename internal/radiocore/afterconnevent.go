package radiocore

// afterConnEvent performs channel-hopping and speculative-inference
// housekeeping at the end of a connection event (RadioTask.c's
// afterConnEvent). Must be called with rc.mu held.
func (rc *RadioCore) afterConnEvent(slave, gotData bool) {
	curRadioTime := rc.wrapper.CurrentTime()
	if gotData {
		rc.conn.connTimeoutTime = curRadioTime + rc.conn.rconf.ConnTimeoutTicks
		rc.conn.emptyHops = 0
	} else {
		rc.conn.emptyHops++
		deadByTimeout := rc.conn.connTimeoutTime-curRadioTime > 0x80000000
		deadByEmptyHops := rc.conn.emptyHops > uint32(rc.conn.rconf.SlaveLatency)+3
		if deadByTimeout || deadByEmptyHops {
			rc.handleConnFinished()
			return
		}
	}

	if !rc.conn.rconf.ChanMapCertain && slave {
		chanBit := uint64(1) << rc.getCurrChan()
		if rc.conn.firstPacket && rc.conn.chanMapTestMask&chanBit == 0 {
			rc.conn.rconf.ChanMap &^= chanBit
			rc.computeMaps()
		}
		rc.conn.chanMapTestMask |= chanBit
		if rc.conn.chanMapTestMask == 0x1FFFFFFFFF {
			rc.conn.rconf.ChanMapCertain = true
			rc.reportMeasChanMap(rc.conn.rconf.ChanMap)
		}
	}

	if slave && rc.cmd.instaHop {
		switch {
		case rc.conn.firstPacket && rc.conn.rconf.IntervalCertain:
			// we didn't get an anchor packet, but don't let lastAnchorTicks
			// fall behind, or it messes up timeDelta for the next event.
			rc.conn.lastAnchorTicks += rc.conn.rconf.HopIntervalTicks

		// timeDelta is valid if !firstPacket and !rconf.WinOffsetCertain
		// (and slave and instaHop).
		case !rc.conn.firstPacket && !rc.conn.rconf.WinOffsetCertain:
			if rc.conn.rconf.IntervalCertain {
				winOffset := rc.conn.timeDelta - rc.conn.prevInterval
				rc.conn.nextHopTime += uint32(winOffset) * 5000
				rc.conn.rconf.WinOffsetCertain = true
				rc.reportMeasWinOffset(winOffset)
			} else {
				deltaInstant := uint16((uint32(rc.conn.connEventCount) - uint32(rc.conn.connUpdateInstant)) & 0xFFFF)
				if rc.conn.timeDelta != rc.conn.prevInterval {
					winOffset := rc.conn.timeDelta - rc.conn.prevInterval
					rc.conn.rconf.WinOffsetCertain = true
					// no point messing with nextHopTime since interval unknown
					rc.reportMeasWinOffset(winOffset)
					rc.reportMeasDeltaInstant(deltaInstant)
				} else if deltaInstant > deltaInstantTimeout {
					// took too long to observe a change, assume no change
					rc.conn.rconf.WinOffsetCertain = true
					rc.conn.rconf.IntervalCertain = true
					rc.conn.rconf.HopIntervalTicks = uint32(rc.conn.prevInterval) * 5000
					rc.conn.nextHopTime = rc.conn.lastAnchorTicks + rc.conn.rconf.HopIntervalTicks
					rc.reportMeasWinOffset(0)
					rc.reportMeasDeltaInstant(0)
					rc.reportMeasInterval(rc.conn.prevInterval)
				}
			}

		// we can calculate the median hop interval from our measurements.
		case !rc.conn.rconf.IntervalCertain && rc.conn.rconf.WinOffsetCertain &&
			rc.conn.itInd >= uint32(len(rc.conn.intervalTicks)) && rc.conn.itInd != 0xFFFFFFFF:
			medIntervalTicks := median(rc.conn.intervalTicks[:])
			interval := (medIntervalTicks + 2500) / 5000 // snap to nearest 1.25ms multiple
			rc.conn.rconf.HopIntervalTicks = interval * 5000
			rc.conn.rconf.IntervalCertain = true
			rc.reportMeasInterval(uint16(interval))

			// clock drift compensator only works once interval is correct;
			// reset its state so it doesn't time out prematurely.
			for i := range rc.conn.anchorOffset {
				rc.conn.anchorOffset[i] = aoTarget
			}
			rc.conn.nextHopTime = rc.conn.lastAnchorTicks + rc.conn.rconf.HopIntervalTicks
		}
	}

	// last connection event is now "done"
	rc.conn.curUnmapped = (rc.conn.curUnmapped + rc.conn.hopIncrement) % 37
	rc.conn.connEventCount++
	if instant, conf, ok := rc.confQ.Dequeue(uint16(rc.conn.connEventCount & 0xFFFF)); ok {
		_ = instant
		rc.conn.rconf = conf
		rc.conn.nextHopTime += uint32(conf.Offset) * 5000

		rc.computeMaps()

		if rc.cmd.instaHop && !rc.conn.rconf.IntervalCertain {
			rc.conn.itInd = 0xFFFFFFFF
		}
		if !rc.conn.rconf.ChanMapCertain {
			rc.conn.chanMapTestMask = 0
		}
	}

	// slaves need to adjust for master clock drift
	if slave && rc.conn.rconf.IntervalCertain &&
		rc.conn.connEventCount&uint32(len(rc.conn.anchorOffset)-1) == 0 {
		medAnchorOffset := median(rc.conn.anchorOffset[:])
		rc.conn.nextHopTime += medAnchorOffset - aoTarget
	}

	rc.conn.nextHopTime += rc.conn.rconf.HopIntervalTicks
}
