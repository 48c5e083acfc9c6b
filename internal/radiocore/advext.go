package radiocore

import "github.com/cwsl/blesniffercore/internal/frame"

// The auxPeriod constants below (and reactToAdvExtPDU's local
// offsetUsecMultiplier) mirror RadioTask.c's reactToAdvExtPDU: the AuxPtr's
// offset units and the per-PHY worst-case window needed to catch a following AUX_CONNECT_RSP or
// AUX_SCAN_RSP.
const (
	auxPeriod1M       = (auxOffTargetUsec + 3000) * 4
	auxPeriod2M       = (auxOffTargetUsec + 1800) * 4
	auxPeriodCoded    = (auxOffTargetUsec + 21000) * 4
	auxSchedulerDelay = 5000 * 4 // ticks; 5ms fallback re-invocation
)

// reactToAdvExtPDU parses an ADV_EXT_IND's Common Extended Advertising
// Payload header and, if it carries an AuxPtr, schedules a receive window
// for the advertised AUX_ADV_IND (RadioTask.c's reactToAdvExtPDU). Periodic
// advertising (SyncInfo) is parsed but not acted on; must be called with
// rc.mu held.
func (rc *RadioCore) reactToAdvExtPDU(f *frame.Frame, advLen uint8) {
	if advLen < 1 {
		return
	}
	payload := f.Payload()
	if len(payload) < 3 {
		return
	}

	hdrBodyLen := payload[2] & 0x3F
	if advLen < hdrBodyLen+1 {
		return // inconsistent headers
	}

	// extended header only present if hdrBodyLen allows for more than the
	// AdvMode byte itself.
	if hdrBodyLen <= 1 {
		return
	}
	if len(payload) < 4 {
		return
	}
	hdrFlags := payload[3]
	hdrPos := 4

	var auxPtr []byte

	advance := func(n int) bool {
		if len(payload) < hdrPos+n {
			return false
		}
		return true
	}

	if hdrFlags&0x01 != 0 { // AdvA
		if !advance(6) {
			return
		}
		hdrPos += 6
	}
	if hdrFlags&0x02 != 0 { // TargetA
		if !advance(6) {
			return
		}
		hdrPos += 6
	}
	if hdrFlags&0x04 != 0 { // CTEInfo
		if !advance(1) {
			return
		}
		hdrPos++
	}
	if hdrFlags&0x08 != 0 { // AdvDataInfo
		if !advance(2) {
			return
		}
		hdrPos += 2
	}
	if hdrFlags&0x10 != 0 { // AuxPtr
		if !advance(3) {
			return
		}
		auxPtr = payload[hdrPos : hdrPos+3]
		hdrPos += 3
	}
	if hdrFlags&0x20 != 0 { // SyncInfo: periodic advertising, not handled
		if !advance(18) {
			return
		}
		hdrPos += 18
	}
	if hdrFlags&0x40 != 0 { // TxPower
		if !advance(1) {
			return
		}
		hdrPos++
	}
	// ACAD, if any, fills the rest of hdrBodyLen; its contents are unused here.

	if hdrPos-2 > int(advLen) {
		return // inconsistent headers, parsing error
	}

	if auxPtr == nil || rc.cmd.state == StateScanning {
		return
	}

	chanNum := auxPtr[0] & 0x3F
	phy := frame.PHY(auxPtr[2] >> 5)
	if phy > frame.PHYCodedS8 {
		phy = frame.PHY2M
	}

	var offsetUsecMultiplier uint32 = 30
	if auxPtr[0]&0x80 != 0 {
		offsetUsecMultiplier = 300
	}
	auxOffset := uint32(auxPtr[1]) | uint32(auxPtr[2]&0x1F)<<8
	auxOffsetUs := auxOffset * offsetUsecMultiplier

	// account for being ready in advance
	if auxOffsetUs < auxOffTargetUsec {
		auxOffsetUs = 0
	} else {
		auxOffsetUs -= auxOffTargetUsec
	}

	radioTimeStart := f.TimestampTicks + auxOffsetUs*4

	var period uint32
	switch phy {
	case frame.PHY1M:
		period = auxPeriod1M
	case frame.PHY2M:
		period = auxPeriod2M
	default: // PHYCodedS8, PHYCodedS2
		period = auxPeriodCoded
	}
	rc.auxSched.Insert(chanNum, phy, radioTimeStart, period)

	// schedule a scheduler invocation in 5ms or sooner if needed
	ticksToStart := radioTimeStart - rc.wrapper.CurrentTime()
	if ticksToStart > 0x80000000 {
		ticksToStart = 0 // underflow
	}
	if ticksToStart < auxSchedulerDelay {
		rc.stopTrig.Trigger(ticksToStart >> 2)
	} else {
		rc.stopTrig.Trigger(5000)
	}
}
