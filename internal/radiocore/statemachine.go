package radiocore

import (
	"context"
	"time"

	"github.com/cwsl/blesniffercore/internal/auxsched"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/radio"
)

// Run drives the sniffer state machine until ctx is cancelled, performing
// one radio operation per iteration according to the current SnifferState
// (RadioTask.c's radioTaskFunction). It must run in its own goroutine;
// Handler methods invoked from elsewhere (internal/hostlink's
// command-reader goroutine) interrupt a blocked radio operation via
// wrapper.Stop and take effect on the next iteration.
func (rc *RadioCore) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rc.mu.Lock()
		rc.conn.pktDir = 0
		rc.conn.gotAuxConnReq = false
		state := rc.cmd.state
		rc.mu.Unlock()

		switch state {
		case StateStatic:
			rc.runStatic(ctx)
		case StateAdvertSeek:
			rc.runAdvertSeek(ctx)
		case StateAdvertHop:
			rc.runAdvertHop(ctx)
		case StatePaused:
			time.Sleep(100 * time.Millisecond)
		case StateData:
			rc.runData(ctx)
		case StateInitiating:
			rc.runInitiating(ctx)
		case StateCentral:
			rc.runCentral(ctx)
		case StatePeripheral:
			rc.runPeripheral(ctx)
		case StateAdvertising:
			rc.runAdvertising(ctx)
		case StateScanning:
			rc.runScanning(ctx)
		case StateAdvertisingExt:
			rc.runAdvertisingExt(ctx)
		}
	}
}

func (rc *RadioCore) runStatic(ctx context.Context) {
	rc.mu.Lock()
	validateCRC := rc.cmd.validateCRC
	auxAdvEnabled := rc.cmd.auxAdvEnabled

	var (
		chanNum  uint32
		phy      frame.PHY
		aa       uint32
		crcInit  uint32
		timeout  uint32
		forever  bool
	)
	if auxAdvEnabled {
		curT := rc.wrapper.CurrentTime()
		etime, ch, p := rc.auxSched.Next(curT)
		if etime-listenTicksMin-curT >= 0x80000000 {
			// pointless to listen for a tiny period, may stall the radio
			// with etime already in the past.
			rc.mu.Unlock()
			return
		}
		if ch == auxsched.NoneScheduledChan {
			chanNum = uint32(rc.cmd.statChan)
			phy = rc.cmd.statPHY
			aa = rc.conn.accessAddress
		} else {
			chanNum = uint32(ch)
			phy = p
			aa = bleAdvAA
		}
		crcInit = rc.cmd.statCRCI
		timeout = etime
		forever = false
	} else {
		chanNum = uint32(rc.cmd.statChan)
		phy = rc.cmd.statPHY
		aa = rc.conn.accessAddress
		crcInit = rc.cmd.statCRCI
		forever = true
	}
	rc.mu.Unlock()

	rc.wrapper.RecvFrames(ctx, phy, chanNum, aa, crcInit, timeout, forever, validateCRC, rc.onFrame)
}

func (rc *RadioCore) runAdvertSeek(ctx context.Context) {
	rc.mu.Lock()
	rc.conn.gotLegacy38 = false
	rc.conn.gotLegacy39 = false
	auxAdvEnabled := rc.cmd.auxAdvEnabled
	validateCRC := rc.cmd.validateCRC
	if auxAdvEnabled {
		// if no legacy advertisements show up in 3s and we also care about
		// extended advertising, jump to ADVERT_HOP with an assumed hop
		// interval; a later legacy ad corrects it.
		rc.stopTrig.Trigger(3 * 1000000)
	}

	var delay1, delay2 uint32
	// jump straight to 39 after 37, to catch ads hopping very fast
	if rc.conn.connEventCount == 0 || rc.conn.fastAdvHop {
		delay1, delay2 = 0, 22*4000
	} else {
		delay1, delay2 = 450*4, 22*4000
	}
	rc.mu.Unlock()

	rc.wrapper.RecvAdv3(ctx, delay1, delay2, validateCRC, rc.onFrame)

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.cmd.state != StateAdvertSeek {
		return // cancelled
	}

	if !rc.conn.gotLegacy38 && !rc.conn.gotLegacy39 && auxAdvEnabled {
		rc.conn.rconf.HopIntervalTicks = 688 * 4 // assumed hop interval, usec * 4
		rc.stateTransition(StateAdvertHop)
		return
	}

	// it might be hopping too fast to catch the advertisement on 38
	if !rc.conn.gotLegacy38 && !rc.conn.gotLegacy39 && !rc.conn.fastAdvHop {
		rc.conn.fastAdvHop = true
	}

	// assume that in 5 advertiser hops, at least one is without scans
	if rc.conn.connEventCount >= 5 {
		rc.reportMeasAdvHop(rc.conn.rconf.HopIntervalTicks >> 2)
		rc.stateTransition(StateAdvertHop)
	}
}

func (rc *RadioCore) runAdvertHop(ctx context.Context) {
	rc.mu.Lock()
	rc.conn.postponed = false
	auxAdvEnabled := rc.cmd.auxAdvEnabled
	validateCRC := rc.cmd.validateCRC
	hopIntervalTicks := rc.conn.rconf.HopIntervalTicks

	var (
		useAux     bool
		auxChan    uint32
		auxPhy     frame.PHY
		auxTimeout uint32
		stopDelay  uint32
	)
	if auxAdvEnabled {
		curT := rc.wrapper.CurrentTime()
		etime, ch, p := rc.auxSched.Next(curT)
		if etime-listenTicksMin-curT >= 0x80000000 {
			rc.mu.Unlock()
			return
		}
		if ch != auxsched.NoneScheduledChan {
			useAux = true
			auxChan = uint32(ch)
			auxPhy = p
			auxTimeout = etime
		} else {
			// force-cancel RecvAdv3 eventually
			stopDelay = (etime - rc.wrapper.CurrentTime()) >> 2
		}
	}
	rc.mu.Unlock()

	switch {
	case useAux:
		rc.wrapper.RecvFrames(ctx, auxPhy, auxChan, bleAdvAA, 0x555555, auxTimeout, false, validateCRC, rc.onFrame)
	case auxAdvEnabled:
		rc.stopTrig.Trigger(stopDelay)
		rc.wrapper.RecvAdv3(ctx, hopIntervalTicks-60, hopIntervalTicks+5000, validateCRC, rc.onFrame)
	default:
		rc.wrapper.RecvAdv3(ctx, hopIntervalTicks-60, hopIntervalTicks+5000, validateCRC, rc.onFrame)
	}
}

func (rc *RadioCore) runData(ctx context.Context) {
	rc.mu.Lock()
	chanNum := uint32(rc.getCurrChan())
	var timeExtension uint32
	if !rc.conn.rconf.WinOffsetCertain {
		timeExtension = rc.conn.rconf.HopIntervalTicks
	}
	rc.conn.firstPacket = true
	rc.conn.moreData = 0x3
	phy := rc.conn.rconf.Phy
	aa := rc.conn.accessAddress
	crcInit := rc.conn.crcInit
	timeout := rc.conn.nextHopTime + timeExtension
	validateCRC := rc.cmd.validateCRC
	rc.mu.Unlock()

	rc.wrapper.RecvFrames(ctx, phy, chanNum, aa, crcInit, timeout, false, validateCRC, rc.onFrame)

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.afterConnEvent(true, !rc.conn.firstPacket)
}

func (rc *RadioCore) runInitiating(ctx context.Context) {
	rc.mu.Lock()
	rc.conn.pktDir = 1
	phy := rc.cmd.statPHY
	chanNum := uint32(rc.cmd.statChan)
	ourAddr := rc.cmd.ourAddr
	ourAddrRandom := rc.cmd.ourAddrRandom
	peerAddr := rc.cmd.peerAddr
	peerAddrRandom := rc.cmd.peerAddrRandom
	connReqLLData := rc.conn.connReqLLData
	rc.mu.Unlock()

	result, err := rc.wrapper.Initiate(ctx, phy, chanNum, 0, true, rc.onFrame,
		ourAddr, ourAddrRandom, peerAddr, peerAddrRandom, connReqLLData[:])

	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.cmd.state != StateInitiating {
		return // initiating state was cancelled
	}
	if err != nil {
		rc.dprintf("initiate failed: %v", err)
		rc.handleConnFinished()
		return
	}

	rc.conn.useCSA2 = result.UseCSA2
	rc.handleConnReq(result.ConnPhy, 0, connReqLLData, result.UsedAuxConnReq)
	rc.conn.nextHopTime = result.ConnTime - aoTarget + rc.conn.rconf.HopIntervalTicks
	rc.wrapper.ResetSeqStat()
	rc.stateTransition(StateCentral)
}

// emptyTXSource is a TXSource that never has anything pending, used while
// sweeping WinOffset values to avoid transmitting real PDUs before the
// offset is confirmed.
type emptyTXSource struct{}

func (emptyTXSource) Take() []radio.TXEntry { return nil }
func (emptyTXSource) Flush(uint32)          {}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (rc *RadioCore) runCentral(ctx context.Context) {
	rc.mu.Lock()
	chanNum := uint32(rc.getCurrChan())
	phy := rc.conn.rconf.Phy
	aa := rc.conn.accessAddress
	crcInit := rc.conn.crcInit
	rc.conn.firstPacket = false // no anchor offset calcs needed; we're central
	rc.conn.pktDir = 1
	curHopTime := rc.conn.nextHopTime - rc.conn.rconf.HopIntervalTicks + aoTarget
	winOffsetCertain := rc.conn.rconf.WinOffsetCertain
	nextHopTime := rc.conn.nextHopTime
	hopIntervalTicks := rc.conn.rconf.HopIntervalTicks
	rc.mu.Unlock()

	var gotData bool

	if winOffsetCertain {
		entries := rc.tx.Take()
		result, err := rc.wrapper.Central(ctx, phy, chanNum, aa, crcInit, nextHopTime, rc.onFrame, txSourceAdapter{rc.tx}, curHopTime)
		gotData = err == nil

		rc.mu.Lock()
		if rc.cmd.state != StateCentral {
			rc.tx.Flush(result.NumSent)
			rc.mu.Unlock()
			return
		}
		rc.reactToTransmitted(entries[:minInt(len(entries), int(result.NumSent))])
		rc.tx.Flush(result.NumSent)
		rc.mu.Unlock()
	} else {
		// sweep WinOffset values without transmitting any non-empty PDU,
		// to have the peripheral reveal the real WinOffset.
		maxOffset := hopIntervalTicks / 5000
		for offset := uint32(0); offset <= maxOffset; offset++ {
			rc.mu.Lock()
			cancelled := rc.cmd.state != StateCentral
			rc.mu.Unlock()
			if cancelled {
				break
			}

			result, err := rc.wrapper.Central(ctx, phy, chanNum, aa, crcInit,
				nextHopTime+offset*5000, rc.onFrame, emptyTXSource{}, curHopTime+offset*5000)
			_ = result
			if err == nil {
				gotData = true
				rc.mu.Lock()
				rc.conn.rconf.WinOffsetCertain = true
				rc.reportMeasWinOffset(uint16(offset))
				rc.conn.nextHopTime += offset * 5000
				rc.mu.Unlock()
				break
			}
		}
	}

	rc.mu.Lock()
	if rc.cmd.state != StateCentral {
		rc.mu.Unlock()
		return
	}
	pending := rc.conn.nextHopTime - rc.wrapper.CurrentTime()
	rc.mu.Unlock()

	// sleep till the anchor offset before the next anchor point
	if pending < 0x7FFFFFFF && pending > 2000 {
		time.Sleep(time.Duration(pending/4) * time.Microsecond)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.afterConnEvent(false, gotData)
}

func (rc *RadioCore) runPeripheral(ctx context.Context) {
	rc.mu.Lock()
	var timeExtension uint32
	if !rc.conn.rconf.WinOffsetCertain {
		timeExtension = rc.conn.rconf.HopIntervalTicks
	}
	chanNum := uint32(rc.getCurrChan())
	phy := rc.conn.rconf.Phy
	aa := rc.conn.accessAddress
	crcInit := rc.conn.crcInit
	timeout := rc.conn.nextHopTime + timeExtension
	rc.conn.firstPacket = true // for anchor offset calculations
	llEncryption := rc.conn.llEncryption
	instaHop := rc.cmd.instaHop
	rc.mu.Unlock()

	entries := rc.tx.Take()
	result, err := rc.wrapper.Peripheral(ctx, phy, chanNum, aa, crcInit, timeout, rc.onFrame, txSourceAdapter{rc.tx}, 0)

	rc.mu.Lock()
	if rc.cmd.state != StatePeripheral {
		rc.tx.Flush(result.NumSent)
		rc.mu.Unlock()
		return
	}
	rc.reactToTransmitted(entries[:minInt(len(entries), int(result.NumSent))])
	rc.tx.Flush(result.NumSent)
	nextHopTime := rc.conn.nextHopTime
	rc.mu.Unlock()

	pending := nextHopTime - rc.wrapper.CurrentTime()
	if pending < 0x7FFFFFFF && pending > 2000 && !(llEncryption && instaHop) {
		time.Sleep(time.Duration(pending/4) * time.Microsecond)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.afterConnEvent(true, err == nil)
}

func (rc *RadioCore) runAdvertising(ctx context.Context) {
	rc.mu.Lock()
	ourAddr := rc.cmd.ourAddr
	ourAddrRandom := rc.cmd.ourAddrRandom
	advData := rc.cmd.advData
	scanRspData := rc.cmd.scanRspData
	mode := rc.cmd.advMode
	// slightly "randomize" advertisement timing, as the spec requires
	sleepMs := uint32(rc.cmd.advIntervalMs) + rc.wrapper.CurrentTime()&0x7
	rc.mu.Unlock()

	rc.wrapper.Advertise3(ctx, rc.onFrame, ourAddr, ourAddrRandom, advData, scanRspData, mode)

	rc.mu.Lock()
	stillAdvertising := rc.cmd.state == StateAdvertising
	rc.mu.Unlock()

	// don't sleep if a connection was established out from under us
	if stillAdvertising {
		time.Sleep(time.Duration(sleepMs) * time.Millisecond)
	}
}

func (rc *RadioCore) runScanning(ctx context.Context) {
	rc.mu.Lock()
	statPHY := rc.cmd.statPHY
	statChan := uint32(rc.cmd.statChan)
	ourAddr := rc.cmd.ourAddr
	ourAddrRandom := rc.cmd.ourAddrRandom
	validateCRC := rc.cmd.validateCRC
	rc.mu.Unlock()

	// the radio Wrapper interface folds the legacy-only scan variant into
	// the same entry point; PHY/channel selection above already reflects
	// whichever mode the host configured.
	rc.wrapper.Scan(ctx, statPHY, statChan, 0, true, ourAddr, ourAddrRandom, validateCRC, rc.onFrame)
}

func (rc *RadioCore) runAdvertisingExt(ctx context.Context) {
	rc.mu.Lock()
	ourAddr := rc.cmd.ourAddr
	ourAddrRandom := rc.cmd.ourAddrRandom
	advData := rc.cmd.advData
	mode := rc.cmd.advExtMode
	primaryPhy := rc.cmd.primaryAdvPhy
	secondaryPhy := rc.cmd.secondaryAdvPhy
	secondaryChan := uint32(rc.cmd.secondaryAdvChan)
	adi := rc.cmd.adi
	sleepMs := uint32(rc.cmd.advIntervalMs) + rc.wrapper.CurrentTime()&0x7
	rc.mu.Unlock()

	rc.wrapper.AdvertiseExt3(ctx, rc.onFrame, ourAddr, ourAddrRandom, advData, mode,
		primaryPhy, secondaryPhy, secondaryChan, adi)

	rc.mu.Lock()
	rc.cmd.secondaryAdvChan = uint8((uint32(rc.cmd.secondaryAdvChan) + 1) % 37)
	stillAdvertising := rc.cmd.state == StateAdvertisingExt
	rc.mu.Unlock()

	if stillAdvertising {
		time.Sleep(time.Duration(sleepMs) * time.Millisecond)
	}
}
