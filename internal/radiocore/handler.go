package radiocore

import (
	"github.com/cwsl/blesniffercore/internal/chansel"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
	"github.com/cwsl/blesniffercore/internal/packetring"
	"github.com/cwsl/blesniffercore/internal/radioconf"
)

// The methods in this file implement hostlink.Handler: one per inbound
// command opcode, grounded on RadioTask.c's setter functions (called by
// CommandTask.c's dispatch, already validated for length/range there).

func (rc *RadioCore) SetChanAAPHYCRCI(chanNum uint8, accessAddr uint32, phy frame.PHY, crcInit uint32) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cmd.statPHY = phy
	rc.cmd.statChan = chanNum
	rc.cmd.statCRCI = crcInit & 0xFFFFFF
	rc.stateTransition(StateStatic)
	rc.conn.accessAddress = accessAddr
	rc.cmd.advHopEnabled = false
	rc.auxSched.Reset()
	rc.wrapper.Stop()
}

func (rc *RadioCore) PauseAfterSniffDone(pause bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if pause {
		rc.cmd.sniffDoneState = StatePaused
	} else {
		rc.cmd.sniffDoneState = StateStatic
	}
}

func (rc *RadioCore) SetMinRssi(rssi int8) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.minRSSI = rssi
}

func (rc *RadioCore) SetMacFilt(enabled bool, mac [6]byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if enabled {
		rc.cmd.addrFilt = &packetring.MACFilter{Target: mac}
	} else {
		rc.cmd.addrFilt = nil
	}
}

// AdvHopSeekMode enters ADVERT_SEEK, assuming a fast MAC-filtered 37/38/39
// hop and relying on MAC filtering to work (RadioTask.c's advHopSeekMode).
func (rc *RadioCore) AdvHopSeekMode() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.advHopSeekMode()
}

// advHopSeekMode is the lock-already-held body of AdvHopSeekMode, also
// invoked internally by handleConnFinished when a followed connection ends.
func (rc *RadioCore) advHopSeekMode() {
	rc.conn.rconf.HopIntervalTicks = 10 * 4000
	rc.conn.connEventCount = 0
	rc.conn.fastAdvHop = false
	rc.stateTransition(StateAdvertSeek)
	rc.cmd.advHopEnabled = true
	rc.conn.sniffScanRspLen = 26
	rc.wrapper.Stop()
}

func (rc *RadioCore) SetFollowConnections(enabled bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.followConnections = enabled
}

func (rc *RadioCore) SetAuxAdvEnabled(enabled bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.auxAdvEnabled = enabled
	rc.auxSched.Reset()
}

// Reset returns the state machine to StateStatic, the nearest analogue to
// COMMAND_RESET's SysCtrlSystemReset() a long-lived host process has (see
// DESIGN.md).
func (rc *RadioCore) Reset() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stateTransition(StateStatic)
	rc.conn.accessAddress = bleAdvAA
	rc.cmd.advHopEnabled = false
	rc.auxSched.Reset()
	rc.wrapper.Stop()
}

func (rc *RadioCore) SendMarker() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.sendMarker()
}

func (rc *RadioCore) Transmit(llid uint8, data []byte, eventCtr uint16) {
	rc.tx.Insert(llid, data, eventCtr)
}

func (rc *RadioCore) InitiateConn(peerRandom bool, peerAddr [6]byte, llData [22]byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.peerAddrRandom = peerRandom
	rc.cmd.peerAddr = macToUint16s(peerAddr)
	rc.conn.connReqLLData = llData
	rc.stateTransition(StateInitiating)
	rc.wrapper.Stop()
	rc.tx.Reset()
}

func (rc *RadioCore) SetAddr(random bool, mac [6]byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.ourAddrRandom = random
	rc.cmd.ourAddr = macToUint16s(mac)
}

func (rc *RadioCore) Advertise(advData, scanRspData []byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.advData = append([]byte(nil), advData...)
	rc.cmd.scanRspData = append([]byte(nil), scanRspData...)
	rc.stateTransition(StateAdvertising)
	rc.wrapper.Stop()
	rc.tx.Reset()
}

func (rc *RadioCore) SetAdvInterval(intervalMs uint16) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.advIntervalMs = intervalMs
}

func (rc *RadioCore) SetRpaFilt(enabled bool, irk [16]byte) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if enabled {
		rc.rpaRes.SetIRK(irk)
		rc.cmd.addrFilt = &packetring.RPAFilter{Resolver: rc.rpaRes}
	} else {
		rc.cmd.addrFilt = nil
	}
}

func (rc *RadioCore) SetInstaHop(enabled bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.instaHop = enabled
}

// SetChanMap manually overrides the channel map for the connection
// currently being followed, taking effect one connection event from now
// (RadioTask.c's setChanMap). A no-op outside of a data connection state.
func (rc *RadioCore) SetChanMap(chanMap uint64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if !rc.inDataState() {
		return
	}

	last := rc.latestRconf()
	next := last.Clone()
	next.ChanMap = chanMap & 0x1FFFFFFFFF
	next.ChanMapCertain = true
	next.Offset = 0
	nextInstant := uint16((rc.conn.connEventCount + 1) & 0xFFFF)
	rc.confQ.Enqueue(nextInstant, next)
}

func (rc *RadioCore) PreloadConnParamUpdates(pairs []hostlink.ParamPair) error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if len(pairs) > MaxParamPairs {
		rc.dprintf("rejected IntvlPreload: %d pairs exceeds max %d", len(pairs), MaxParamPairs)
		return radioErrTooManyPairs
	}
	for _, p := range pairs {
		if p.Interval < 6 || p.Interval > 3200 {
			rc.dprintf("rejected IntvlPreload: interval %d out of range", p.Interval)
			return radioErrBadInterval
		}
		if p.DeltaInstant < 6 || p.DeltaInstant > 0x7FFF {
			rc.dprintf("rejected IntvlPreload: deltaInstant %d out of range", p.DeltaInstant)
			return radioErrBadDeltaInstant
		}
	}

	for i, p := range pairs {
		rc.conn.connParamPairs[i*2] = p.Interval
		rc.conn.connParamPairs[i*2+1] = p.DeltaInstant
	}
	rc.conn.preloadedParamIndex = 0
	rc.conn.numParamPairs = uint32(len(pairs))
	return nil
}

func (rc *RadioCore) Scan() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.stateTransition(StateScanning)
	rc.wrapper.Stop()
}

func macToUint16s(mac [6]byte) [3]uint16 {
	return [3]uint16{
		uint16(mac[0]) | uint16(mac[1])<<8,
		uint16(mac[2]) | uint16(mac[3])<<8,
		uint16(mac[4]) | uint16(mac[5])<<8,
	}
}

// inDataState reports whether the state machine is actively following a
// data connection (RadioTask.c's inDataState). Must be called with rc.mu
// held.
func (rc *RadioCore) inDataState() bool {
	switch rc.cmd.state {
	case StateData, StateCentral, StatePeripheral:
		return true
	default:
		return false
	}
}

// latestRconf returns the most speculative not-yet-applied RadioConfig, or
// the live one if no change is queued (RadioTask.c's rconf_latest fallback
// pattern). Must be called with rc.mu held.
func (rc *RadioCore) latestRconf() radioconf.RadioConfig {
	if latest, ok := rc.confQ.Latest(); ok {
		return latest
	}
	return rc.conn.rconf
}

// computeMaps recomputes the active channel-remapping table (CSA#1) or
// CSA#2 generator from the live RadioConfig and access address
// (RadioTask.c's computeMaps/computeMap1). Must be called with rc.mu held.
func (rc *RadioCore) computeMaps() {
	if rc.conn.useCSA2 {
		c, err := chansel.NewCSA2(rc.conn.accessAddress, rc.conn.rconf.ChanMap)
		if err == nil {
			rc.conn.csa2 = c
		}
		return
	}
	table, err := chansel.ComputeMap1(rc.conn.rconf.ChanMap)
	if err == nil {
		rc.conn.mappingTable = table
	}
}

// getCurrChan returns the channel for the current connection event, with no
// side effects (RadioTask.c's getCurrChan). Must be called with rc.mu held.
func (rc *RadioCore) getCurrChan() uint8 {
	if rc.conn.useCSA2 && rc.conn.csa2 != nil {
		return rc.conn.csa2.ComputeChannel(rc.conn.connEventCount)
	}
	return rc.conn.mappingTable[rc.conn.curUnmapped]
}
