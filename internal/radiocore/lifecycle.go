package radiocore

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/txring"
)

// handleConnReq extracts connection parameters from a CONNECT_IND/
// AUX_CONNECT_REQ's LLData and starts tracking the new connection
// (RadioTask.c's handleConnReq). useCSA2 must already be set by the caller.
func (rc *RadioCore) handleConnReq(phy frame.PHY, connTime uint32, llData [22]byte, isAuxReq bool) {
	rc.conn.accessAddress = binary.LittleEndian.Uint32(llData[0:4])
	rc.conn.hopIncrement = llData[21] & 0x1F
	rc.conn.crcInit = binary.LittleEndian.Uint32(llData[4:8]) & 0xFFFFFF
	rc.conn.llEncryption = false
	rc.conn.curUnmapped = rc.conn.hopIncrement

	var mapBytes [8]byte
	copy(mapBytes[:5], llData[16:21])
	rc.conn.rconf.ChanMap = binary.LittleEndian.Uint64(mapBytes[:])
	rc.conn.rconf.ChanMapCertain = true
	rc.computeMaps()

	// See BT5.2 core spec pg 2983: transmitWindowDelay is 1.25ms for
	// CONNECT_IND, 2.5ms for AUX_CONNECT_REQ (1M/2M), 3.75ms for
	// AUX_CONNECT_REQ (coded). Radio clock is 4MHz, 4000 ticks/ms.
	var transmitWindowDelay uint32
	switch {
	case !isAuxReq:
		transmitWindowDelay = 5000
	case phy == frame.PHYCodedS8 || phy == frame.PHYCodedS2:
		transmitWindowDelay = 15000
	default:
		transmitWindowDelay = 10000
	}
	transmitWindowDelay -= aoTarget

	winOffset := binary.LittleEndian.Uint16(llData[8:10])
	interval := binary.LittleEndian.Uint16(llData[10:12])
	rc.conn.nextHopTime = connTime + transmitWindowDelay + uint32(winOffset)*5000
	rc.conn.rconf.HopIntervalTicks = uint32(interval) * 5000
	rc.conn.nextHopTime += rc.conn.rconf.HopIntervalTicks
	rc.conn.rconf.IntervalCertain = true
	rc.conn.rconf.WinOffsetCertain = true
	rc.conn.rconf.Phy = phy
	rc.conn.rconf.SlaveLatency = binary.LittleEndian.Uint16(llData[12:14])
	rc.conn.rconf.ConnTimeoutTicks = uint32(binary.LittleEndian.Uint16(llData[14:16])) * 40000

	// The spec allows 6 connection events from connection start until the
	// connection can be declared dead.
	rc.conn.connTimeoutTime = rc.conn.nextHopTime + rc.conn.rconf.HopIntervalTicks*6

	rc.conn.connEventCount = 0
	rc.conn.emptyHops = 0
	rc.conn.preloadedParamIndex = 0
	rc.confQ.Reset()
	rc.conn.id = uuid.New()
}

// handleConnFinished returns to the post-sniff idle state and, if hop
// seeking was enabled, resumes looking for the next connection
// (RadioTask.c's handleConnFinished).
func (rc *RadioCore) handleConnFinished() {
	rc.stateTransition(rc.cmd.sniffDoneState)
	rc.conn.accessAddress = bleAdvAA
	rc.auxSched.Reset()
	if rc.cmd.state != StatePaused && rc.cmd.advHopEnabled {
		rc.advHopSeekMode()
	}
}

// reactToTransmitted feeds every LL control PDU this core itself just
// transmitted back through reactToDataPDU, so the inference state machine
// also reacts to what it sent as central or peripheral (RadioTask.c's
// reactToTransmitted).
func (rc *RadioCore) reactToTransmitted(entries []txring.TXEntry) {
	for _, e := range entries {
		if e.LLID != llidControl {
			continue
		}
		if len(e.Data) == 0 || len(e.Data) > 38 {
			continue
		}

		var f frame.Frame
		f.TimestampTicks = rc.wrapper.CurrentTime()
		f.Channel = rc.getCurrChan()
		f.Phy = rc.conn.rconf.Phy

		eventCtr := e.EventCtr
		if eventCtr == 0 {
			eventCtr = uint16(rc.conn.connEventCount)
		}
		f.EventCtr = eventCtr

		body := make([]byte, 2+len(e.Data))
		body[0] = e.LLID
		body[1] = uint8(len(e.Data))
		copy(body[2:], e.Data)
		f.SetData(body)

		rc.reactToDataPDU(&f, true)
	}
}
