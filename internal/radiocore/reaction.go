package radiocore

import (
	"encoding/binary"

	"github.com/cwsl/blesniffercore/internal/advcache"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/packetring"
	"github.com/cwsl/blesniffercore/internal/radioconf"
)

// onFrame is the radio driver's FrameCallback: it applies the RSSI/address
// filter, reacts to in-band frames, and always attempts to forward the
// frame to the sink (RadioTask.c/PacketTask.c's indicatePacket). A filtered
// advertising frame is dropped before either reaction or forwarding.
func (rc *RadioCore) onFrame(f *frame.Frame) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !packetring.PassesFilter(f, rc.cmd.minRSSI, rc.cmd.addrFilt) {
		return
	}
	if f.Channel < 40 {
		rc.reactToPDU(f)
	}
	rc.sink.Send(f)
}

// reactToPDU dispatches a just-received frame to the advertising or data
// channel reaction path (RadioTask.c's reactToPDU).
func (rc *RadioCore) reactToPDU(f *frame.Frame) {
	if !rc.inDataState() || f.Channel >= 37 {
		rc.reactToAdvPDU(f)
		return
	}
	rc.reactToDataPDU(f, false)
}

func (rc *RadioCore) reactToAdvPDU(f *frame.Frame) {
	if f.Length < 2 {
		return
	}
	payload := f.Payload()
	pduType := payload[0] & 0xF
	chSel := payload[0]&0x20 != 0
	advLen := payload[1]
	if int(f.Length)-2 < int(advLen) {
		return
	}

	switch pduType {
	case pduADVInd, pduADVDirectInd, pduADVNonconnInd, pduADVScanInd:
		rc.trackAdvHop(f, pduType)
	}

	if pduType == pduScanRsp {
		rc.conn.sniffScanRspLen = uint32(f.Length)
	}

	if pduType == pduScanReq && f.Channel == 37 && rc.cmd.state == StateAdvertHop && !rc.conn.postponed {
		rc.hopTrig.Postpone(270 + rc.conn.sniffScanRspLen*8)
		rc.conn.postponed = true
	}

	// Connectable legacy advertisements get cached so CONNECT_IND time can
	// check whether this advertiser supports CSA#2.
	if pduType == pduADVInd || pduType == pduADVDirectInd {
		if len(payload) >= 8 {
			var mac [advcache.MACLen]byte
			copy(mac[:], payload[2:8])
			rc.advCache.Store(mac, payload[0])
		}
		return
	}

	if pduType == pduADVExtInd && rc.cmd.auxAdvEnabled && rc.cmd.state != StateAdvertSeek {
		rc.reactToAdvExtPDU(f, advLen)
		return
	}

	if pduType == pduConnectInd && rc.cmd.followConnections {
		isAuxReq := f.Channel < 37
		if advLen != 34 || len(payload) < 36 {
			return
		}

		if rc.cmd.state == StateAdvertising {
			rc.conn.useCSA2 = chSel
		} else {
			// AUX_CONNECT_REQ always uses CSA#2 (ChSel is RFU there).
			rc.conn.useCSA2 = isAuxReq
			if !isAuxReq && chSel {
				var mac [advcache.MACLen]byte
				copy(mac[:], payload[8:14])
				hdr := rc.advCache.Fetch(mac)
				if hdr != advcache.NotFound && hdr&0x20 != 0 {
					rc.conn.useCSA2 = true
				}
			}
		}

		var llData [22]byte
		copy(llData[:], payload[14:36])
		rc.handleConnReq(f.Phy, f.TimestampTicks, llData, isAuxReq)

		switch rc.cmd.state {
		case StateAdvertising, StateAdvertisingExt:
			rc.wrapper.ResetSeqStat()
			rc.stateTransition(StatePeripheral)
			rc.wrapper.Stop()
		default:
			if isAuxReq {
				rc.conn.gotAuxConnReq = true
			} else {
				rc.stateTransition(StateData)
				rc.wrapper.Stop()
			}
		}
	}

	// gotAuxConnReq can only be true if followConnections was true and
	// we're currently on a secondary advertising channel.
	if rc.conn.gotAuxConnReq && pduType == pduAUXConnectRsp {
		rc.stateTransition(StateData)
		rc.wrapper.Stop()
	}
}

// trackAdvHop tracks the legacy 37/38/39 advertising hop interval while
// seeking, and schedules the ADVERT_HOP state's next hop once locked onto a
// target (RadioTask.c's reactToPDU advertising branch, extracted here for
// readability).
func (rc *RadioCore) trackAdvHop(f *frame.Frame, pduType uint8) {
	switch rc.cmd.state {
	case StateAdvertSeek:
		if f.Channel == 37 {
			rc.conn.lastAdvTimestamp = f.TimestampTicks
			rc.wrapper.TrigAdv3()
			return
		}
		if !((f.Channel == 38 && !rc.conn.gotLegacy38) || (f.Channel == 39 && !rc.conn.gotLegacy39)) {
			return
		}

		hopIntervalTicks := f.TimestampTicks - rc.conn.lastAdvTimestamp
		rc.conn.lastAdvTimestamp = f.TimestampTicks
		rc.conn.connEventCount++

		if f.Channel == 38 {
			rc.conn.gotLegacy38 = true
		} else {
			rc.conn.gotLegacy39 = true
			if !rc.conn.gotLegacy38 {
				hopIntervalTicks >>= 1
			}
		}

		if hopIntervalTicks < rc.conn.rconf.HopIntervalTicks {
			rc.conn.rconf.HopIntervalTicks = hopIntervalTicks
			if hopIntervalTicks-uint32(f.Length)*32 < 380*4 {
				rc.conn.fastAdvHop = true
			}
		}

	case StateAdvertHop:
		if f.Channel != 37 {
			return
		}

		var targHopTime uint32
		if !rc.cmd.followConnections || pduType == pduADVNonconnInd {
			targHopTime = f.TimestampTicks + rc.conn.rconf.HopIntervalTicks - HopTuneListenLatency*4
		} else {
			hopDelay := int64(rc.conn.rconf.HopIntervalTicks) + int64(150-HopTuneListenLatency)*4
			if hopDelay > 510*4 {
				hopDelay = 510 * 4
			}
			targHopTime = f.TimestampTicks + uint32(f.Length+8)*32 + uint32(hopDelay)
		}

		timeRemaining := targHopTime - rc.wrapper.CurrentTime()
		if timeRemaining >= 0x80000000 {
			timeRemaining = 0
		} else {
			timeRemaining >>= 2
		}

		rc.hopTrig.Trigger(timeRemaining, func() {
			rc.mu.Lock()
			defer rc.mu.Unlock()
			rc.wrapper.Stop()
		})
	}
}

// reactToDataPDU updates the tracked connection's speculative parameter
// inference state from a data-channel PDU, whether sniffed (transmit=false)
// or synthesized from our own just-transmitted queue (transmit=true); see
// reactToTransmitted in lifecycle.go (RadioTask.c's reactToDataPDU).
func (rc *RadioCore) reactToDataPDU(f *frame.Frame, transmit bool) {
	if rc.conn.firstPacket && !transmit {
		rc.conn.anchorOffset[rc.conn.aoIndex] = f.TimestampTicks + rc.conn.rconf.HopIntervalTicks - rc.conn.nextHopTime
		rc.conn.aoIndex = (rc.conn.aoIndex + 1) & 3
		rc.conn.firstPacket = false

		if rc.cmd.instaHop {
			timeDeltaTicks := f.TimestampTicks - rc.conn.lastAnchorTicks
			if !rc.conn.rconf.WinOffsetCertain {
				rc.conn.timeDelta = uint16((timeDeltaTicks + 2500) / 5000)
			} else if !rc.conn.rconf.IntervalCertain {
				if rc.conn.itInd < uint32(len(rc.conn.intervalTicks)) {
					rc.conn.intervalTicks[rc.conn.itInd] = timeDeltaTicks
				}
				rc.conn.itInd++
			}
		}
		rc.conn.lastAnchorTicks = f.TimestampTicks
	}

	if rc.cmd.state == StateData {
		rc.conn.pktDir ^= 1
	}

	if f.Length < 2 {
		return
	}
	payload := f.Payload()
	llid := payload[0] & 0x3
	md := payload[0]&0x10 != 0
	datLen := payload[1]

	if !md {
		rc.conn.moreData &^= 1 << rc.conn.pktDir
	}
	if rc.conn.llEncryption && rc.cmd.instaHop && rc.conn.moreData == 0 && rc.cmd.state == StateData {
		rc.wrapper.Stop()
	}

	if llid != llidControl {
		return
	}
	if int(f.Length)-2 != int(datLen) {
		return
	}

	last := rc.latestRconf()

	if rc.conn.llEncryption {
		rc.reactToEncryptedControlPDU(f, datLen, last)
		return
	}

	if len(payload) < 3 {
		return
	}
	opcode := payload[2]

	switch opcode {
	case 0x00: // LL_CONNECTION_UPDATE_IND
		if datLen != 12 || len(payload) < 14 {
			break
		}
		next := last.Clone()
		next.Offset = binary.LittleEndian.Uint16(payload[4:6])
		next.HopIntervalTicks = uint32(binary.LittleEndian.Uint16(payload[6:8])) * 5000
		next.IntervalCertain = true
		next.WinOffsetCertain = true
		// matches the original exactly: slaveLatency is read from the same
		// offset as the interval field, not a distinct one.
		next.SlaveLatency = binary.LittleEndian.Uint16(payload[6:8])
		next.ConnTimeoutTicks = uint32(binary.LittleEndian.Uint16(payload[10:12])) * 40000
		nextInstant := binary.LittleEndian.Uint16(payload[12:14])
		rc.confQ.Enqueue(nextInstant, next)

		if rc.conn.numParamPairs > 0 && rc.conn.preloadedParamIndex < rc.conn.numParamPairs-1 {
			rc.conn.preloadedParamIndex++
		}

	case 0x01: // LL_CHANNEL_MAP_IND
		if datLen != 8 || len(payload) < 10 {
			break
		}
		next := last.Clone()
		var mapBytes [8]byte
		copy(mapBytes[:5], payload[3:8])
		next.ChanMap = binary.LittleEndian.Uint64(mapBytes[:])
		next.ChanMapCertain = true
		next.Offset = 0
		nextInstant := binary.LittleEndian.Uint16(payload[8:10])
		rc.confQ.Enqueue(nextInstant, next)

	case 0x02: // LL_TERMINATE_IND
		if datLen != 2 {
			break
		}
		rc.handleConnFinished()

	case 0x05: // LL_START_ENC_REQ
		rc.conn.llEncryption = true

	case 0x18: // LL_PHY_UPDATE_IND
		if datLen != 5 || len(payload) < 7 {
			break
		}
		next := last.Clone()
		next.Offset = 0
		switch payload[3] & 0x7 {
		case 0x1:
			next.Phy = frame.PHY1M
		case 0x2:
			next.Phy = frame.PHY2M
		case 0x4:
			next.Phy = frame.PHYCodedS8
		default:
			next.Phy = last.Phy
		}
		nextInstant := binary.LittleEndian.Uint16(payload[5:7])
		rc.confQ.Enqueue(nextInstant, next)
	}
}

// Guessed instant offsets for encrypted control PDUs whose exact transition
// instant can't be read from plaintext (RadioTask.c hardcodes these; they
// are exported vars here so a host that has measured a particular
// controller's actual switch timing can override the default guess before
// RadioCore starts).
var (
	InferPhyUpdateInstantOffset     uint16 = 7
	InferChanMapInstantOffset       uint16 = 9
	InferConnUpdateInstantOffset    uint16 = 6
)

// reactToEncryptedControlPDU guesses the kind of LL control PDU from its
// length alone, since its contents are opaque once encryption has started
// (RadioTask.c's reactToDataPDU encrypted branch).
func (rc *RadioCore) reactToEncryptedControlPDU(f *frame.Frame, datLen uint8, last radioconf.RadioConfig) {
	switch {
	case datLen == 9 && !rc.conn.ignoreEncPhyChange && last.Phy != rc.conn.preloadedPhy:
		// 1 byte opcode + 4 byte CtrData + 4 byte MIC: must be
		// LL_PHY_UPDATE_IND. The switch is usually 6-10 instants away; we
		// guess 7 and let the caller preload a specific PHY to expect.
		next := last.Clone()
		next.Offset = 0
		next.Phy = rc.conn.preloadedPhy
		nextInstant := (f.EventCtr + InferPhyUpdateInstantOffset) & 0xFFFF
		rc.confQ.Enqueue(nextInstant, next)

	case datLen == 12 && rc.cmd.state != StateCentral && last.IntervalCertain:
		// 1 byte opcode + 7 byte CtrData + 4 byte MIC: must be
		// LL_CHANNEL_MAP_IND. We can't reliably measure the map as central
		// since slave latency may be non-zero, so this only fires for
		// sniffer/peripheral roles.
		next := last.Clone()
		next.ChanMap = 0x1FFFFFFFFF
		next.ChanMapCertain = false
		next.Offset = 0
		next.IntervalCertain = true
		next.WinOffsetCertain = true
		next.SlaveLatency = 10 // tolerate a sparse channel map during the test
		nextInstant := (f.EventCtr + InferChanMapInstantOffset) & 0xFFFF
		rc.confQ.Enqueue(nextInstant, next)

	case datLen == 16:
		// 1 byte opcode + 11 byte CtrData + 4 byte MIC: must be
		// LL_CONNECTION_UPDATE_IND.
		if rc.conn.numParamPairs > 0 {
			plInd := rc.conn.preloadedParamIndex
			if plInd >= rc.conn.numParamPairs-1 {
				plInd = rc.conn.numParamPairs - 1
			} else {
				rc.conn.preloadedParamIndex++
			}
			next := last.Clone()
			next.ChanMapCertain = true
			next.Offset = 0
			next.HopIntervalTicks = uint32(rc.conn.connParamPairs[plInd*2]) * 5000
			next.IntervalCertain = true
			next.WinOffsetCertain = false
			nextInstant := (f.EventCtr + rc.conn.connParamPairs[plInd*2+1]) & 0xFFFF
			rc.confQ.Enqueue(nextInstant, next)
		} else if rc.cmd.state != StateCentral && rc.cmd.instaHop {
			next := last.Clone()
			next.ChanMapCertain = true
			next.Offset = 0
			next.HopIntervalTicks = 240 * 5000
			next.IntervalCertain = false
			next.WinOffsetCertain = false
			nextInstant := (f.EventCtr + InferConnUpdateInstantOffset) & 0xFFFF
			rc.confQ.Enqueue(nextInstant, next)
		}
		rc.conn.connUpdateInstant = f.EventCtr
		rc.conn.prevInterval = uint16((last.HopIntervalTicks + 2500) / 5000)
	}
}
