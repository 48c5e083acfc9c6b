package hostlink

import (
	"encoding/binary"

	"github.com/cwsl/blesniffercore/internal/frame"
)

// ParamPair is one (Interval, DeltaInstant) entry of an IntvlPreload
// command: it tells the core how to interpret an encrypted
// connUpdateInd/channelMapInd payload it cannot read the plaintext of.
type ParamPair struct {
	Interval     uint16
	DeltaInstant uint16
}

// Handler is implemented by the radio core: one method per inbound
// command opcode, grounded on CommandTask.c's switch. Dispatch validates
// exact payload length and field ranges before calling any method here, so
// implementations can assume their arguments are already well-formed.
type Handler interface {
	SetChanAAPHYCRCI(chanNum uint8, accessAddr uint32, phy frame.PHY, crcInit uint32)
	PauseAfterSniffDone(pause bool)
	SetMinRssi(rssi int8)
	SetMacFilt(enabled bool, mac [6]byte)
	AdvHopSeekMode()
	SetFollowConnections(enabled bool)
	SetAuxAdvEnabled(enabled bool)
	Reset()
	SendMarker()
	Transmit(llid uint8, data []byte, eventCtr uint16)
	InitiateConn(peerRandom bool, peerAddr [6]byte, llData [22]byte)
	SetAddr(random bool, mac [6]byte)
	Advertise(advData, scanRspData []byte)
	SetAdvInterval(intervalMs uint16)
	SetRpaFilt(enabled bool, irk [16]byte)
	SetInstaHop(enabled bool)
	SetChanMap(chanMap uint64)
	PreloadConnParamUpdates(pairs []ParamPair) error
	Scan()
}

// CommandHandler dispatches decoded inbound messages to a Handler.
type CommandHandler struct {
	h Handler
}

// NewCommandHandler returns a dispatcher that drives h.
func NewCommandHandler(h Handler) *CommandHandler {
	return &CommandHandler{h: h}
}

// Dispatch decodes and validates msg (as returned by Reader.ReadMessage) and
// invokes the matching Handler method. Malformed or unrecognized messages
// are silently ignored, matching CommandTask.c's "ignore errors and empty
// messages" policy; msg[0] is the word-count byte, msg[1] the opcode.
func (c *CommandHandler) Dispatch(msg []byte) {
	ret := len(msg)
	if ret < 2 {
		return
	}

	switch msg[1] {
	case OpSetChanAAPhy:
		if ret != 12 {
			return
		}
		if msg[2] > 39 {
			return
		}
		if msg[7] > 3 {
			return
		}
		c.h.SetChanAAPHYCRCI(msg[2], binary.LittleEndian.Uint32(msg[3:7]),
			frame.PHY(msg[7]), binary.LittleEndian.Uint32(msg[8:12]))

	case OpPauseDone:
		if ret != 3 {
			return
		}
		c.h.PauseAfterSniffDone(msg[2] != 0)

	case OpRssiFilt:
		if ret != 3 {
			return
		}
		c.h.SetMinRssi(int8(msg[2]))

	case OpMacFilt:
		if ret == 8 {
			var mac [6]byte
			copy(mac[:], msg[2:8])
			c.h.SetMacFilt(true, mac)
		} else {
			c.h.SetMacFilt(false, [6]byte{})
		}

	case OpAdvHop:
		if ret != 2 {
			return
		}
		c.h.AdvHopSeekMode()

	case OpFollow:
		if ret != 3 {
			return
		}
		c.h.SetFollowConnections(msg[2] != 0)

	case OpAuxAdv:
		if ret != 3 {
			return
		}
		c.h.SetAuxAdvEnabled(msg[2] != 0)

	case OpReset:
		if ret != 2 {
			return
		}
		c.h.Reset()

	case OpMarker:
		if ret != 2 {
			return
		}
		c.h.SendMarker()

	case OpTransmit:
		if ret < 6 {
			return
		}
		dataLen := int(msg[5])
		if ret != dataLen+6 {
			return
		}
		eventCtr := uint16(msg[2]) | uint16(msg[3])<<8
		c.h.Transmit(msg[4], msg[6:6+dataLen], eventCtr)

	case OpConnect:
		if ret != 31 {
			return
		}
		var peerAddr [6]byte
		var llData [22]byte
		copy(peerAddr[:], msg[3:9])
		copy(llData[:], msg[9:31])
		c.h.InitiateConn(msg[2] != 0, peerAddr, llData)

	case OpSetAddr:
		if ret != 9 {
			return
		}
		var mac [6]byte
		copy(mac[:], msg[3:9])
		c.h.SetAddr(msg[2] != 0, mac)

	case OpAdvertise:
		if ret != 66 {
			return
		}
		advLen := int(msg[2])
		srLen := int(msg[34])
		if advLen > 31 || srLen > 31 {
			return
		}
		c.h.Advertise(msg[3:3+advLen], msg[35:35+srLen])

	case OpAdvInterval:
		if ret != 4 {
			return
		}
		intervalMs := binary.LittleEndian.Uint16(msg[2:4])
		if intervalMs < 20 {
			return
		}
		c.h.SetAdvInterval(intervalMs)

	case OpSetIRK:
		if ret == 18 {
			var irk [16]byte
			copy(irk[:], msg[2:18])
			c.h.SetRpaFilt(true, irk)
		} else {
			c.h.SetRpaFilt(false, [16]byte{})
		}

	case OpInstaHop:
		if ret != 3 {
			return
		}
		c.h.SetInstaHop(msg[2] != 0)

	case OpSetMap:
		if ret != 7 {
			return
		}
		var mapBytes [8]byte
		copy(mapBytes[:5], msg[2:7])
		c.h.SetChanMap(binary.LittleEndian.Uint64(mapBytes[:]))

	case OpIntvlPreload:
		if ret < 2 || ret > 18 {
			return
		}
		n := (ret - 2) >> 2
		pairs := make([]ParamPair, n)
		for i := 0; i < n; i++ {
			off := 2 + i*4
			pairs[i] = ParamPair{
				Interval:     binary.LittleEndian.Uint16(msg[off : off+2]),
				DeltaInstant: binary.LittleEndian.Uint16(msg[off+2 : off+4]),
			}
		}
		c.h.PreloadConnParamUpdates(pairs)

	case OpScan:
		if ret != 2 {
			return
		}
		c.h.Scan()
	}
}
