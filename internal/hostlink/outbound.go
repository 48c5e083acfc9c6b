package hostlink

import (
	"encoding/binary"

	"github.com/cwsl/blesniffercore/internal/frame"
)

// EncodeMessage builds the outbound wire message for f, dispatching on
// Channel exactly as PacketTask.c's sendPacket does: debug/marker/state
// frames get a special-cased body, everything else is a BLEFRAME. f.Data
// for MEASURE frames is already the sub-opcode-prefixed payload built by
// radiocore (measurements.c's reportMeasurement helpers); this function
// only adds the outbound message-type byte.
func EncodeMessage(f *frame.Frame) []byte {
	switch f.Channel {
	case frame.ChanDebug:
		payload := f.Payload()
		out := make([]byte, 1+len(payload))
		out[0] = MsgDebug
		copy(out[1:], payload)
		return out

	case frame.ChanMarker:
		// sendPacket echoes only the timestamp for a marker, not its body.
		out := make([]byte, 5)
		out[0] = MsgMarker
		binary.LittleEndian.PutUint32(out[1:5], f.TimestampTicks)
		return out

	case frame.ChanState:
		payload := f.Payload()
		state := uint8(0)
		if len(payload) > 0 {
			state = payload[0]
		}
		return []byte{MsgState, state}

	case frame.ChanMeasure:
		payload := f.Payload()
		out := make([]byte, 1+len(payload))
		out[0] = MsgMeasure
		copy(out[1:], payload)
		return out

	default:
		return EncodeBLEFrame(f)
	}
}

// EncodeBLEFrame builds a complete outbound BLEFRAME message: the message
// type byte followed by the wire-encoded frame (PacketTask.c's sendPacket
// default case).
func EncodeBLEFrame(f *frame.Frame) []byte {
	body := f.EncodeBLEFrame()
	out := make([]byte, 1+len(body))
	out[0] = MsgBLEFrame
	copy(out[1:], body)
	return out
}
