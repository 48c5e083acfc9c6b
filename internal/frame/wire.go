package frame

import "encoding/binary"

// EncodeBLEFrame serializes f into the BLEFRAME wire layout (spec §6.1):
// timestamp(4 LE), length|direction<<15 (2 LE), event_ctr(2 LE), rssi(1),
// channel|phy<<6 (1), payload. The returned slice does not include the
// outbound message-type byte (msg[0]=BLEFRAME); hostlink prepends that.
func (f *Frame) EncodeBLEFrame() []byte {
	payload := f.Payload()
	out := make([]byte, 10+len(payload))

	binary.LittleEndian.PutUint32(out[0:4], f.TimestampTicks)

	lenDir := f.Length & 0x7FFF
	if f.Direction {
		lenDir |= 0x8000
	}
	binary.LittleEndian.PutUint16(out[4:6], lenDir)

	binary.LittleEndian.PutUint16(out[6:8], f.EventCtr)
	out[8] = byte(f.RSSI)
	out[9] = (f.Channel & 0x3F) | (uint8(f.Phy) << 6)
	copy(out[10:], payload)
	return out
}

// DecodeBLEFrame parses the BLEFRAME wire layout produced by EncodeBLEFrame.
func DecodeBLEFrame(buf []byte) (Frame, bool) {
	var f Frame
	if len(buf) < 10 {
		return f, false
	}
	f.TimestampTicks = binary.LittleEndian.Uint32(buf[0:4])
	lenDir := binary.LittleEndian.Uint16(buf[4:6])
	f.Length = lenDir & 0x7FFF
	f.Direction = lenDir&0x8000 != 0
	f.EventCtr = binary.LittleEndian.Uint16(buf[6:8])
	f.RSSI = int8(buf[8])
	f.Channel = buf[9] & 0x3F
	f.Phy = PHY(buf[9] >> 6)
	copy(f.Data[:], buf[10:])
	return f, true
}
