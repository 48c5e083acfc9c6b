package radiocore

import (
	"encoding/binary"
	"fmt"

	"github.com/cwsl/blesniffercore/internal/corelog"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
)

// reportMeasurement emits a MEASURE out-of-band frame; buf is the
// sub-opcode-prefixed payload, matching measurements.c's reportMeasurement.
// Must be called with rc.mu held, mirroring the rest of this file's
// reportMeas* helpers which are only ever called from within the state
// machine or reaction code.
func (rc *RadioCore) reportMeasurement(buf []byte) {
	var f frame.Frame
	f.Channel = frame.ChanMeasure
	f.Phy = frame.PHY1M
	f.SetData(buf)
	rc.sink.Send(&f)
}

func (rc *RadioCore) reportMeasInterval(interval uint16) {
	buf := make([]byte, 3)
	buf[0] = hostlink.MeasInterval
	binary.LittleEndian.PutUint16(buf[1:3], interval)
	rc.reportMeasurement(buf)
}

func (rc *RadioCore) reportMeasChanMap(chanMap uint64) {
	buf := make([]byte, 6)
	buf[0] = hostlink.MeasChanMap
	var mapBytes [8]byte
	binary.LittleEndian.PutUint64(mapBytes[:], chanMap)
	copy(buf[1:6], mapBytes[:5])
	rc.reportMeasurement(buf)
}

func (rc *RadioCore) reportMeasAdvHop(hopUs uint32) {
	buf := make([]byte, 5)
	buf[0] = hostlink.MeasAdvHop
	binary.LittleEndian.PutUint32(buf[1:5], hopUs)
	rc.reportMeasurement(buf)
}

func (rc *RadioCore) reportMeasWinOffset(offset uint16) {
	buf := make([]byte, 3)
	buf[0] = hostlink.MeasWinOffset
	binary.LittleEndian.PutUint16(buf[1:3], offset)
	rc.reportMeasurement(buf)
}

func (rc *RadioCore) reportMeasDeltaInstant(delta uint16) {
	buf := make([]byte, 3)
	buf[0] = hostlink.MeasDeltaInstant
	binary.LittleEndian.PutUint16(buf[1:3], delta)
	rc.reportMeasurement(buf)
}

// FirmwareVersion identifies this implementation's reported version/API
// level (measurements.c's reportVersion).
var FirmwareVersion = [4]uint8{1, 10, 0, 0}

func (rc *RadioCore) reportVersion() {
	buf := []byte{hostlink.MeasVersion, FirmwareVersion[0], FirmwareVersion[1], FirmwareVersion[2], FirmwareVersion[3]}
	rc.reportMeasurement(buf)
}

// ReportVersion reports the firmware/API version tuple; exported since it
// is solicited by a host query rather than produced reactively.
func (rc *RadioCore) ReportVersion() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.reportVersion()
}

// sendMarker emits a MARKER out-of-band frame carrying the current radio
// time (RadioTask.c's sendMarker, called via CommandTask.c's COMMAND_MARKER;
// PacketTask.c's sendPacket only ever transmits the timestamp for this
// message kind, so no payload is threaded through here).
func (rc *RadioCore) sendMarker() {
	var f frame.Frame
	f.Channel = frame.ChanMarker
	f.Phy = frame.PHY1M
	f.TimestampTicks = rc.wrapper.CurrentTime()
	rc.sink.Send(&f)
}

// dprintf is the universal developer channel (debug.c's dprintf): it both
// logs locally through the injected logger (if any) and enqueues a DEBUG
// out-of-band frame, so the same condition is visible in the host log and
// over the wire to a connected client (spec §7). It takes no lock itself:
// it reads rc.logger, which SetLogger writes under rc.mu, and writes
// through rc.sink; both of its callers hold rc.mu.
func (rc *RadioCore) dprintf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if rc.logger != nil {
		rc.logger.Debugf("%s", msg)
	}

	var f frame.Frame
	f.Channel = frame.ChanDebug
	f.Phy = frame.PHY1M
	f.SetData([]byte(msg))
	rc.sink.Send(&f)
}

// SetLogger attaches a logger for dprintf's local-log side; nil (the
// default) disables local logging, leaving only the DEBUG frame.
func (rc *RadioCore) SetLogger(l *corelog.Logger) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.logger = l
}

// stateTransition updates the sniffer state and reports it to the host
// (RadioTask.c's stateTransition). Must be called with rc.mu held.
func (rc *RadioCore) stateTransition(newState SnifferState) {
	rc.cmd.state = newState

	var f frame.Frame
	f.Channel = frame.ChanState
	f.Phy = frame.PHY1M
	f.SetData([]byte{uint8(newState)})
	rc.sink.Send(&f)
}
