package radiocore

import (
	"context"
	"testing"

	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/radio"
	"github.com/cwsl/blesniffercore/internal/txring"
)

// fakeWrapper is a minimal radio.Wrapper double: only CurrentTime is
// exercised by the unit-level methods these tests call directly (Run's
// full loop is not exercised here, since it requires a live radio driver).
type fakeWrapper struct {
	now uint32
}

func (w *fakeWrapper) RecvFrames(context.Context, frame.PHY, uint32, uint32, uint32, uint32, bool, bool, radio.FrameCallback) error {
	return nil
}
func (w *fakeWrapper) RecvAdv3(context.Context, uint32, uint32, bool, radio.FrameCallback) error {
	return nil
}
func (w *fakeWrapper) TrigAdv3() {}
func (w *fakeWrapper) Scan(context.Context, frame.PHY, uint32, uint32, bool, [3]uint16, bool, bool, radio.FrameCallback) error {
	return nil
}
func (w *fakeWrapper) Central(context.Context, frame.PHY, uint32, uint32, uint32, uint32, radio.FrameCallback, radio.TXSource, uint32) (radio.CentralResult, error) {
	return radio.CentralResult{}, nil
}
func (w *fakeWrapper) Peripheral(context.Context, frame.PHY, uint32, uint32, uint32, uint32, radio.FrameCallback, radio.TXSource, uint32) (radio.CentralResult, error) {
	return radio.CentralResult{}, nil
}
func (w *fakeWrapper) ResetSeqStat() {}
func (w *fakeWrapper) Initiate(context.Context, frame.PHY, uint32, uint32, bool, radio.FrameCallback, [3]uint16, bool, [3]uint16, bool, []byte) (radio.InitiateResult, error) {
	return radio.InitiateResult{}, nil
}
func (w *fakeWrapper) Advertise3(context.Context, radio.FrameCallback, [3]uint16, bool, []byte, []byte, radio.AdvMode) error {
	return nil
}
func (w *fakeWrapper) AdvertiseExt3(context.Context, radio.FrameCallback, [3]uint16, bool, []byte, radio.AdvExtMode, frame.PHY, frame.PHY, uint32, uint16) error {
	return nil
}
func (w *fakeWrapper) SetTxPower(int8)      {}
func (w *fakeWrapper) Stop()                {}
func (w *fakeWrapper) CurrentTime() uint32 { return w.now }

type fakeHopTrigger struct{}

func (fakeHopTrigger) Trigger(uint32, func()) {}
func (fakeHopTrigger) Postpone(uint32)         {}

type fakeStopTrigger struct{}

func (fakeStopTrigger) Trigger(uint32) {}
func (fakeStopTrigger) Cancel()        {}

type fakeSink struct {
	frames []frame.Frame
}

func (s *fakeSink) Send(f *frame.Frame) bool {
	s.frames = append(s.frames, *f)
	return true
}

func newTestCore() (*RadioCore, *fakeWrapper, *fakeSink) {
	w := &fakeWrapper{}
	sink := &fakeSink{}
	rc := NewRadioCore(w, fakeHopTrigger{}, fakeStopTrigger{}, sink, &txring.Ring{})
	return rc, w, sink
}

func TestNewRadioCoreDefaults(t *testing.T) {
	rc, _, _ := newTestCore()
	if rc.cmd.state != StateStatic {
		t.Errorf("initial state = %v, want StateStatic", rc.cmd.state)
	}
	if rc.conn.accessAddress != bleAdvAA {
		t.Errorf("initial access address = %#x, want %#x", rc.conn.accessAddress, bleAdvAA)
	}
	if !rc.cmd.followConnections || !rc.cmd.instaHop || !rc.cmd.validateCRC {
		t.Errorf("expected followConnections/instaHop/validateCRC all true by default")
	}
	if rc.cmd.statChan != 37 || rc.cmd.statPHY != frame.PHY1M || rc.cmd.statCRCI != 0x555555 {
		t.Errorf("unexpected static channel defaults: %+v", rc.cmd)
	}
}

func TestStateTransitionReportsState(t *testing.T) {
	rc, _, sink := newTestCore()
	rc.mu.Lock()
	rc.stateTransition(StateAdvertSeek)
	rc.mu.Unlock()

	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 STATE frame, got %d", len(sink.frames))
	}
	f := sink.frames[0]
	if f.Channel != frame.ChanState {
		t.Errorf("channel = %d, want ChanState", f.Channel)
	}
	if got := f.Payload(); len(got) != 1 || got[0] != uint8(StateAdvertSeek) {
		t.Errorf("payload = %v, want [%d]", got, StateAdvertSeek)
	}
	if rc.cmd.state != StateAdvertSeek {
		t.Errorf("state = %v, want StateAdvertSeek", rc.cmd.state)
	}
}

func TestHandleConnReqLegacyCSA1(t *testing.T) {
	rc, w, _ := newTestCore()
	w.now = 1_000_000

	var llData [22]byte
	llData[0], llData[1], llData[2], llData[3] = 0xD6, 0xBE, 0x89, 0x8E // access address
	llData[8] = 10  // WinOffset = 10
	llData[10] = 20 // Interval = 20
	llData[12] = 5  // SlaveLatency = 5
	llData[14] = 100
	llData[16] = 0xFF
	llData[17] = 0xFF
	llData[18] = 0xFF
	llData[19] = 0xFF
	llData[20] = 0x1F // all 37 channels used
	llData[21] = 7    // hop increment

	rc.mu.Lock()
	rc.conn.useCSA2 = false
	rc.handleConnReq(frame.PHY1M, w.now, llData, false)
	rc.mu.Unlock()

	if rc.conn.hopIncrement != 7 {
		t.Errorf("hopIncrement = %d, want 7", rc.conn.hopIncrement)
	}
	if !rc.conn.rconf.IntervalCertain || !rc.conn.rconf.WinOffsetCertain {
		t.Errorf("interval/winoffset should be certain immediately after CONNECT_IND")
	}
	if rc.conn.rconf.HopIntervalTicks != 20*5000 {
		t.Errorf("hopIntervalTicks = %d, want %d", rc.conn.rconf.HopIntervalTicks, 20*5000)
	}
	wantNextHop := w.now + (5000 - aoTarget) + 10*5000 + 20*5000
	if rc.conn.nextHopTime != wantNextHop {
		t.Errorf("nextHopTime = %d, want %d", rc.conn.nextHopTime, wantNextHop)
	}
	if rc.conn.connEventCount != 0 {
		t.Errorf("connEventCount = %d, want 0", rc.conn.connEventCount)
	}
	if rc.conn.id.String() == "00000000-0000-0000-0000-000000000000" {
		t.Errorf("expected a non-zero connection id to be assigned")
	}
}

func TestAfterConnEventTimeoutTriggersHandleConnFinished(t *testing.T) {
	rc, w, sink := newTestCore()
	rc.mu.Lock()
	rc.stateTransition(StateData) // clears the setup-time STATE frame noise below
	sink.frames = nil

	rc.conn.connTimeoutTime = 1000
	w.now = 5000 // long past the timeout
	rc.cmd.advHopEnabled = false

	rc.afterConnEvent(true, false)
	rc.mu.Unlock()

	if rc.cmd.state != StateStatic {
		t.Errorf("state after timeout = %v, want StateStatic (sniffDoneState default)", rc.cmd.state)
	}
	if rc.conn.accessAddress != bleAdvAA {
		t.Errorf("accessAddress not reset to the legacy advertising AA after timeout")
	}
}

func TestAfterConnEventChanMapInference(t *testing.T) {
	rc, w, _ := newTestCore()
	rc.mu.Lock()
	rc.conn.connTimeoutTime = 1_000_000
	w.now = 0
	rc.conn.rconf.ChanMap = 0x1FFFFFFFFF
	rc.conn.rconf.ChanMapCertain = false
	rc.conn.useCSA2 = false
	rc.computeMaps()
	rc.conn.firstPacket = true
	rc.conn.curUnmapped = 0
	rc.conn.hopIncrement = 1

	// one connection event on channel 0 with no data: channel 0 gets
	// provisionally marked unused, same as RadioTask.c's afterConnEvent.
	rc.afterConnEvent(true, false)

	if rc.conn.rconf.ChanMap&0x1 != 0 {
		t.Errorf("channel 0 should have been provisionally cleared from the map")
	}
	if rc.conn.chanMapTestMask&0x1 == 0 {
		t.Errorf("channel 0 should be marked tested")
	}
	rc.mu.Unlock()
}

func TestAfterConnEventIntervalMedianInference(t *testing.T) {
	rc, w, _ := newTestCore()
	rc.mu.Lock()
	rc.conn.connTimeoutTime = 1_000_000
	w.now = 0
	rc.conn.rconf.ChanMapCertain = true
	rc.conn.rconf.WinOffsetCertain = true
	rc.conn.rconf.IntervalCertain = false
	rc.conn.intervalTicks = [3]uint32{30000, 30000, 30000}
	rc.conn.itInd = 3
	rc.conn.lastAnchorTicks = 100000
	rc.cmd.instaHop = true

	rc.afterConnEvent(true, false)

	if !rc.conn.rconf.IntervalCertain {
		t.Fatalf("interval should now be certain")
	}
	wantInterval := uint32(6) // (30000+2500)/5000 = 6
	if rc.conn.rconf.HopIntervalTicks != wantInterval*5000 {
		t.Errorf("hopIntervalTicks = %d, want %d", rc.conn.rconf.HopIntervalTicks, wantInterval*5000)
	}
	for i, v := range rc.conn.anchorOffset {
		if v != aoTarget {
			t.Errorf("anchorOffset[%d] = %d, want reset to aoTarget (%d)", i, v, aoTarget)
		}
	}
	rc.mu.Unlock()
}

func TestReactToAdvPDUTracksLegacyAdvHopAndCachesConnectable(t *testing.T) {
	rc, w, _ := newTestCore()
	w.now = 10000
	rc.mu.Lock()
	rc.cmd.state = StateAdvertSeek

	var f frame.Frame
	f.Channel = 37
	f.TimestampTicks = w.now
	body := make([]byte, 2+8)
	body[0] = pduADVInd
	body[1] = 8
	copy(body[2:8], []byte{1, 2, 3, 4, 5, 6})
	f.SetData(body)

	rc.reactToPDU(&f)

	if rc.conn.lastAdvTimestamp != w.now {
		t.Errorf("lastAdvTimestamp = %d, want %d", rc.conn.lastAdvTimestamp, w.now)
	}

	var mac [6]byte
	copy(mac[:], body[2:8])
	if hdr := rc.advCache.Fetch(mac); hdr == 0xFF {
		t.Errorf("expected ADV_IND to be cached by MAC")
	}
	rc.mu.Unlock()
}

func TestReactToDataPDUConnectionUpdateIndPreservesOriginalOffsetQuirk(t *testing.T) {
	rc, w, _ := newTestCore()
	w.now = 0
	rc.mu.Lock()
	rc.cmd.state = StateData
	rc.conn.rconf.ChanMapCertain = true
	rc.conn.firstPacket = false

	var f frame.Frame
	f.Channel = 3
	body := make([]byte, 14)
	body[0] = llidControl // llid=3, no MD bit
	body[1] = 12          // datLen
	body[2] = 0x00        // LL_CONNECTION_UPDATE_IND opcode
	body[4] = 5           // WinOffset low byte
	body[6] = 0x20        // Interval low byte (0x0020 = 32)
	body[10] = 0x10       // Timeout low byte
	binLittleEndianPutUint16(body[12:14], 50)
	f.SetData(body)

	rc.reactToDataPDU(&f, false)

	conf, ok := rc.confQ.Latest()
	if !ok {
		t.Fatal("expected a queued RadioConfig change")
	}
	// the original reads SlaveLatency from the same 2 bytes as the hop
	// interval field, not its own offset; preserved here verbatim.
	if conf.SlaveLatency != conf.HopIntervalTicks/5000 {
		t.Errorf("SlaveLatency = %d, want it to mirror the raw interval field (%d)",
			conf.SlaveLatency, conf.HopIntervalTicks/5000)
	}
	rc.mu.Unlock()
}

func TestReactToAdvExtPDUSchedulesAuxWindow(t *testing.T) {
	rc, w, _ := newTestCore()
	w.now = 1000
	rc.mu.Lock()
	rc.cmd.state = StateStatic
	rc.cmd.auxAdvEnabled = true

	var f frame.Frame
	f.TimestampTicks = w.now
	f.Channel = 37

	// hdrBodyLen (bits 0-5 of the ext-header-length/AdvMode byte) counts the
	// flags byte and the fields after it, not that byte itself:
	// hdrBodyLen = 1 (flags byte) + 3 (AuxPtr) = 4.
	body := make([]byte, 2+7)
	body[0] = pduADVExtInd
	body[1] = 5 // advLen: length/AdvMode byte(1) + flags(1) + auxptr(3) = 5
	body[2] = 4 // hdrBodyLen
	body[3] = 0x10 // AuxPtr present
	// AuxPtr: chan=5, phy=1M (bits 5-7 = 0), offset units = 30us
	body[4] = 5
	body[5] = 10
	body[6] = 0
	f.SetData(body)

	rc.reactToAdvExtPDU(&f, body[1])

	if rc.auxSched.Len() != 1 {
		t.Errorf("expected 1 scheduled aux window, got %d", rc.auxSched.Len())
	}
	rc.mu.Unlock()
}

func binLittleEndianPutUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
