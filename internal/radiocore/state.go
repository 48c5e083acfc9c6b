// Package radiocore implements RadioCore (spec §4, C7): the reactive BLE
// link-layer state machine that drives the radio driver, tracks an
// in-progress connection's parameters (inferring them speculatively under
// encryption when they cannot be read from plaintext signalling), and
// forwards every observed or synthesized Frame to a packet sink.
//
// Grounded throughout on the full read of RadioTask.c, with the reactive
// core additionally grounded on PacketTask.c (indicatePacket's filter/queue
// split) and measurements.c (the MEASURE report payloads).
package radiocore

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cwsl/blesniffercore/internal/advcache"
	"github.com/cwsl/blesniffercore/internal/auxsched"
	"github.com/cwsl/blesniffercore/internal/confqueue"
	"github.com/cwsl/blesniffercore/internal/corelog"
	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/packetring"
	"github.com/cwsl/blesniffercore/internal/radio"
	"github.com/cwsl/blesniffercore/internal/radioconf"
	"github.com/cwsl/blesniffercore/internal/rpa"
	"github.com/cwsl/blesniffercore/internal/txring"
)

// SnifferState is the top-level mode RadioCore is operating in (RadioTask.c's
// SnifferState enum). The original's MASTER/SLAVE names are renamed to the
// link-layer roles they mean (Central initiated the connection, Peripheral
// accepted it), matching the rest of this module's naming.
type SnifferState uint8

const (
	StateStatic SnifferState = iota
	StateAdvertSeek
	StateAdvertHop
	StateData
	StatePaused
	StateInitiating
	StateCentral
	StatePeripheral
	StateAdvertising
	StateScanning
	StateAdvertisingExt
)

func (s SnifferState) String() string {
	switch s {
	case StateStatic:
		return "Static"
	case StateAdvertSeek:
		return "AdvertSeek"
	case StateAdvertHop:
		return "AdvertHop"
	case StateData:
		return "Data"
	case StatePaused:
		return "Paused"
	case StateInitiating:
		return "Initiating"
	case StateCentral:
		return "Central"
	case StatePeripheral:
		return "Peripheral"
	case StateAdvertising:
		return "Advertising"
	case StateScanning:
		return "Scanning"
	case StateAdvertisingExt:
		return "AdvertisingExt"
	default:
		return "Unknown"
	}
}

const bleAdvAA = 0x8E89BED6

// HopTuneListenLatency is the measured worst-case microseconds for
// DelayHopTrigger to fire, the radio to retune, and start listening on the
// next advertising channel (RadioTask.c's HOP_TUNE_LISTEN_LATENCY).
const HopTuneListenLatency = 300

// aoTarget is the target radio-tick offset before an anchor point at which
// to start listening on the next data channel (RadioTask.c's AO_TARG).
const aoTarget = 2000

// auxOffTargetUsec is how early to be ready before an expected aux
// advertisement (RadioTask.c's AUX_OFF_TARG_USEC).
const auxOffTargetUsec = 500

// listenTicksMin is the shortest worthwhile receive window; shorter windows
// risk stalling the radio with an end time already in the past
// (RadioTask.c's LISTEN_TICKS_MIN).
const listenTicksMin = 2000

// deltaInstantTimeout bounds how many connection events to wait for an
// encrypted LL_CONNECTION_UPDATE_IND's WinOffset to reveal itself before
// assuming no change occurred (RadioTask.c's DELTA_INSTANT_TIMEOUT).
const deltaInstantTimeout = 12

// MaxParamPairs is the largest number of preloaded (Interval, DeltaInstant)
// pairs for decoding encrypted connection parameter updates.
const MaxParamPairs = 4

// MeasurementSink receives inferred/measured parameter reports, modeled
// after measurements.c's reportMeas* family; RadioCore emits these as
// ordinary out-of-band Frames through the same Sink as captured packets, so
// this alias just documents intent at call sites.
type MeasurementSink = Sink

// Sink receives every Frame RadioCore produces: sniffed packets as well as
// synthesized STATE/MARKER/MEASURE out-of-band frames. Implemented by
// internal/packetring.Ring.
type Sink interface {
	Send(f *frame.Frame) bool
}

// connState holds everything RadioTask.c tracks about the connection
// currently being followed (or about to be). It is separated from the
// idle/command-surface fields of RadioCore purely for readability; both are
// guarded by the same mutex.
type connState struct {
	accessAddress   uint32
	hopIncrement    uint8
	crcInit         uint32
	curUnmapped     uint8
	connEventCount  uint32
	mappingTable    [chanselNumChannels]uint8
	rconf           radioconf.RadioConfig
	useCSA2         bool
	csa2            csa2Computer
	llEncryption    bool
	nextHopTime     uint32
	connTimeoutTime uint32

	// emptyHops counts consecutive connection events with no received
	// packet; a connection is declared dead once it exceeds slaveLatency+3
	// (spec: "empty_hops > slave_latency + 3"), independent of the
	// conn_timeout_time check.
	emptyHops uint32

	anchorOffset    [4]uint32
	aoIndex         uint32
	lastAnchorTicks uint32
	intervalTicks   [3]uint32
	itInd           uint32
	chanMapTestMask uint64

	numParamPairs       uint32
	preloadedParamIndex uint32
	connParamPairs      [MaxParamPairs * 2]uint16
	connUpdateInstant   uint16
	prevInterval        uint16
	timeDelta           uint16

	ignoreEncPhyChange bool
	preloadedPhy       frame.PHY

	postponed           bool
	fastAdvHop          bool
	gotLegacy38         bool
	gotLegacy39         bool
	gotAuxConnReq       bool
	firstPacket         bool
	lastAdvTimestamp    uint32
	sniffScanRspLen     uint32
	pktDir              uint8
	moreData            uint8 // bit 0 central->peripheral, bit 1 peripheral->central
	connReqLLData       [22]byte

	// id tags the connection currently being tracked, for telemetry
	// correlation across reconnects; reassigned on every handleConnReq.
	id uuid.UUID
}

// csa2Computer is the subset of chansel.CSA2 RadioCore needs; declared as an
// interface so connState's zero value doesn't panic before a connection
// establishes a real instance.
type csa2Computer interface {
	ComputeChannel(connEventCounter uint32) uint8
}

const chanselNumChannels = 37

// cmdState holds the fields host commands (CommandTask.c's setters) mutate
// and the main loop reads: advertising/scanning parameters, filters, and
// behavioral toggles.
type cmdState struct {
	state         SnifferState
	sniffDoneState SnifferState

	statChan uint8
	statPHY  frame.PHY
	statCRCI uint32

	followConnections bool
	instaHop          bool
	validateCRC       bool
	advHopEnabled     bool
	auxAdvEnabled     bool

	minRSSI  int8
	addrFilt packetring.Filter

	ourAddrRandom  bool
	peerAddrRandom bool
	ourAddr        [3]uint16
	peerAddr       [3]uint16

	advMode          radio.AdvMode
	advExtMode       radio.AdvExtMode
	primaryAdvPhy    frame.PHY
	secondaryAdvPhy  frame.PHY
	advIntervalMs    uint16
	adi              uint16
	secondaryAdvChan uint8
	advData          []byte
	scanRspData      []byte
}

// RadioCore is the complete sniffer state machine. Construct with
// NewRadioCore; Run drives the radio loop and must run in its own
// goroutine, while Handler methods (invoked by internal/hostlink) may be
// called concurrently from the command-reader goroutine.
type RadioCore struct {
	mu   sync.Mutex
	conn connState
	cmd  cmdState

	wrapper    radio.Wrapper
	hopTrig    radio.HopTrigger
	stopTrig   radio.StopTrigger
	auxSched   *auxsched.Sched
	confQ      *confqueue.Queue
	sink       Sink
	tx         *txring.Ring
	advCache   *advcache.Cache
	rpaRes     *rpa.Resolver
	rpaEnabled bool
	logger     *corelog.Logger
}

// NewRadioCore wires together the external collaborators and internal
// components into a ready-to-run sniffer core, starting in StateStatic on
// the legacy primary advertising channel/PHY/CRC-init (RadioTask.c's static
// initializers).
func NewRadioCore(wrapper radio.Wrapper, hopTrig radio.HopTrigger, stopTrig radio.StopTrigger,
	sink Sink, tx *txring.Ring) *RadioCore {
	rc := &RadioCore{
		wrapper:  wrapper,
		hopTrig:  hopTrig,
		stopTrig: stopTrig,
		auxSched: &auxsched.Sched{},
		confQ:    &confqueue.Queue{},
		sink:     sink,
		tx:       tx,
		advCache: &advcache.Cache{},
		rpaRes:   rpa.NewResolver([16]byte{}),
	}
	rc.conn.accessAddress = bleAdvAA
	rc.cmd.statChan = 37
	rc.cmd.statPHY = frame.PHY1M
	rc.cmd.statCRCI = 0x555555
	rc.cmd.followConnections = true
	rc.cmd.instaHop = true
	rc.cmd.validateCRC = true
	rc.cmd.minRSSI = -128
	rc.cmd.advIntervalMs = 100
	rc.conn.sniffScanRspLen = 26
	return rc
}

// SetValidateCRC toggles CRC validation on received frames. Unlike the
// other cmd.* fields, the original firmware never exposes this over a host
// command opcode, so it is not part of hostlink.Handler; it exists purely
// for startup wiring from configuration (cmd/blesniffer), called once
// before Run.
func (rc *RadioCore) SetValidateCRC(enabled bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.cmd.validateCRC = enabled
}

// ConnectionID returns the identifier tagging the connection currently being
// tracked (or the last one tracked, if none is active), for correlating
// telemetry/capture-log output across the lifetime of a single connection.
func (rc *RadioCore) ConnectionID() uuid.UUID {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.conn.id
}

// EmptyHopCount returns the number of consecutive connection events with no
// received packet for the connection currently (or most recently) tracked,
// for telemetry correlation.
func (rc *RadioCore) EmptyHopCount() uint32 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.conn.emptyHops
}
