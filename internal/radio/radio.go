// Package radio declares the external collaborators that RadioCore depends
// on but does not implement: the radio PHY driver (spec §1 explicitly
// scopes this out), and the one-shot hop/stop timer triggers. It also
// carries the core's error taxonomy (spec §7), which is not a Go error
// hierarchy but a small set of sentinel values consumed internally.
//
// Grounded on RadioWrapper.h, DelayHopTrigger.c and DelayStopTrigger.c: no
// concrete radio driver lives here, since none is buildable without real
// MCU radio peripherals; cmd/blesniffer wires a stand-in or a future
// hardware-backed implementation against the Wrapper interface. The hop and
// stop triggers do have concrete timer-based implementations here
// (triggers.go's HopDelay and StopDelay).
package radio

import (
	"context"
	"errors"

	"github.com/cwsl/blesniffercore/internal/frame"
)

// Error taxonomy (spec §7): kinds, not Go error types, distinguished by
// sentinel identity. Only ErrInvalidArgument and ErrHostLinkFraming ever
// surface to the host (via CommandHandler rejecting a malformed command);
// the rest are strictly local to the core.
var (
	ErrInvalidArgument   = errors.New("radio: invalid argument")
	ErrResourceExhausted = errors.New("radio: resource exhausted")
	ErrProtocolDesync    = errors.New("radio: protocol desync")
	ErrRadioFault        = errors.New("radio: hardware fault")
	ErrLinkLost          = errors.New("radio: link lost")
	ErrHostLinkFraming   = errors.New("radio: host link framing error")
)

// FrameCallback is invoked by the radio driver, from callback/interrupt
// context, for every frame it receives.
type FrameCallback func(*frame.Frame)

// AdvMode mirrors ADV_Mode: the legacy advertising PDU type to send.
type AdvMode uint8

const (
	AdvLegacyConnectable AdvMode = iota
	AdvLegacyDirect
	AdvLegacyNonConnectable
	AdvLegacyScannable
)

// AdvExtMode mirrors ADV_EXT_Mode.
type AdvExtMode uint8

const (
	AdvExtNonConnectable AdvExtMode = iota
	AdvExtConnectable
	AdvExtScannable
)

// InitiateResult carries the outcome of a successful Initiate call.
// UseCSA2/UsedAuxConnReq distinguish the three successful outcomes
// RadioWrapper_initiate's status levels used to encode: a legacy
// CONNECT_IND on CSA#1 (both false), CONNECT_IND on CSA#2 (UseCSA2 only),
// or AUX_CONNECT_REQ, which is always CSA#2 (both true).
type InitiateResult struct {
	ConnTime       uint32
	ConnPhy        frame.PHY
	UseCSA2        bool
	UsedAuxConnReq bool
}

// CentralResult carries the outcome of a Central/Peripheral radio op.
type CentralResult struct {
	NumSent uint32
}

// Wrapper is the radio driver's external-collaborator surface (spec §1,
// §5 "Suspension points"): every method here blocks the calling goroutine
// until the radio operation terminates, is cancelled via ctx, or Stop is
// called concurrently from another goroutine.
type Wrapper interface {
	// RecvFrames sniffs on a single fixed channel/AA/CRCInit until timeout
	// (an absolute radio timestamp) or ctx cancellation.
	RecvFrames(ctx context.Context, phy frame.PHY, chanNum uint32, accessAddr, crcInit uint32,
		timeout uint32, forever, validateCRC bool, cb FrameCallback) error

	// RecvAdv3 sniffs ch 37, waits for TrigAdv3, sniffs ch 38 for delay1
	// ticks, then ch 39 for delay2 ticks.
	RecvAdv3(ctx context.Context, delay1, delay2 uint32, validateCRC bool, cb FrameCallback) error

	// TrigAdv3 signals RecvAdv3 to advance from channel 37 to 38.
	TrigAdv3()

	Scan(ctx context.Context, phy frame.PHY, chanNum, timeout uint32, forever bool,
		scanAddr [3]uint16, scanRandom, validateCRC bool, cb FrameCallback) error

	Central(ctx context.Context, phy frame.PHY, chanNum, accessAddr, crcInit, timeout uint32,
		cb FrameCallback, tx TXSource, startTime uint32) (CentralResult, error)

	Peripheral(ctx context.Context, phy frame.PHY, chanNum, accessAddr, crcInit, timeout uint32,
		cb FrameCallback, tx TXSource, startTime uint32) (CentralResult, error)

	ResetSeqStat()

	Initiate(ctx context.Context, phy frame.PHY, chanNum, timeout uint32, forever bool,
		cb FrameCallback, initAddr [3]uint16, initRandom bool, peerAddr [3]uint16, peerRandom bool,
		connReqData []byte) (InitiateResult, error)

	Advertise3(ctx context.Context, cb FrameCallback, advAddr [3]uint16, advRandom bool,
		advData, scanRspData []byte, mode AdvMode) error

	AdvertiseExt3(ctx context.Context, cb FrameCallback, advAddr [3]uint16, advRandom bool,
		advData []byte, mode AdvExtMode, primaryPhy, secondaryPhy frame.PHY,
		secondaryChan uint32, adi uint16) error

	SetTxPower(dBm int8)

	// Stop aborts whatever radio operation is currently in progress,
	// causing the blocked call above to return promptly.
	Stop()

	// CurrentTime returns the current radio tick counter (4 MHz ticks).
	CurrentTime() uint32
}

// TXSource exposes the pending transmit queue to Central/Peripheral radio
// ops; satisfied by internal/txring.Ring.
type TXSource interface {
	Take() []TXEntry
	Flush(n uint32)
}

// TXEntry mirrors internal/txring.TXEntry, redeclared here so internal/radio
// has no import-time dependency on internal/txring (only cmd/blesniffer
// needs both).
type TXEntry struct {
	LLID     uint8
	Data     []byte
	EventCtr uint16
}

// HopTrigger schedules a one-shot callback after a delay, postponable
// before it fires (DelayHopTrigger.c).
type HopTrigger interface {
	Trigger(delayMicros uint32, fire func())
	Postpone(delayMicros uint32)
}

// StopTrigger schedules a one-shot radio stop after a delay
// (DelayStopTrigger.c).
type StopTrigger interface {
	Trigger(delayMicros uint32)
	Cancel()
}
