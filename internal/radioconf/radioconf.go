// Package radioconf defines RadioConfig, the connection-parameter snapshot
// shared by internal/confqueue (as its queued payload) and internal/radiocore
// (as the live configuration of a tracked connection). It is kept standalone,
// rather than folded into internal/radio, to avoid an import cycle: confqueue
// needs this type and radiocore needs both confqueue and radio.
package radioconf

import "github.com/cwsl/blesniffercore/internal/frame"

// RadioConfig is the speculative-inference-aware connection parameter set
// (spec §3 DATA MODEL). The three *Certain flags track whether a field's
// true value is known (from plaintext signalling) or still being inferred
// passively while the link is encrypted.
type RadioConfig struct {
	ChanMap          uint64 // 40-bit channel map (37 used bits)
	HopIntervalTicks uint32
	Offset           uint16
	SlaveLatency     uint16
	ConnTimeoutTicks uint32
	Phy              frame.PHY

	IntervalCertain  bool
	ChanMapCertain   bool
	WinOffsetCertain bool
}

// Clone returns a copy of c, used when a ConfQueue entry inherits unchanged
// fields from the current baseline.
func (c RadioConfig) Clone() RadioConfig {
	return c
}
