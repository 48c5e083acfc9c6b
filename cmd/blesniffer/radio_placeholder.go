package main

import (
	"context"
	"sync"
	"time"

	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/radio"
)

// placeholderRadio implements radio.Wrapper without any real RF hardware.
// Spec §1 scopes the PHY driver out as an external collaborator with no
// buildable in-repo implementation (none is possible without real MCU
// radio peripherals); every blocking method here simply waits for ctx
// cancellation or an explicit Stop, producing no frames, so the rest of
// RadioCore's state machine and the host link around it are fully
// exercisable against a real UART/telemetry/webtap stack while only the
// RF edge itself is unimplemented.
type placeholderRadio struct {
	mu      sync.Mutex
	stopped chan struct{}
	start   time.Time
}

func newPlaceholderRadio() *placeholderRadio {
	return &placeholderRadio{stopped: make(chan struct{}), start: time.Now()}
}

func (r *placeholderRadio) block(ctx context.Context) error {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stopped:
		return nil
	}
}

func (r *placeholderRadio) RecvFrames(ctx context.Context, _ frame.PHY, _ uint32, _, _ uint32,
	_ uint32, _, _ bool, _ radio.FrameCallback) error {
	return r.block(ctx)
}

func (r *placeholderRadio) RecvAdv3(ctx context.Context, _, _ uint32, _ bool, _ radio.FrameCallback) error {
	return r.block(ctx)
}

func (r *placeholderRadio) TrigAdv3() {}

func (r *placeholderRadio) Scan(ctx context.Context, _ frame.PHY, _, _ uint32, _ bool,
	_ [3]uint16, _, _ bool, _ radio.FrameCallback) error {
	return r.block(ctx)
}

func (r *placeholderRadio) Central(ctx context.Context, _ frame.PHY, _, _, _, _ uint32,
	_ radio.FrameCallback, _ radio.TXSource, _ uint32) (radio.CentralResult, error) {
	return radio.CentralResult{}, r.block(ctx)
}

func (r *placeholderRadio) Peripheral(ctx context.Context, _ frame.PHY, _, _, _, _ uint32,
	_ radio.FrameCallback, _ radio.TXSource, _ uint32) (radio.CentralResult, error) {
	return radio.CentralResult{}, r.block(ctx)
}

func (r *placeholderRadio) ResetSeqStat() {}

func (r *placeholderRadio) Initiate(ctx context.Context, _ frame.PHY, _, _ uint32, _ bool,
	_ radio.FrameCallback, _ [3]uint16, _ bool, _ [3]uint16, _ bool, _ []byte) (radio.InitiateResult, error) {
	return radio.InitiateResult{}, r.block(ctx)
}

func (r *placeholderRadio) Advertise3(ctx context.Context, _ radio.FrameCallback, _ [3]uint16, _ bool,
	_, _ []byte, _ radio.AdvMode) error {
	return r.block(ctx)
}

func (r *placeholderRadio) AdvertiseExt3(ctx context.Context, _ radio.FrameCallback, _ [3]uint16, _ bool,
	_ []byte, _ radio.AdvExtMode, _, _ frame.PHY, _ uint32, _ uint16) error {
	return r.block(ctx)
}

func (r *placeholderRadio) SetTxPower(int8) {}

// Stop unblocks every currently-blocked call above, mirroring
// RadioWrapper_stop's effect on whichever blocking call is in progress.
// Calls made after Stop returns block again until the next Stop.
func (r *placeholderRadio) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.stopped:
	default:
		close(r.stopped)
	}
	r.stopped = make(chan struct{})
}

// CurrentTime returns a monotonic tick counter synthesized from the
// process clock at 4 MHz (the radio's real tick rate), since there is no
// RF peripheral to read a hardware counter from.
func (r *placeholderRadio) CurrentTime() uint32 {
	return uint32(time.Since(r.start).Microseconds() * 4)
}
