package runner

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DefaultSignalGrace is how long CheckRace waits for a signal to land.
const DefaultSignalGrace = 100 * time.Millisecond

// SignalManager cancels a protocol run on SIGINT or SIGTERM. The runner
// checks the context between steps, so a cancelled run stops after the
// step in flight reaches its next hardware call.
type SignalManager struct {
	signals []os.Signal
	grace   time.Duration

	ctx  context.Context
	stop context.CancelFunc
}

// SignalOption configures a SignalManager.
type SignalOption func(*SignalManager)

// WithSignals replaces the signals that cancel the run.
func WithSignals(sig ...os.Signal) SignalOption {
	return func(sm *SignalManager) { sm.signals = sig }
}

// WithGrace sets how long CheckRace waits.
func WithGrace(d time.Duration) SignalOption {
	return func(sm *SignalManager) { sm.grace = d }
}

// NewSignalManager starts listening right away.
func NewSignalManager(opts ...SignalOption) *SignalManager {
	sm := &SignalManager{
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		grace:   DefaultSignalGrace,
	}
	for _, opt := range opts {
		opt(sm)
	}
	sm.Reset()
	return sm
}

// Context is cancelled when a signal arrives.
func (sm *SignalManager) Context() context.Context {
	return sm.ctx
}

// Reset releases the current context and arms a fresh one, e.g. after an
// operator chose to continue a paused run.
func (sm *SignalManager) Reset() {
	sm.Stop()
	sm.ctx, sm.stop = signal.NotifyContext(context.Background(), sm.signals...)
}

// Stop releases the listener and cancels the context.
func (sm *SignalManager) Stop() {
	if sm.stop != nil {
		sm.stop()
	}
}

// CheckRace gives a pending signal the grace period to cancel the context.
// Ctrl+C can reach the run as a serial read error or a stdin EOF just before
// the signal itself, and the error should then be reported as an interrupt.
func (sm *SignalManager) CheckRace() {
	if sm.ctx.Err() != nil {
		return
	}
	t := time.NewTimer(sm.grace)
	defer t.Stop()
	select {
	case <-sm.ctx.Done():
	case <-t.C:
	}
}

// Interrupted reports whether the context was cancelled.
func (sm *SignalManager) Interrupted() bool {
	return sm.ctx.Err() != nil
}
