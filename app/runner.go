package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/ecsact-runtime/abi"
	"github.com/wippyai/ecsact-runtime/config"
	"github.com/wippyai/ecsact-runtime/errors"
	"github.com/wippyai/ecsact-runtime/runtime"
)

// Runner flushes async events once per tick. All runtime callbacks happen
// on the goroutine calling Run.
type Runner struct {
	rt       *runtime.Runtime
	onTick   func(time.Duration)
	interval time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTickObserver reports the duration of every tick to fn.
func WithTickObserver(fn func(time.Duration)) RunnerOption {
	return func(r *Runner) {
		r.onTick = fn
	}
}

// NewRunner creates a runner ticking every interval. A non-positive
// interval uses config.DefaultAsyncRunnerInterval.
func NewRunner(rt *runtime.Runtime, interval time.Duration, opts ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = config.DefaultAsyncRunnerInterval
	}
	r := &Runner{rt: rt, interval: interval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the tick period.
func (r *Runner) Interval() time.Duration { return r.interval }

// Run ticks until ctx is cancelled, then returns nil. It fails at once when
// the runtime has no flush entry point, and stops when the runtime is closed.
// Errors raised by event handlers are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	if !r.rt.Has(abi.SymAsyncFlushEvents) {
		return errors.MissingEntryPoint(abi.SymAsyncFlushEvents)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log := r.rt.Logger()
	log.Debug("async runner started", zap.Duration("interval", r.interval))
	defer log.Debug("async runner stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.Tick(); err != nil {
				if r.rt.Closed() {
					return err
				}
				log.Warn("async flush reported errors", zap.Error(err))
			}
		}
	}
}

// Tick flushes once.
func (r *Runner) Tick() error {
	start := time.Now()
	err := r.rt.Async().FlushEvents()
	if r.onTick != nil {
		r.onTick(time.Since(start))
	}
	return err
}
