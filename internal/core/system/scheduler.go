package system

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives a Runner at a fixed rate. Every tick runs all phases with
// the same fixed dt. An overrunning tick is logged and the next one starts
// immediately; there is no catch-up stepping.
type Scheduler struct {
	runner    *Runner
	interval  time.Duration
	log       *zap.Logger
	stopHooks []func()
	ticks     uint64
}

func NewScheduler(runner *Runner, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      log,
	}
}

// OnStop registers fn to run after the systems are disposed. Hooks run in
// registration order.
func (s *Scheduler) OnStop(fn func()) {
	s.stopHooks = append(s.stopHooks, fn)
}

// Ticks returns the number of completed ticks.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Run blocks until ctx is cancelled. The tick in progress when ctx fires is
// completed before shutdown begins.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for ctx.Err() == nil {
		start := time.Now()
		s.runner.Tick(s.interval)
		s.ticks++

		elapsed := time.Since(start)
		if elapsed >= s.interval {
			s.log.Warn("tick overrun",
				zap.Uint64("tick", s.ticks),
				zap.Duration("elapsed", elapsed),
				zap.Duration("budget", s.interval),
			)
			continue
		}

		timer.Reset(s.interval - elapsed)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	s.log.Info("tick loop stopping", zap.Uint64("ticks", s.ticks))
	s.runner.Dispose()
	for _, fn := range s.stopHooks {
		fn()
	}
}
