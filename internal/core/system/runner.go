package system

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// run in registration order.
type Runner struct {
	systems []System
	sorted  bool
	log     *zap.Logger
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		log:     log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick runs every system once. A panicking system is logged and skipped for
// the rest of this tick; the remaining systems still run.
func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		r.safeUpdate(s, dt)
	}
}

// Dispose releases every system implementing Disposer, in reverse order.
func (r *Runner) Dispose() {
	r.ensureSorted()
	for i := len(r.systems) - 1; i >= 0; i-- {
		if d, ok := r.systems[i].(Disposer); ok {
			d.Dispose()
		}
	}
}

func (r *Runner) safeUpdate(s System, dt time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("system panic recovered",
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Stringer("phase", s.Phase()),
				zap.Any("panic", rec),
			)
		}
	}()
	s.Update(dt)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
