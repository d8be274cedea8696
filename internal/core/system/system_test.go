package system

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSystem struct {
	phase    Phase
	name     string
	log      *[]string
	disposed *[]string
	onUpdate func()
}

func (s *recordingSystem) Phase() Phase { return s.phase }

func (s *recordingSystem) Update(time.Duration) {
	*s.log = append(*s.log, s.name)
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

func (s *recordingSystem) Dispose() {
	if s.disposed != nil {
		*s.disposed = append(*s.disposed, s.name)
	}
}

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var order []string
	r := NewRunner(zaptest.NewLogger(t))
	r.Register(&recordingSystem{phase: PhaseSend, name: "send", log: &order})
	r.Register(&recordingSystem{phase: PhaseValidate, name: "validate-a", log: &order})
	r.Register(&recordingSystem{phase: PhaseReceive, name: "receive", log: &order})
	r.Register(&recordingSystem{phase: PhaseValidate, name: "validate-b", log: &order})
	r.Register(&recordingSystem{phase: PhaseProcess, name: "process", log: &order})

	r.Tick(time.Millisecond)

	want := []string{"receive", "validate-a", "validate-b", "process", "send"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestRunnerRecoversPanickingSystem(t *testing.T) {
	var order []string
	r := NewRunner(zaptest.NewLogger(t))
	r.Register(&recordingSystem{phase: PhaseReceive, name: "boom", log: &order, onUpdate: func() { panic("bad") }})
	r.Register(&recordingSystem{phase: PhaseSend, name: "send", log: &order})

	r.Tick(time.Millisecond)

	if len(order) != 2 || order[1] != "send" {
		t.Fatalf("expected later phases to run after a panic, got %v", order)
	}
}

func TestSchedulerStopsAfterCurrentTickAndDisposes(t *testing.T) {
	var order, disposed []string
	var stopped atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRunner(zaptest.NewLogger(t))
	ticks := 0
	r.Register(&recordingSystem{phase: PhaseReceive, name: "receive", log: &order, disposed: &disposed, onUpdate: func() {
		ticks++
		if ticks == 3 {
			cancel()
		}
	}})
	r.Register(&recordingSystem{phase: PhaseSend, name: "send", log: &order, disposed: &disposed})

	s := NewScheduler(r, time.Millisecond, zaptest.NewLogger(t))
	s.OnStop(func() { stopped.Store(true) })

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}

	if s.Ticks() != 3 {
		t.Fatalf("expected 3 ticks, got %d", s.Ticks())
	}
	if order[len(order)-1] != "send" {
		t.Fatalf("the cancelling tick should still reach the send phase, got %v", order)
	}
	if len(disposed) != 2 || disposed[0] != "send" || disposed[1] != "receive" {
		t.Fatalf("expected reverse-order dispose, got %v", disposed)
	}
	if !stopped.Load() {
		t.Fatalf("expected stop hook to run")
	}
}

func TestSchedulerLogsOverrun(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	ctx, cancel := context.WithCancel(context.Background())

	var order []string
	r := NewRunner(zap.NewNop())
	r.Register(&recordingSystem{phase: PhaseValidate, name: "slow", log: &order, onUpdate: func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}})

	s := NewScheduler(r, time.Millisecond, zap.New(core))
	s.Run(ctx)

	if logs.FilterMessage("tick overrun").Len() != 1 {
		t.Fatalf("expected one overrun warning, got %d", logs.Len())
	}
	if len(order) != 1 {
		t.Fatalf("overrun must not trigger catch-up ticks, got %d updates", len(order))
	}
}
