package system

import (
	"time"

	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/core/ecs"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap"
)

// MovementValidationSystem turns move intents into movement in progress when
// the target tile is walkable. Rejected moves are dropped without a reply.
type MovementValidationSystem struct {
	world  *world.State
	queues *event.Queues
	log    *zap.Logger
}

func NewMovementValidationSystem(ws *world.State, queues *event.Queues, log *zap.Logger) *MovementValidationSystem {
	return &MovementValidationSystem{world: ws, queues: queues, log: log}
}

func (s *MovementValidationSystem) Phase() coresys.Phase { return coresys.PhaseValidate }

func (s *MovementValidationSystem) Update(_ time.Duration) {
	ws := s.world
	ws.C.MoveIntent.Each(func(e ecs.EntityID, intent *component.MoveIntent) {
		ws.C.MoveIntent.Remove(e)
		s.validate(e, intent)
	})
}

func (s *MovementValidationSystem) validate(e ecs.EntityID, intent *component.MoveIntent) {
	ws := s.world
	if ws.C.Movement.Has(e) {
		return
	}
	pos, ok := ws.C.Position.Get(e)
	if !ok {
		return
	}
	start := pos.Vec()
	target := start.Add(intent.Direction)
	if !ws.Map.IsWalkable(target.X, target.Y) {
		s.log.Debug("move rejected, target not walkable",
			zap.Uint64("entity", uint64(e)),
			zap.Int32("x", target.X), zap.Int32("y", target.Y),
		)
		return
	}

	var speed float64
	if sp, ok := ws.C.Speed.Get(e); ok {
		speed = sp.PixelsPerSecond
	}
	ws.C.Direction.Set(e, &component.Direction{DX: intent.Direction.X, DY: intent.Direction.Y})
	ws.C.Movement.Set(e, &component.MovementProgress{
		Start:    start,
		Target:   target,
		Duration: ws.MoveDuration(intent.Direction, speed),
	})

	var peer uint64
	if id, ok := ws.C.Identity.Get(e); ok {
		peer = id.PeerID
	}
	s.queues.Moved.Push(event.MovementStarted{
		Entity:    e,
		PeerID:    peer,
		Direction: intent.Direction,
		Start:     start,
	})
}

// MovementProgressSystem advances movement in progress and commits the
// target position once the step is complete.
type MovementProgressSystem struct {
	world *world.State
}

func NewMovementProgressSystem(ws *world.State) *MovementProgressSystem {
	return &MovementProgressSystem{world: ws}
}

func (s *MovementProgressSystem) Phase() coresys.Phase { return coresys.PhaseValidate }

func (s *MovementProgressSystem) Update(dt time.Duration) {
	ws := s.world
	ecs.Each2(ws.C.Movement, ws.C.Position, func(e ecs.EntityID, m *component.MovementProgress, pos *component.MapPosition) {
		m.Elapsed += dt
		if !m.Done() {
			return
		}
		ws.C.Movement.Remove(e)
		pos.X, pos.Y = m.Target.X, m.Target.Y
		ws.C.Dirty.Set(e, &component.Dirty{})
	})
}
