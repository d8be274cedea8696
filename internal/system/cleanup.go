package system

import (
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/world"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end
// and advances the simulation clock. Register it last.
type CleanupSystem struct {
	world *world.State
}

func NewCleanupSystem(ws *world.State) *CleanupSystem {
	return &CleanupSystem{world: ws}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseSend }

func (s *CleanupSystem) Update(dt time.Duration) {
	s.world.World.FlushDestroyQueue()
	s.world.Advance(dt)
}
