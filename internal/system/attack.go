package system

import (
	"time"

	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/core/ecs"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/world"
)

// AttackValidationSystem starts an attack for each attack intent. The
// duration per vocation comes from the Lua rules, falling back to fallback.
type AttackValidationSystem struct {
	world    *world.State
	rules    *scripting.Engine
	fallback time.Duration
}

func NewAttackValidationSystem(ws *world.State, rules *scripting.Engine, fallback time.Duration) *AttackValidationSystem {
	if fallback <= 0 {
		fallback = scripting.DefaultAttackDuration
	}
	return &AttackValidationSystem{world: ws, rules: rules, fallback: fallback}
}

func (s *AttackValidationSystem) Phase() coresys.Phase { return coresys.PhaseValidate }

func (s *AttackValidationSystem) Update(_ time.Duration) {
	ws := s.world
	ws.C.AttackIntent.Each(func(e ecs.EntityID, intent *component.AttackIntent) {
		ws.C.AttackIntent.Remove(e)
		if ws.C.Attack.Has(e) {
			return
		}
		var vocation uint8
		if info, ok := ws.C.Info.Get(e); ok {
			vocation = info.Vocation
		}
		ws.C.Direction.Set(e, &component.Direction{DX: intent.Direction.X, DY: intent.Direction.Y})
		ws.C.Attack.Set(e, &component.AttackProgress{
			Direction: intent.Direction,
			Duration:  s.rules.AttackDuration(vocation, s.fallback),
		})
		ws.C.Dirty.Set(e, &component.Dirty{})
	})
}

// AttackProgressSystem ends attacks whose duration has elapsed.
type AttackProgressSystem struct {
	world *world.State
}

func NewAttackProgressSystem(ws *world.State) *AttackProgressSystem {
	return &AttackProgressSystem{world: ws}
}

func (s *AttackProgressSystem) Phase() coresys.Phase { return coresys.PhaseValidate }

func (s *AttackProgressSystem) Update(dt time.Duration) {
	ws := s.world
	ws.C.Attack.Each(func(e ecs.EntityID, a *component.AttackProgress) {
		a.Elapsed += dt
		if a.Done() {
			ws.C.Attack.Remove(e)
		}
	})
}
