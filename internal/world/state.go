package world

import (
	"time"

	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/core/ecs"
	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/persist"
)

// Components holds every component store of the world. Stores are
// registered with the ecs.World so Despawn clears them all.
type Components struct {
	Identity  *ecs.Store[component.NetworkIdentity]
	Info      *ecs.Store[component.PlayerInfo]
	Position  *ecs.Store[component.MapPosition]
	Speed     *ecs.Store[component.Speed]
	Direction *ecs.Store[component.Direction]
	Input     *ecs.Store[component.ClientInputState]

	MoveIntent   *ecs.Store[component.MoveIntent]
	AttackIntent *ecs.Store[component.AttackIntent]
	Movement     *ecs.Store[component.MovementProgress]
	Attack       *ecs.Store[component.AttackProgress]

	Dirty       *ecs.Store[component.Dirty]
	SavePending *ecs.Store[component.SavePending]
	SaveBackoff *ecs.Store[component.SaveBackoff]
}

func NewComponents(w *ecs.World) *Components {
	return &Components{
		Identity:     ecs.Register[component.NetworkIdentity](w),
		Info:         ecs.Register[component.PlayerInfo](w),
		Position:     ecs.Register[component.MapPosition](w),
		Speed:        ecs.Register[component.Speed](w),
		Direction:    ecs.Register[component.Direction](w),
		Input:        ecs.Register[component.ClientInputState](w),
		MoveIntent:   ecs.Register[component.MoveIntent](w),
		AttackIntent: ecs.Register[component.AttackIntent](w),
		Movement:     ecs.Register[component.MovementProgress](w),
		Attack:       ecs.Register[component.AttackProgress](w),
		Dirty:        ecs.Register[component.Dirty](w),
		SavePending:  ecs.Register[component.SavePending](w),
		SaveBackoff:  ecs.Register[component.SaveBackoff](w),
	}
}

// State is the simulation owned by the tick goroutine. No locks: nothing
// else may read or write it.
type State struct {
	World   *ecs.World
	C       *Components
	Players *PlayerRegistry
	Map     *data.MapData

	tileSize int
	clock    time.Duration // simulation time, advanced by whole ticks
	tick     uint64
}

// NewState builds an empty world over m. tileSize overrides the map's tile
// size when positive.
func NewState(m *data.MapData, tileSize int) *State {
	w := ecs.NewWorld()
	if tileSize <= 0 {
		tileSize = m.TileSize()
	}
	return &State{
		World:    w,
		C:        NewComponents(w),
		Players:  NewPlayerRegistry(),
		Map:      m,
		tileSize: tileSize,
	}
}

// TileSize is the edge length of one tile in pixels.
func (s *State) TileSize() int { return s.tileSize }

// Advance moves the simulation clock by one tick of dt.
func (s *State) Advance(dt time.Duration) {
	s.clock += dt
	s.tick++
}

// Now returns the simulation clock.
func (s *State) Now() time.Duration { return s.clock }

// Tick returns the number of completed ticks.
func (s *State) Tick() uint64 { return s.tick }

// MoveDuration is how long a step of step tiles takes at speed px/s.
// Non-positive speed is instantaneous.
func (s *State) MoveDuration(step component.Vec2, speed float64) time.Duration {
	if speed <= 0 {
		return 0
	}
	return time.Duration(step.Length() * float64(s.tileSize) * float64(time.Second) / speed)
}

// SpawnPlayer creates a player entity from c for peer and registers it.
func (s *State) SpawnPlayer(peer uint64, c persist.CharacterData) ecs.EntityID {
	e := s.World.Spawn()
	s.C.Identity.Set(e, &component.NetworkIdentity{PeerID: peer})
	s.C.Info.Set(e, &component.PlayerInfo{
		CharacterID: c.CharacterID,
		AccountID:   c.AccountID,
		Name:        c.Name,
		Vocation:    c.Vocation,
		Gender:      c.Gender,
	})
	s.C.Position.Set(e, &component.MapPosition{X: c.X, Y: c.Y})
	s.C.Speed.Set(e, &component.Speed{PixelsPerSecond: c.Speed})
	s.C.Direction.Set(e, &component.Direction{DX: c.DirX, DY: c.DirY})
	s.C.Input.Set(e, &component.ClientInputState{})
	s.Players.Add(peer, c.CharacterID, e)
	return e
}

// DespawnPlayer unregisters the entity of peer and queues it for
// destruction at the end of the tick.
func (s *State) DespawnPlayer(peer uint64) (ecs.EntityID, bool) {
	e, ok := s.Players.Remove(peer)
	if !ok {
		return 0, false
	}
	s.World.MarkForDestruction(e)
	return e, true
}

// Snapshot builds the save record of a player entity. A move in flight is
// saved at its start tile, which is always walkable.
func (s *State) Snapshot(e ecs.EntityID) (persist.CharacterData, bool) {
	info, ok := s.C.Info.Get(e)
	if !ok {
		return persist.CharacterData{}, false
	}
	pos, ok := s.C.Position.Get(e)
	if !ok {
		return persist.CharacterData{}, false
	}
	c := persist.CharacterData{
		CharacterID: info.CharacterID,
		AccountID:   info.AccountID,
		Name:        info.Name,
		Vocation:    info.Vocation,
		Gender:      info.Gender,
		X:           pos.X,
		Y:           pos.Y,
	}
	if d, ok := s.C.Direction.Get(e); ok {
		c.DirX, c.DirY = d.DX, d.DY
	}
	if sp, ok := s.C.Speed.Get(e); ok {
		c.Speed = sp.PixelsPerSecond
	}
	return c, true
}
