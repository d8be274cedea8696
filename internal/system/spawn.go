package system

import (
	"time"

	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap"
)

// SpawnSystem creates player entities for validated spawn requests.
type SpawnSystem struct {
	world    *world.State
	sessions *session.Registry
	queues   *event.Queues
	log      *zap.Logger
}

func NewSpawnSystem(ws *world.State, sessions *session.Registry, queues *event.Queues, log *zap.Logger) *SpawnSystem {
	return &SpawnSystem{
		world:    ws,
		sessions: sessions,
		queues:   queues,
		log:      log,
	}
}

func (s *SpawnSystem) Phase() coresys.Phase { return coresys.PhaseValidate }

func (s *SpawnSystem) Update(_ time.Duration) {
	s.queues.Spawn.Drain(s.spawn)
}

func (s *SpawnSystem) spawn(req event.SpawnRequest) {
	// The peer may have disconnected since the request was validated.
	c, ok := s.sessions.TryGetSelectedCharacter(req.PeerID)
	if !ok || c.CharacterID != req.CharacterID {
		return
	}
	if _, inWorld := s.world.Players.ByPeer(req.PeerID); inWorld {
		return
	}

	moved := false
	if !s.world.Map.IsWalkable(c.X, c.Y) {
		sp := s.world.Map.Spawn()
		s.log.Warn("saved position not walkable, using map spawn",
			zap.Int64("char_id", c.CharacterID),
			zap.Int32("x", c.X), zap.Int32("y", c.Y),
		)
		c.X, c.Y = sp.X, sp.Y
		moved = true
	}

	e := s.world.SpawnPlayer(req.PeerID, c)
	if !s.sessions.SetInWorld(req.PeerID, e) {
		s.world.DespawnPlayer(req.PeerID)
		return
	}
	if moved {
		s.world.C.Dirty.Set(e, &component.Dirty{})
	}
	s.queues.Spawned.Push(event.EntitySpawned{Entity: e, PeerID: req.PeerID})

	s.log.Info("player entered world",
		zap.Uint64("peer", req.PeerID),
		zap.Int64("char_id", c.CharacterID),
		zap.String("name", c.Name),
		zap.Uint64("entity", uint64(e)),
	)
}
