package system

import (
	"context"
	"time"

	"github.com/gridrealm/server/internal/core/ecs"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap"
)

// DespawnSystem removes player entities for validated despawn requests. A
// dirty entity gets a final save first; the tick waits at most saveWait for
// room in the save queue. A periodic save still in flight does not hold the
// final one back here: the pipeline writes one character in queue order.
type DespawnSystem struct {
	world    *world.State
	saves    SaveQueue
	saveWait time.Duration
	queues   *event.Queues
	log      *zap.Logger
}

func NewDespawnSystem(ws *world.State, saves SaveQueue, saveWait time.Duration, queues *event.Queues, log *zap.Logger) *DespawnSystem {
	return &DespawnSystem{
		world:    ws,
		saves:    saves,
		saveWait: saveWait,
		queues:   queues,
		log:      log,
	}
}

func (s *DespawnSystem) Phase() coresys.Phase { return coresys.PhaseValidate }

func (s *DespawnSystem) Update(_ time.Duration) {
	s.queues.Despawn.Drain(s.despawn)
}

func (s *DespawnSystem) despawn(req event.DespawnRequest) {
	ws := s.world
	if cur, ok := ws.Players.ByPeer(req.PeerID); !ok || cur != req.Entity {
		return
	}
	if ws.C.Dirty.Has(req.Entity) {
		s.finalSave(req.Entity)
	}
	ws.DespawnPlayer(req.PeerID)

	s.queues.Despawned.Push(event.EntityDespawned{
		NetID:  uint64(req.Entity),
		PeerID: req.PeerID,
		Reason: req.Reason,
	})
	s.log.Info("player left world",
		zap.Uint64("peer", req.PeerID),
		zap.Uint64("entity", uint64(req.Entity)),
		zap.Stringer("reason", req.Reason),
	)
}

func (s *DespawnSystem) finalSave(e ecs.EntityID) {
	snap, ok := s.world.Snapshot(e)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.saveWait)
	defer cancel()

	id, err := s.saves.EnqueueSaveWait(ctx, persist.SaveRequest{Entity: e, Character: snap, Final: true})
	if err != nil {
		s.log.Error("final save not queued, unsaved progress lost",
			zap.Int64("char_id", snap.CharacterID),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("final save queued", zap.Int64("char_id", snap.CharacterID), zap.String("command", id))
}
