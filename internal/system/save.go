package system

import (
	"context"
	"slices"
	"time"

	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/ecs"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap"
)

// SaveQueue is the save side of the persistence pipeline.
type SaveQueue interface {
	TryEnqueueSave(req persist.SaveRequest) (string, bool)
	EnqueueSaveWait(ctx context.Context, req persist.SaveRequest) (string, error)
	SaveResults() <-chan persist.SaveResult
}

// SaveSystem periodically enqueues dirty player entities and applies save
// results. Results are matched by command id, so a result for a despawned
// entity or a superseded command is ignored.
type SaveSystem struct {
	world    *world.State
	sessions *session.Registry
	saves    SaveQueue
	cfg      config.PersistenceConfig
	interval time.Duration
	elapsed  time.Duration
	log      *zap.Logger
}

func NewSaveSystem(
	ws *world.State,
	sessions *session.Registry,
	saves SaveQueue,
	cfg config.PersistenceConfig,
	interval time.Duration,
	log *zap.Logger,
) *SaveSystem {
	return &SaveSystem{
		world:    ws,
		sessions: sessions,
		saves:    saves,
		cfg:      cfg,
		interval: interval,
		log:      log,
	}
}

func (s *SaveSystem) Phase() coresys.Phase { return coresys.PhaseProcess }

func (s *SaveSystem) Update(dt time.Duration) {
	persist.Drain(s.saves.SaveResults(), 0, s.apply)

	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0
	s.enqueueDirty()
}

// enqueueDirty queues every dirty entity with no save in flight and no
// backoff pending. A full queue ends the pass; the rest stay dirty.
func (s *SaveSystem) enqueueDirty() {
	ws := s.world
	ids := ws.C.Dirty.IDs()
	slices.Sort(ids)

	queued := 0
	for i, e := range ids {
		if ws.C.SavePending.Has(e) {
			continue
		}
		if b, ok := ws.C.SaveBackoff.Get(e); ok && ws.Now() < b.NotBefore {
			continue
		}
		snap, ok := ws.Snapshot(e)
		if !ok {
			continue
		}
		id, ok := s.saves.TryEnqueueSave(persist.SaveRequest{Entity: e, Character: snap})
		if !ok {
			s.log.Debug("save queue full, retrying next interval", zap.Int("remaining", len(ids)-i))
			break
		}
		ws.C.SavePending.Set(e, &component.SavePending{CommandID: id})
		if ident, ok := ws.C.Identity.Get(e); ok {
			s.sessions.UpdateCharacter(ident.PeerID, snap)
		}
		queued++
	}
	if queued > 0 {
		s.log.Debug("periodic save queued", zap.Int("count", queued))
	}
}

func (s *SaveSystem) apply(res persist.SaveResult) {
	if res.Final {
		if res.Err != nil {
			s.log.Error("final save failed", zap.Int64("char_id", res.CharacterID), zap.Error(res.Err))
		}
		return
	}

	ws := s.world
	if !ws.World.Alive(res.Entity) {
		return
	}
	p, ok := ws.C.SavePending.Get(res.Entity)
	if !ok || p.CommandID != res.ID {
		s.log.Debug("stale save result", zap.String("command", res.ID), zap.Int64("char_id", res.CharacterID))
		return
	}
	ws.C.SavePending.Remove(res.Entity)

	if res.Err == nil {
		ws.C.Dirty.Remove(res.Entity)
		ws.C.SaveBackoff.Remove(res.Entity)
		return
	}
	s.backOff(res.Entity, res)
}

func (s *SaveSystem) backOff(e ecs.EntityID, res persist.SaveResult) {
	ws := s.world
	b, ok := ws.C.SaveBackoff.Get(e)
	if !ok {
		b = &component.SaveBackoff{}
		ws.C.SaveBackoff.Set(e, b)
	}
	b.Failures++
	delay := s.retryDelay(b.Failures)
	b.NotBefore = ws.Now() + delay

	s.log.Warn("save failed, will retry",
		zap.Int64("char_id", res.CharacterID),
		zap.Int("failures", b.Failures),
		zap.Duration("retry_in", delay),
		zap.Error(res.Err),
	)
	if limit := s.cfg.MaxSaveFailures; limit > 0 && b.Failures%limit == 0 {
		s.log.Error("character save keeps failing",
			zap.Int64("char_id", res.CharacterID),
			zap.Int("failures", b.Failures),
		)
	}
}

// retryDelay doubles from the base backoff per failure, capped at the max.
func (s *SaveSystem) retryDelay(failures int) time.Duration {
	d := s.cfg.RetryBaseBackoff
	if d <= 0 {
		return 0
	}
	for i := 1; i < failures && d < s.cfg.RetryMaxBackoff; i++ {
		d *= 2
	}
	if s.cfg.RetryMaxBackoff > 0 && d > s.cfg.RetryMaxBackoff {
		d = s.cfg.RetryMaxBackoff
	}
	return d
}

// Dispose queues a final save for every dirty entity before the pipeline
// shuts down, including entities whose periodic save is still pending.
func (s *SaveSystem) Dispose() {
	ws := s.world
	ids := ws.C.Dirty.IDs()
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	queued := 0
	for _, e := range ids {
		snap, ok := ws.Snapshot(e)
		if !ok {
			continue
		}
		if _, err := s.saves.EnqueueSaveWait(ctx, persist.SaveRequest{Entity: e, Character: snap, Final: true}); err != nil {
			s.log.Error("shutdown save not queued", zap.Int64("char_id", snap.CharacterID), zap.Error(err))
			continue
		}
		queued++
	}
	s.log.Info("shutdown saves queued", zap.Int("count", queued), zap.Int("dirty", len(ids)))
}
