package system

import (
	"time"

	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap"
)

// LifecycleSystem validates enter/exit intents against the session registry
// and turns the valid ones into spawn and despawn requests. Rejected intents
// are dropped without a reply.
type LifecycleSystem struct {
	world    *world.State
	sessions *session.Registry
	queues   *event.Queues
	log      *zap.Logger
}

func NewLifecycleSystem(ws *world.State, sessions *session.Registry, queues *event.Queues, log *zap.Logger) *LifecycleSystem {
	return &LifecycleSystem{
		world:    ws,
		sessions: sessions,
		queues:   queues,
		log:      log,
	}
}

func (s *LifecycleSystem) Phase() coresys.Phase { return coresys.PhaseValidate }

func (s *LifecycleSystem) Update(_ time.Duration) {
	s.queues.Enter.Drain(s.enter)
	s.queues.Exit.Drain(func(in event.ExitGameIntent) {
		if in.Reason == event.ExitDisconnected {
			s.exitDisconnected(in)
			return
		}
		s.exit(in)
	})
}

func (s *LifecycleSystem) enter(in event.EnterGameIntent) {
	sess, ok := s.sessions.Get(in.PeerID)
	if !ok || sess.State != packet.StateCharacterSelected || sess.Character.CharacterID != in.CharacterID {
		s.reject("enter", in.PeerID, in.CharacterID)
		return
	}
	if _, inWorld := s.world.Players.ByPeer(in.PeerID); inWorld {
		s.reject("enter", in.PeerID, in.CharacterID)
		return
	}
	if _, taken := s.world.Players.PeerOfCharacter(in.CharacterID); taken {
		s.reject("enter", in.PeerID, in.CharacterID)
		return
	}
	s.queues.Spawn.Push(event.SpawnRequest{PeerID: in.PeerID, CharacterID: in.CharacterID})
}

func (s *LifecycleSystem) exit(in event.ExitGameIntent) {
	sess, ok := s.sessions.Get(in.PeerID)
	if !ok {
		s.reject(in.Reason.String(), in.PeerID, in.CharacterID)
		return
	}

	if sess.State != packet.StateInWorld {
		// Logging out from the select screen has nothing to despawn.
		if in.Reason == event.ExitLeftGame && sess.State.Authenticated() {
			s.sessions.Unbind(in.PeerID)
			s.log.Info("logged out", zap.Uint64("peer", in.PeerID), zap.String("account", sess.Account.Name))
			return
		}
		s.reject(in.Reason.String(), in.PeerID, in.CharacterID)
		return
	}

	e, ok := s.world.Players.ByPeer(in.PeerID)
	if !ok || sess.Character.CharacterID != in.CharacterID {
		s.reject(in.Reason.String(), in.PeerID, in.CharacterID)
		return
	}
	s.queues.Despawn.Push(event.DespawnRequest{PeerID: in.PeerID, Entity: e, Reason: in.Reason})

	switch in.Reason {
	case event.ExitToSelect:
		s.sessions.ClearSelectedCharacter(in.PeerID)
	case event.ExitLeftGame:
		s.sessions.Unbind(in.PeerID)
		s.log.Info("logged out", zap.Uint64("peer", in.PeerID), zap.String("account", sess.Account.Name))
	}
}

// exitDisconnected runs after the session is already unbound, so the
// character snapshot is checked against the world instead. Peer ids are never
// reused, so an entity left behind by a mismatch is despawned anyway.
func (s *LifecycleSystem) exitDisconnected(in event.ExitGameIntent) {
	e, ok := s.world.Players.ByPeer(in.PeerID)
	if !ok {
		return
	}
	if info, ok := s.world.C.Info.Get(e); !ok || info.CharacterID != in.CharacterID {
		s.log.Warn("disconnect does not match in-world character",
			zap.Uint64("peer", in.PeerID),
			zap.Int64("char_id", in.CharacterID),
		)
	}
	s.queues.Despawn.Push(event.DespawnRequest{PeerID: in.PeerID, Entity: e, Reason: event.ExitDisconnected})
}

func (s *LifecycleSystem) reject(what string, peer uint64, charID int64) {
	s.log.Debug("lifecycle intent rejected",
		zap.String("intent", what),
		zap.Uint64("peer", peer),
		zap.Int64("char_id", charID),
	)
}
