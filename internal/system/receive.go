package system

import (
	"errors"
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/session"
	"go.uber.org/zap"
)

// ReceiveSystem drains inbound queues from all peers and dispatches them
// through the packet registry. Handlers turn them into intents.
type ReceiveSystem struct {
	transport  net.Transport
	registry   *packet.Registry
	sessions   *session.Registry
	maxPerTick int
	log        *zap.Logger
}

func NewReceiveSystem(
	transport net.Transport,
	registry *packet.Registry,
	sessions *session.Registry,
	maxPerTick int,
	log *zap.Logger,
) *ReceiveSystem {
	return &ReceiveSystem{
		transport:  transport,
		registry:   registry,
		sessions:   sessions,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *ReceiveSystem) Phase() coresys.Phase { return coresys.PhaseReceive }

func (s *ReceiveSystem) Update(_ time.Duration) {
	for _, peer := range s.transport.Peers() {
		s.transport.Drain(peer, s.maxPerTick, func(msg []byte) {
			s.dispatch(peer, msg)
		})
	}
}

func (s *ReceiveSystem) dispatch(peer uint64, msg []byte) {
	state := s.sessions.State(peer)
	err := s.registry.Dispatch(peer, state, msg)
	switch {
	case err == nil:
	case errors.Is(err, packet.ErrStateNotAllowed):
		s.log.Debug("packet dropped", zap.Uint64("peer", peer), zap.Stringer("state", state), zap.Error(err))
	default:
		s.log.Warn("packet dispatch failed", zap.Uint64("peer", peer), zap.Error(err))
	}
}
