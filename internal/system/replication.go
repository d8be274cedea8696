package system

import (
	"time"

	"github.com/gridrealm/server/internal/core/ecs"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/world"
)

// ReplicationSystem turns spawn, despawn and movement events into outbound
// messages. Broadcasts reach in-world peers only.
type ReplicationSystem struct {
	world  *world.State
	outbox *net.Outbox
	queues *event.Queues

	spawned []event.EntitySpawned
	fresh   map[uint64]bool
}

func NewReplicationSystem(ws *world.State, outbox *net.Outbox, queues *event.Queues) *ReplicationSystem {
	return &ReplicationSystem{
		world:  ws,
		outbox: outbox,
		queues: queues,
		fresh:  make(map[uint64]bool),
	}
}

func (s *ReplicationSystem) Phase() coresys.Phase { return coresys.PhaseProcess }

func (s *ReplicationSystem) Update(_ time.Duration) {
	s.replicateSpawns()
	s.queues.Despawned.Drain(s.replicateDespawn)
	s.queues.Moved.Drain(s.replicateMove)
}

// replicateSpawns broadcasts each new player to everyone in the world and
// sends the new peer one PlayerData per player already there. Players
// spawned in the same tick learn about each other from the broadcasts.
func (s *ReplicationSystem) replicateSpawns() {
	s.spawned = s.spawned[:0]
	s.queues.Spawned.Drain(func(ev event.EntitySpawned) {
		if s.live(ev.PeerID, ev.Entity) {
			s.spawned = append(s.spawned, ev)
		}
	})
	if len(s.spawned) == 0 {
		return
	}
	clear(s.fresh)
	for _, ev := range s.spawned {
		s.fresh[ev.PeerID] = true
	}

	for _, ev := range s.spawned {
		pd, ok := s.playerData(ev.Entity)
		if !ok {
			continue
		}
		s.outbox.Broadcast(net.Reliable, pd)

		for _, peer := range s.world.Players.Peers() {
			if s.fresh[peer] {
				continue
			}
			e, _ := s.world.Players.ByPeer(peer)
			if other, ok := s.playerData(e); ok {
				s.outbox.Send(ev.PeerID, net.Reliable, other)
			}
		}
	}
}

func (s *ReplicationSystem) replicateDespawn(ev event.EntityDespawned) {
	if ev.Reason == event.ExitToSelect {
		msg := packet.ExitGame{NetID: ev.NetID}
		s.outbox.Broadcast(net.Reliable, msg)
		// Acknowledged to the leaving client as well.
		s.outbox.Send(ev.PeerID, net.Reliable, msg)
		return
	}
	s.outbox.Broadcast(net.Reliable, packet.Left{NetID: ev.NetID})
}

func (s *ReplicationSystem) replicateMove(ev event.MovementStarted) {
	if !s.live(ev.PeerID, ev.Entity) {
		return
	}
	s.outbox.BroadcastExcept(ev.PeerID, net.Reliable, packet.MovementStart{
		NetID: uint64(ev.Entity),
		DX:    int8(ev.Direction.X),
		DY:    int8(ev.Direction.Y),
		X:     ev.Start.X,
		Y:     ev.Start.Y,
	})
}

// live reports whether e is still the in-world entity of peer.
func (s *ReplicationSystem) live(peer uint64, e ecs.EntityID) bool {
	cur, ok := s.world.Players.ByPeer(peer)
	return ok && cur == e
}

func (s *ReplicationSystem) playerData(e ecs.EntityID) (packet.PlayerData, bool) {
	ws := s.world
	info, ok := ws.C.Info.Get(e)
	if !ok {
		return packet.PlayerData{}, false
	}
	pos, ok := ws.C.Position.Get(e)
	if !ok {
		return packet.PlayerData{}, false
	}
	pd := packet.PlayerData{
		NetID:       uint64(e),
		CharacterID: info.CharacterID,
		Name:        info.Name,
		Vocation:    info.Vocation,
		Gender:      info.Gender,
		X:           pos.X,
		Y:           pos.Y,
	}
	if d, ok := ws.C.Direction.Get(e); ok {
		pd.DX, pd.DY = int8(d.DX), int8(d.DY)
	}
	if sp, ok := ws.C.Speed.Get(e); ok {
		pd.Speed = float32(sp.PixelsPerSecond)
	}
	return pd, true
}
