package event

import (
	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/core/ecs"
)

// ExitReason tells why a player left the world.
type ExitReason uint8

const (
	ExitToSelect     ExitReason = iota // back to character selection
	ExitLeftGame                       // logout
	ExitDisconnected                   // transport dropped the peer
)

func (r ExitReason) String() string {
	switch r {
	case ExitToSelect:
		return "exit_to_select"
	case ExitLeftGame:
		return "left_game"
	case ExitDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// --- Lifecycle intents (unvalidated) and requests (validated) ---

type EnterGameIntent struct {
	PeerID      uint64
	CharacterID int64
}

// ExitGameIntent carries the character the peer had selected. For
// disconnects that is a snapshot taken before the session was unbound.
type ExitGameIntent struct {
	PeerID      uint64
	CharacterID int64
	Reason      ExitReason
}

type SpawnRequest struct {
	PeerID      uint64
	CharacterID int64
}

type DespawnRequest struct {
	PeerID uint64
	Entity ecs.EntityID
	Reason ExitReason
}

// --- Replication events (consumed in the process phase) ---

type EntitySpawned struct {
	Entity ecs.EntityID
	PeerID uint64
}

type EntityDespawned struct {
	NetID  uint64
	PeerID uint64
	Reason ExitReason
}

type MovementStarted struct {
	Entity    ecs.EntityID
	PeerID    uint64
	Direction component.Vec2
	Start     component.Vec2
}

// Queues are the typed hand-off points between handlers and systems.
// Exit is an Inbox because disconnect hooks push from transport goroutines.
type Queues struct {
	Enter     *Queue[EnterGameIntent]
	Exit      *Inbox[ExitGameIntent]
	Spawn     *Queue[SpawnRequest]
	Despawn   *Queue[DespawnRequest]
	Spawned   *Queue[EntitySpawned]
	Despawned *Queue[EntityDespawned]
	Moved     *Queue[MovementStarted]
}

func NewQueues() *Queues {
	return &Queues{
		Enter:     NewQueue[EnterGameIntent](16),
		Exit:      NewInbox[ExitGameIntent](16),
		Spawn:     NewQueue[SpawnRequest](16),
		Despawn:   NewQueue[DespawnRequest](16),
		Spawned:   NewQueue[EntitySpawned](16),
		Despawned: NewQueue[EntityDespawned](16),
		Moved:     NewQueue[MovementStarted](64),
	}
}
