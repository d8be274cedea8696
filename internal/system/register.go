package system

import (
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap"
)

// Deps are the shared objects the tick systems are built from.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	World     *world.State
	Sessions  *session.Registry
	Transport net.Transport
	Packets   *packet.Registry
	Outbox    *net.Outbox
	Rules     *scripting.Engine
	Queues    *event.Queues
	Saves     SaveQueue
	Results   SessionResults
}

// RegisterAll registers every system in tick order. Within a phase the
// registration order below is the execution order.
func RegisterAll(r *coresys.Runner, d Deps) {
	cfg := d.Config

	// Receive
	r.Register(NewReceiveSystem(d.Transport, d.Packets, d.Sessions, cfg.Network.MaxPacketsPerTick, d.Log))

	// Validate
	r.Register(NewLifecycleSystem(d.World, d.Sessions, d.Queues, d.Log))
	r.Register(NewSpawnSystem(d.World, d.Sessions, d.Queues, d.Log))
	r.Register(NewDespawnSystem(d.World, d.Saves, cfg.Persistence.FinalSaveWait, d.Queues, d.Log))
	r.Register(NewMovementValidationSystem(d.World, d.Queues, d.Log))
	r.Register(NewMovementProgressSystem(d.World))
	r.Register(NewAttackValidationSystem(d.World, d.Rules, cfg.World.AttackDuration))
	r.Register(NewAttackProgressSystem(d.World))

	// Process
	r.Register(NewReplicationSystem(d.World, d.Outbox, d.Queues))
	r.Register(NewSaveSystem(d.World, d.Sessions, d.Saves, cfg.Persistence, cfg.Tick.SaveInterval, d.Log))
	r.Register(NewAccountSystem(d.Sessions, d.Transport, d.Results, d.Outbox, d.Log))

	// Send
	r.Register(NewOutputSystem(d.Outbox))
	r.Register(NewCleanupSystem(d.World))
}
