package handler

import (
	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap"
)

// msgServerBusy answers session requests rejected by a full persistence queue.
const msgServerBusy = "server busy, try again"

// SessionRequests is the part of the persistence pipeline used by handlers.
type SessionRequests interface {
	TryEnqueueLogin(req persist.LoginRequest) (string, bool)
	TryEnqueueCreateAccount(req persist.CreateAccountRequest) (string, bool)
	TryEnqueueCharacterList(req persist.CharacterListRequest) (string, bool)
	TryEnqueueCreateCharacter(req persist.CreateCharacterRequest) (string, bool)
	TryEnqueueSelectCharacter(req persist.SelectCharacterRequest) (string, bool)
}

// Deps holds shared dependencies injected into all packet handlers.
// Handlers run on the tick goroutine.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	World    *world.State
	Sessions *session.Registry
	Requests SessionRequests
	Outbox   *net.Outbox
	Rules    *scripting.Engine
	Queues   *event.Queues
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	// Unauthenticated
	reg.Register(packet.C_OPCODE_LOGIN,
		[]packet.SessionState{packet.StateConnected},
		func(peer uint64, r *packet.Reader) {
			HandleLogin(peer, r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_CREATE_ACCOUNT,
		[]packet.SessionState{packet.StateConnected},
		func(peer uint64, r *packet.Reader) {
			HandleCreateAccount(peer, r, deps)
		},
	)

	// Character select screen
	selectStates := []packet.SessionState{packet.StateAuthenticated, packet.StateCharacterSelected}

	reg.Register(packet.C_OPCODE_CHARACTER_LIST, selectStates,
		func(peer uint64, r *packet.Reader) {
			HandleCharacterList(peer, r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_CREATE_CHARACTER, selectStates,
		func(peer uint64, r *packet.Reader) {
			HandleCreateChar(peer, r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_SELECT_CHARACTER, selectStates,
		func(peer uint64, r *packet.Reader) {
			HandleSelectChar(peer, r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_ENTER_GAME,
		[]packet.SessionState{packet.StateCharacterSelected},
		func(peer uint64, r *packet.Reader) {
			HandleEnterGame(peer, r, deps)
		},
	)

	// Leaving
	reg.Register(packet.C_OPCODE_EXIT_GAME,
		[]packet.SessionState{packet.StateInWorld},
		func(peer uint64, r *packet.Reader) {
			HandleExitGame(peer, r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_LEFT_GAME,
		[]packet.SessionState{packet.StateAuthenticated, packet.StateCharacterSelected, packet.StateInWorld},
		func(peer uint64, r *packet.Reader) {
			HandleLeftGame(peer, r, deps)
		},
	)

	// In-world
	inWorldStates := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.C_OPCODE_MOVEMENT, inWorldStates,
		func(peer uint64, r *packet.Reader) {
			HandleMove(peer, r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_ATTACK, inWorldStates,
		func(peer uint64, r *packet.Reader) {
			HandleAttack(peer, r, deps)
		},
	)
}
