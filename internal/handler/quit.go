package handler

import (
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleExitGame processes C_ExitGame: back to character selection.
// Format: [opcode][characterID int64]
func HandleExitGame(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.ExitGameRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed exit game", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	deps.Queues.Exit.Push(event.ExitGameIntent{
		PeerID:      peer,
		CharacterID: req.CharacterID,
		Reason:      event.ExitToSelect,
	})
}

// HandleLeftGame processes C_LeftGame: logout without closing the
// connection. It carries no payload; the selected character, if any, is
// taken from the session.
func HandleLeftGame(peer uint64, _ *packet.Reader, deps *Deps) {
	var charID int64
	if c, ok := deps.Sessions.TryGetSelectedCharacter(peer); ok {
		charID = c.CharacterID
	}
	deps.Queues.Exit.Push(event.ExitGameIntent{
		PeerID:      peer,
		CharacterID: charID,
		Reason:      event.ExitLeftGame,
	})
}
