package handler

import (
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleEnterGame processes C_EnterGame.
// Format: [opcode][characterID int64]
// LifecycleSystem validates the intent against the session.
func HandleEnterGame(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.EnterGameRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed enter game", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	deps.Queues.Enter.Push(event.EnterGameIntent{
		PeerID:      peer,
		CharacterID: req.CharacterID,
	})
}
