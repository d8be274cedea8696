package handler

import (
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"go.uber.org/zap"
)

// HandleSelectChar processes C_SelectCharacter.
// Format: [opcode][characterID int64]
// The character is loaded and its ownership checked by a persistence worker.
func HandleSelectChar(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.SelectCharacterRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed select character", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	acc, ok := deps.Sessions.TryGetAccount(peer)
	if !ok {
		return
	}
	if _, ok := deps.Requests.TryEnqueueSelectCharacter(persist.SelectCharacterRequest{
		Peer:        peer,
		AccountID:   acc.ID,
		CharacterID: req.CharacterID,
	}); !ok {
		deps.Log.Warn("character selection rejected, persistence queue full", zap.Uint64("peer", peer))
		deps.Outbox.Send(peer, net.Reliable, packet.SelectCharacterResult{
			Message:     msgServerBusy,
			CharacterID: req.CharacterID,
		})
	}
}
