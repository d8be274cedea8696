package handler

import (
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"go.uber.org/zap"
)

// HandleCharacterList processes C_CharacterList (no payload).
func HandleCharacterList(peer uint64, _ *packet.Reader, deps *Deps) {
	acc, ok := deps.Sessions.TryGetAccount(peer)
	if !ok {
		return
	}
	if _, ok := deps.Requests.TryEnqueueCharacterList(persist.CharacterListRequest{
		Peer:      peer,
		AccountID: acc.ID,
	}); !ok {
		deps.Log.Warn("character list rejected, persistence queue full", zap.Uint64("peer", peer))
		deps.Outbox.Send(peer, net.Reliable, packet.CharacterListResult{Message: msgServerBusy})
	}
}

// SummaryOf converts a character record into its wire summary.
func SummaryOf(c persist.CharacterData) packet.CharacterSummary {
	return packet.CharacterSummary{
		CharacterID: c.CharacterID,
		Name:        c.Name,
		Vocation:    c.Vocation,
		Gender:      c.Gender,
	}
}
