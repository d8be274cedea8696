package handler

import (
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"go.uber.org/zap"
)

const (
	genderMale   uint8 = 0
	genderFemale uint8 = 1
)

// HandleCreateChar processes C_CreateCharacter.
// Format: [opcode][name\0][vocation][gender]
// Speed and facing come from the Lua rules; new characters start on the map
// spawn point.
func HandleCreateChar(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.CreateCharacterRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed create character", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	acc, ok := deps.Sessions.TryGetAccount(peer)
	if !ok {
		return
	}
	reject := func(msg string) {
		deps.Outbox.Send(peer, net.Reliable, packet.CreateCharacterResult{Message: msg})
	}

	if req.Gender != genderMale && req.Gender != genderFemale {
		reject("invalid gender")
		return
	}
	if _, _, err := persist.NormalizeCharacterName(req.Name); err != nil {
		reject("invalid name")
		return
	}

	defaults := deps.Rules.CharacterDefaults(req.Vocation)
	spawn := deps.World.Map.Spawn()
	c := persist.CharacterData{
		AccountID: acc.ID,
		Name:      req.Name,
		Vocation:  req.Vocation,
		Gender:    req.Gender,
		X:         spawn.X,
		Y:         spawn.Y,
		DirX:      defaults.DirX,
		DirY:      defaults.DirY,
		Speed:     defaults.Speed,
	}
	if _, ok := deps.Requests.TryEnqueueCreateCharacter(persist.CreateCharacterRequest{
		Peer:      peer,
		Character: c,
	}); !ok {
		deps.Log.Warn("character creation rejected, persistence queue full", zap.Uint64("peer", peer))
		reject(msgServerBusy)
	}
}
