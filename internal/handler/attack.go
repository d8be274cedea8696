package handler

import (
	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleAttack processes C_Attack.
// Format: [opcode][dx int8][dy int8]
func HandleAttack(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.AttackRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed attack", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	ws := deps.World
	e, ok := ws.Players.ByPeer(peer)
	if !ok {
		return
	}
	if ws.C.AttackIntent.Has(e) || ws.C.Attack.Has(e) {
		return
	}
	dir := component.Vec2{X: int32(req.DX), Y: int32(req.DY)}
	if !dir.IsStep() {
		deps.Log.Debug("invalid attack direction",
			zap.Uint64("peer", peer), zap.Int32("dx", dir.X), zap.Int32("dy", dir.Y))
		return
	}
	ws.C.AttackIntent.Set(e, &component.AttackIntent{Direction: dir})
}
