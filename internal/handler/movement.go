package handler

import (
	"github.com/gridrealm/server/internal/component"
	"github.com/gridrealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleMove processes C_Movement.
// Format: [opcode][sequenceID uint32][dx int8][dy int8]
// The sequence id is consumed before any other check, so a replayed packet
// is dropped even when it would also fail validation. Walkability is checked
// later by MovementValidationSystem.
func HandleMove(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.MovementRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed movement", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	ws := deps.World
	e, ok := ws.Players.ByPeer(peer)
	if !ok {
		return
	}
	input, ok := ws.C.Input.Get(e)
	if !ok {
		return
	}
	if !input.Accept(req.SequenceID) {
		deps.Log.Debug("stale movement sequence",
			zap.Uint64("peer", peer),
			zap.Uint32("seq", req.SequenceID),
			zap.Uint32("last", input.LastProcessedSequenceID),
		)
		return
	}

	// One move at a time.
	if ws.C.MoveIntent.Has(e) || ws.C.Movement.Has(e) {
		return
	}

	dir := component.Vec2{X: int32(req.DX), Y: int32(req.DY)}
	if !dir.IsStep() {
		deps.Log.Debug("invalid movement direction",
			zap.Uint64("peer", peer), zap.Int32("dx", dir.X), zap.Int32("dy", dir.Y))
		return
	}
	ws.C.MoveIntent.Set(e, &component.MoveIntent{
		Direction:  dir,
		SequenceID: req.SequenceID,
	})
}
