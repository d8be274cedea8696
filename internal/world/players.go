package world

import (
	"slices"

	"github.com/gridrealm/server/internal/core/ecs"
)

// PlayerRegistry maps connected peers to their in-world entity.
// Tick goroutine only.
type PlayerRegistry struct {
	byPeer map[uint64]ecs.EntityID
	byChar map[int64]uint64
}

func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{
		byPeer: make(map[uint64]ecs.EntityID),
		byChar: make(map[int64]uint64),
	}
}

func (r *PlayerRegistry) Add(peer uint64, characterID int64, e ecs.EntityID) {
	r.byPeer[peer] = e
	r.byChar[characterID] = peer
}

// Remove unregisters peer and returns its entity.
func (r *PlayerRegistry) Remove(peer uint64) (ecs.EntityID, bool) {
	e, ok := r.byPeer[peer]
	if !ok {
		return 0, false
	}
	delete(r.byPeer, peer)
	for c, p := range r.byChar {
		if p == peer {
			delete(r.byChar, c)
			break
		}
	}
	return e, true
}

func (r *PlayerRegistry) ByPeer(peer uint64) (ecs.EntityID, bool) {
	e, ok := r.byPeer[peer]
	return e, ok
}

// PeerOfCharacter returns the peer playing characterID.
func (r *PlayerRegistry) PeerOfCharacter(characterID int64) (uint64, bool) {
	p, ok := r.byChar[characterID]
	return p, ok
}

// Peers returns in-world peers in ascending order.
func (r *PlayerRegistry) Peers() []uint64 {
	peers := make([]uint64, 0, len(r.byPeer))
	for p := range r.byPeer {
		peers = append(peers, p)
	}
	slices.Sort(peers)
	return peers
}

func (r *PlayerRegistry) Len() int { return len(r.byPeer) }
