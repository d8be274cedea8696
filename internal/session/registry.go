package session

import (
	"errors"
	"sync"

	"github.com/gridrealm/server/internal/core/ecs"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
)

var (
	ErrBadTransition  = errors.New("session: illegal transition")
	ErrAlreadyBound   = errors.New("session: account already bound to another peer")
	ErrPeerHasAccount = errors.New("session: peer already bound")
)

// Session is the per-peer binding snapshot.
type Session struct {
	Peer      uint64
	State     packet.SessionState
	Account   persist.Account
	Character persist.CharacterData // valid from CharacterSelected on
	Entity    ecs.EntityID          // valid in InWorld
}

// Registry tracks which account and character each peer is bound to. It is
// written by the tick goroutine and by transport goroutines on disconnect.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[uint64]*Session
	byAccount map[int64]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[uint64]*Session),
		byAccount: make(map[int64]uint64),
	}
}

// Bind attaches account to peer, creating the session on first use. An
// account may be bound to one peer at a time and a peer to one account.
func (r *Registry) Bind(peer uint64, account persist.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peer]
	if !ok {
		s = &Session{Peer: peer, State: packet.StateConnected}
	}
	if owner, ok := r.byAccount[account.ID]; ok && owner != peer {
		return ErrAlreadyBound
	}
	next, err := Next(s.State, Login)
	if err != nil {
		return ErrPeerHasAccount
	}
	s.State = next
	s.Account = account
	r.sessions[peer] = s
	r.byAccount[account.ID] = peer
	return nil
}

// Unbind removes the account, selection and state of peer in one step and
// returns what was bound. Disconnects always go through here.
func (r *Registry) Unbind(peer uint64) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peer]
	if !ok {
		return Session{}, false
	}
	prev := *s
	delete(r.sessions, peer)
	if s.State.Authenticated() && r.byAccount[s.Account.ID] == peer {
		delete(r.byAccount, s.Account.ID)
	}
	return prev, true
}

// SetSelectedCharacter records the chosen character. The peer must be
// authenticated and the character must belong to its account.
func (r *Registry) SetSelectedCharacter(peer uint64, c persist.CharacterData) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peer]
	if !ok || c.AccountID != s.Account.ID {
		return false
	}
	next, err := Next(s.State, SelectCharacter)
	if err != nil {
		return false
	}
	s.State = next
	s.Character = c
	return true
}

// ClearSelectedCharacter returns the peer to the select screen.
func (r *Registry) ClearSelectedCharacter(peer uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peer]
	if !ok {
		return false
	}
	next, err := Next(s.State, ExitToSelect)
	if err != nil {
		return false
	}
	s.State = next
	s.Character = persist.CharacterData{}
	s.Entity = 0
	return true
}

// SetInWorld marks the selected character as spawned as entity.
func (r *Registry) SetInWorld(peer uint64, entity ecs.EntityID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[peer]
	if !ok {
		return false
	}
	next, err := Next(s.State, EnterWorld)
	if err != nil {
		return false
	}
	s.State = next
	s.Entity = entity
	return true
}

// UpdateCharacter refreshes the cached character snapshot, e.g. after a
// save, without changing state.
func (r *Registry) UpdateCharacter(peer uint64, c persist.CharacterData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[peer]; ok && s.Character.CharacterID == c.CharacterID {
		s.Character = c
	}
}

func (r *Registry) TryGetAccount(peer uint64) (persist.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[peer]
	if !ok || !s.State.Authenticated() {
		return persist.Account{}, false
	}
	return s.Account, true
}

func (r *Registry) TryGetSelectedCharacter(peer uint64) (persist.CharacterData, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[peer]
	if !ok || s.State < packet.StateCharacterSelected {
		return persist.CharacterData{}, false
	}
	return s.Character, true
}

// State returns the lifecycle state of peer; unknown peers are Connected.
func (r *Registry) State(peer uint64) packet.SessionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[peer]; ok {
		return s.State
	}
	return packet.StateConnected
}

// Get returns a copy of the session of peer.
func (r *Registry) Get(peer uint64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[peer]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
