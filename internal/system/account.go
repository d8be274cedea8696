package system

import (
	"errors"
	"time"

	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/handler"
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/session"
	"go.uber.org/zap"
)

// SessionResults is the result side of the session request kinds.
type SessionResults interface {
	LoginResults() <-chan persist.LoginResult
	CreateAccountResults() <-chan persist.CreateAccountResult
	CharacterListResults() <-chan persist.CharacterListResult
	CreateCharacterResults() <-chan persist.CreateCharacterResult
	SelectCharacterResults() <-chan persist.SelectCharacterResult
}

// AccountSystem answers login, account and character requests once their
// persistence results arrive. Results for peers that have disconnected or
// changed account in the meantime are dropped.
type AccountSystem struct {
	sessions  *session.Registry
	transport net.Transport
	results   SessionResults
	outbox    *net.Outbox
	log       *zap.Logger
}

func NewAccountSystem(
	sessions *session.Registry,
	transport net.Transport,
	results SessionResults,
	outbox *net.Outbox,
	log *zap.Logger,
) *AccountSystem {
	return &AccountSystem{
		sessions:  sessions,
		transport: transport,
		results:   results,
		outbox:    outbox,
		log:       log,
	}
}

func (s *AccountSystem) Phase() coresys.Phase { return coresys.PhaseProcess }

func (s *AccountSystem) Update(_ time.Duration) {
	persist.Drain(s.results.LoginResults(), 0, s.login)
	persist.Drain(s.results.CreateAccountResults(), 0, s.createAccount)
	persist.Drain(s.results.CharacterListResults(), 0, s.characterList)
	persist.Drain(s.results.CreateCharacterResults(), 0, s.createCharacter)
	persist.Drain(s.results.SelectCharacterResults(), 0, s.selectCharacter)
}

func (s *AccountSystem) login(res persist.LoginResult) {
	if !s.transport.Connected(res.Peer) {
		return
	}
	if res.Err != nil {
		s.log.Info("login failed", zap.Uint64("peer", res.Peer), zap.Error(res.Err))
		s.outbox.Send(res.Peer, net.Reliable, packet.LoginResult{Message: s.describe(res.Err)})
		return
	}
	if err := s.sessions.Bind(res.Peer, res.Account); err != nil {
		s.log.Info("login refused", zap.Uint64("peer", res.Peer), zap.String("account", res.Account.Name), zap.Error(err))
		s.outbox.Send(res.Peer, net.Reliable, packet.LoginResult{Message: s.describe(err)})
		return
	}
	// A disconnect racing the bind has already run its unbind.
	if !s.transport.Connected(res.Peer) {
		s.sessions.Unbind(res.Peer)
		return
	}
	s.log.Info("login",
		zap.Uint64("peer", res.Peer),
		zap.String("account", res.Account.Name),
		zap.Int64("account_id", res.Account.ID),
	)
	s.outbox.Send(res.Peer, net.Reliable, packet.LoginResult{OK: true})
}

func (s *AccountSystem) createAccount(res persist.CreateAccountResult) {
	if !s.transport.Connected(res.Peer) {
		return
	}
	if res.Err != nil {
		s.outbox.Send(res.Peer, net.Reliable, packet.CreateAccountResult{Message: s.describe(res.Err)})
		return
	}
	s.log.Info("account created", zap.String("account", res.Account.Name), zap.Int64("account_id", res.Account.ID))
	s.outbox.Send(res.Peer, net.Reliable, packet.CreateAccountResult{OK: true})
}

func (s *AccountSystem) characterList(res persist.CharacterListResult) {
	if !s.owns(res.Peer, res.AccountID) {
		return
	}
	if res.Err != nil {
		s.outbox.Send(res.Peer, net.Reliable, packet.CharacterListResult{Message: s.describe(res.Err)})
		return
	}
	msg := packet.CharacterListResult{
		OK:         true,
		Characters: make([]packet.CharacterSummary, 0, len(res.Characters)),
	}
	for _, c := range res.Characters {
		msg.Characters = append(msg.Characters, handler.SummaryOf(c))
	}
	s.outbox.Send(res.Peer, net.Reliable, msg)
}

func (s *AccountSystem) createCharacter(res persist.CreateCharacterResult) {
	if !s.owns(res.Peer, res.Character.AccountID) {
		return
	}
	if res.Err != nil {
		s.outbox.Send(res.Peer, net.Reliable, packet.CreateCharacterResult{Message: s.describe(res.Err)})
		return
	}
	s.log.Info("character created",
		zap.Int64("account_id", res.Character.AccountID),
		zap.Int64("char_id", res.Character.CharacterID),
		zap.String("name", res.Character.Name),
	)
	s.outbox.Send(res.Peer, net.Reliable, packet.CreateCharacterResult{
		OK:        true,
		Character: handler.SummaryOf(res.Character),
	})
}

func (s *AccountSystem) selectCharacter(res persist.SelectCharacterResult) {
	if !s.transport.Connected(res.Peer) {
		return
	}
	reply := packet.SelectCharacterResult{CharacterID: res.Character.CharacterID}
	switch {
	case res.Err != nil:
		reply.Message = s.describe(res.Err)
	case !s.sessions.SetSelectedCharacter(res.Peer, res.Character):
		reply.Message = "character cannot be selected now"
	default:
		reply.OK = true
	}
	s.outbox.Send(res.Peer, net.Reliable, reply)
}

// owns reports whether peer is still connected and bound to accountID.
func (s *AccountSystem) owns(peer uint64, accountID int64) bool {
	if !s.transport.Connected(peer) {
		return false
	}
	acc, ok := s.sessions.TryGetAccount(peer)
	return ok && acc.ID == accountID
}

// describe maps a request error to the message shown to the client.
// Unexpected errors are logged and reported generically.
func (s *AccountSystem) describe(err error) string {
	switch {
	case errors.Is(err, persist.ErrAccountNotFound), errors.Is(err, persist.ErrWrongPassword):
		return "invalid account or password"
	case errors.Is(err, persist.ErrAccountExists):
		return "account already exists"
	case errors.Is(err, persist.ErrInvalidName):
		return "invalid name"
	case errors.Is(err, persist.ErrInvalidPassword):
		return "invalid password"
	case errors.Is(err, persist.ErrNameTaken):
		return "name already taken"
	case errors.Is(err, persist.ErrSlotsFull):
		return "no free character slot"
	case errors.Is(err, persist.ErrCharacterNotFound):
		return "character not found"
	case errors.Is(err, session.ErrAlreadyBound):
		return "account already online"
	case errors.Is(err, session.ErrPeerHasAccount):
		return "already logged in"
	default:
		s.log.Error("session request failed", zap.Error(err))
		return "internal error"
	}
}
