package handler

import (
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"go.uber.org/zap"
)

// HandleLogin processes C_Login.
// Format: [opcode][account\0][password\0]
// Credentials are checked by a persistence worker; AccountSystem answers.
func HandleLogin(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.LoginRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed login", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	id, ok := deps.Requests.TryEnqueueLogin(persist.LoginRequest{
		Peer:     peer,
		Account:  req.Account,
		Password: req.Password,
	})
	if !ok {
		deps.Log.Warn("login rejected, persistence queue full", zap.Uint64("peer", peer))
		deps.Outbox.Send(peer, net.Reliable, packet.LoginResult{Message: msgServerBusy})
		return
	}
	deps.Log.Debug("login queued", zap.Uint64("peer", peer), zap.String("request", id))
}

// HandleCreateAccount processes C_CreateAccount.
// Format: [opcode][account\0][password\0]
func HandleCreateAccount(peer uint64, r *packet.Reader, deps *Deps) {
	var req packet.CreateAccountRequest
	if err := req.Decode(r); err != nil {
		deps.Log.Debug("malformed create account", zap.Uint64("peer", peer), zap.Error(err))
		return
	}
	id, ok := deps.Requests.TryEnqueueCreateAccount(persist.CreateAccountRequest{
		Peer:     peer,
		Account:  req.Account,
		Password: req.Password,
	})
	if !ok {
		deps.Log.Warn("account creation rejected, persistence queue full", zap.Uint64("peer", peer))
		deps.Outbox.Send(peer, net.Reliable, packet.CreateAccountResult{Message: msgServerBusy})
		return
	}
	deps.Log.Debug("account creation queued", zap.Uint64("peer", peer), zap.String("request", id))
}
