package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrStateNotAllowed is returned by Dispatch when the opcode is registered
// but the peer's lifecycle state does not permit it.
var ErrStateNotAllowed = errors.New("packet: opcode not allowed in state")

// HandlerFunc handles one decoded-on-demand message from peer.
type HandlerFunc func(peer uint64, r *Reader)

type handlerEntry struct {
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps opcodes to handlers with state-based access control.
type Registry struct {
	handlers map[byte]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[byte]*handlerEntry),
		log:      log,
	}
}

// Register maps an opcode to a handler, restricted to the given session states.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[opcode] = &handlerEntry{
		fn:            fn,
		allowedStates: allowed,
	}
}

// Registered reports whether opcode has a handler.
func (reg *Registry) Registered(opcode byte) bool {
	_, ok := reg.handlers[opcode]
	return ok
}

// Dispatch finds the handler for the opcode in data[0], validates the session
// state, and calls the handler. Unknown opcodes are ignored.
func (reg *Registry) Dispatch(peer uint64, state SessionState, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty packet")
	}
	opcode := data[0]

	entry, ok := reg.handlers[opcode]
	if !ok {
		reg.log.Debug("unknown opcode",
			zap.Uint64("peer", peer),
			zap.Uint8("opcode", opcode),
			zap.Stringer("state", state),
		)
		return nil
	}

	if !entry.allowedStates[state] {
		return fmt.Errorf("%w: opcode 0x%02X in %s", ErrStateNotAllowed, opcode, state)
	}

	return reg.safeCall(entry.fn, peer, NewReader(data), opcode)
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot take down the tick loop.
func (reg *Registry) safeCall(fn HandlerFunc, peer uint64, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Uint64("peer", peer),
				zap.Uint8("opcode", opcode),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for opcode 0x%02X: %v", opcode, rec)
		}
	}()
	fn(peer, r)
	return nil
}
