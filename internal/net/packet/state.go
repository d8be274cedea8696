package packet

import "fmt"

// SessionState is the lifecycle phase of a connected peer. Handlers are gated
// on it by the Registry.
type SessionState int

const (
	StateConnected         SessionState = iota // transport up, no account bound
	StateAuthenticated                         // account bound, at character select
	StateCharacterSelected                     // character chosen, not yet spawned
	StateInWorld                               // entity spawned
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateAuthenticated:
		return "Authenticated"
	case StateCharacterSelected:
		return "CharacterSelected"
	case StateInWorld:
		return "InWorld"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Authenticated reports whether an account is bound in this state.
func (s SessionState) Authenticated() bool {
	return s >= StateAuthenticated && s <= StateInWorld
}
