package session

import (
	"fmt"

	"github.com/gridrealm/server/internal/net/packet"
)

// Transition is a lifecycle event applied to a session state.
type Transition int

const (
	Login Transition = iota
	SelectCharacter
	EnterWorld
	ExitToSelect
	Logout
)

func (t Transition) String() string {
	switch t {
	case Login:
		return "login"
	case SelectCharacter:
		return "select_character"
	case EnterWorld:
		return "enter_world"
	case ExitToSelect:
		return "exit_to_select"
	case Logout:
		return "logout"
	default:
		return fmt.Sprintf("transition(%d)", int(t))
	}
}

// Next returns the state reached by applying t to s. It has no side effects.
//
//	Connected --Login--> Authenticated --SelectCharacter--> CharacterSelected
//	CharacterSelected --EnterWorld--> InWorld --ExitToSelect--> Authenticated
//	any --Logout--> Connected
func Next(s packet.SessionState, t Transition) (packet.SessionState, error) {
	switch t {
	case Login:
		if s == packet.StateConnected {
			return packet.StateAuthenticated, nil
		}
	case SelectCharacter:
		// Re-selecting from the select screen replaces the previous choice.
		if s == packet.StateAuthenticated || s == packet.StateCharacterSelected {
			return packet.StateCharacterSelected, nil
		}
	case EnterWorld:
		if s == packet.StateCharacterSelected {
			return packet.StateInWorld, nil
		}
	case ExitToSelect:
		if s == packet.StateInWorld || s == packet.StateCharacterSelected {
			return packet.StateAuthenticated, nil
		}
	case Logout:
		return packet.StateConnected, nil
	}
	return s, fmt.Errorf("%w: %s from %s", ErrBadTransition, t, s)
}
