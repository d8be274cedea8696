package persist

import "github.com/gridrealm/server/internal/core/ecs"

// Kind names one request/result lane of the pipeline.
type Kind int

const (
	KindSave Kind = iota
	KindLogin
	KindCreateAccount
	KindCharacterList
	KindCreateCharacter
	KindSelectCharacter
)

func (k Kind) String() string {
	switch k {
	case KindSave:
		return "save"
	case KindLogin:
		return "login"
	case KindCreateAccount:
		return "create_account"
	case KindCharacterList:
		return "character_list"
	case KindCreateCharacter:
		return "create_character"
	case KindSelectCharacter:
		return "select_character"
	default:
		return "unknown"
	}
}

// Every request carries an ID assigned at enqueue; its result echoes it.

type SaveRequest struct {
	ID        string
	Entity    ecs.EntityID
	Character CharacterData
	Final     bool // despawn save; the entity is gone when the result arrives
}

type SaveResult struct {
	ID          string
	Entity      ecs.EntityID
	CharacterID int64
	Final       bool
	Err         error
}

type LoginRequest struct {
	ID       string
	Peer     uint64
	Account  string
	Password string
}

type LoginResult struct {
	ID      string
	Peer    uint64
	Account Account
	Err     error
}

type CreateAccountRequest struct {
	ID       string
	Peer     uint64
	Account  string
	Password string
}

type CreateAccountResult struct {
	ID      string
	Peer    uint64
	Account Account
	Err     error
}

type CharacterListRequest struct {
	ID        string
	Peer      uint64
	AccountID int64
}

type CharacterListResult struct {
	ID         string
	Peer       uint64
	AccountID  int64
	Characters []CharacterData
	Err        error
}

type CreateCharacterRequest struct {
	ID        string
	Peer      uint64
	Character CharacterData
}

type CreateCharacterResult struct {
	ID        string
	Peer      uint64
	Character CharacterData
	Err       error
}

type SelectCharacterRequest struct {
	ID          string
	Peer        uint64
	AccountID   int64
	CharacterID int64
}

type SelectCharacterResult struct {
	ID        string
	Peer      uint64
	Character CharacterData
	Err       error
}
