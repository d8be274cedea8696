package persist

import "errors"

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrWrongPassword     = errors.New("wrong password")
	ErrAccountExists     = errors.New("account already exists")
	ErrNameTaken         = errors.New("character name taken")
	ErrCharacterNotFound = errors.New("character not found")
	ErrSlotsFull         = errors.New("no free character slot")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidPassword   = errors.New("invalid password")
)

// Account is the authenticated identity bound to a session.
type Account struct {
	ID   int64
	Name string
}

// CharacterData is the save/load record of one character. It is a value
// snapshot; workers never see live world state.
type CharacterData struct {
	CharacterID int64
	AccountID   int64
	Name        string
	Vocation    uint8
	Gender      uint8
	X           int32
	Y           int32
	DirX        int32
	DirY        int32
	Speed       float64
}
