package packet

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned by Decode when a message is shorter than its
// fields.
var ErrTruncated = errors.New("packet: truncated message")

// Message is any encodable protocol message.
type Message interface {
	Opcode() byte
	Encode(w *Writer)
}

// Marshal encodes m into a freshly allocated buffer.
func Marshal(m Message) []byte {
	w := NewWriter()
	m.Encode(w)
	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out
}

func finish(r *Reader, op byte) error {
	if r.Overflow() {
		return fmt.Errorf("%w: opcode 0x%02X", ErrTruncated, op)
	}
	return nil
}

func writeBool(w *Writer, v bool) {
	if v {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
}

// ---------------------------------------------------------------------------
// Client → server
// ---------------------------------------------------------------------------

type LoginRequest struct {
	Account  string
	Password string
}

func (LoginRequest) Opcode() byte { return C_OPCODE_LOGIN }

func (m LoginRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_LOGIN)
	w.WriteS(m.Account)
	w.WriteS(m.Password)
}

func (m *LoginRequest) Decode(r *Reader) error {
	m.Account = r.ReadS()
	m.Password = r.ReadS()
	return finish(r, C_OPCODE_LOGIN)
}

type CreateAccountRequest struct {
	Account  string
	Password string
}

func (CreateAccountRequest) Opcode() byte { return C_OPCODE_CREATE_ACCOUNT }

func (m CreateAccountRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_CREATE_ACCOUNT)
	w.WriteS(m.Account)
	w.WriteS(m.Password)
}

func (m *CreateAccountRequest) Decode(r *Reader) error {
	m.Account = r.ReadS()
	m.Password = r.ReadS()
	return finish(r, C_OPCODE_CREATE_ACCOUNT)
}

type CharacterListRequest struct{}

func (CharacterListRequest) Opcode() byte          { return C_OPCODE_CHARACTER_LIST }
func (CharacterListRequest) Encode(w *Writer)      { w.WriteC(C_OPCODE_CHARACTER_LIST) }
func (*CharacterListRequest) Decode(*Reader) error { return nil }

type CreateCharacterRequest struct {
	Name     string
	Vocation uint8
	Gender   uint8
}

func (CreateCharacterRequest) Opcode() byte { return C_OPCODE_CREATE_CHARACTER }

func (m CreateCharacterRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_CREATE_CHARACTER)
	w.WriteS(m.Name)
	w.WriteC(m.Vocation)
	w.WriteC(m.Gender)
}

func (m *CreateCharacterRequest) Decode(r *Reader) error {
	m.Name = r.ReadS()
	m.Vocation = r.ReadC()
	m.Gender = r.ReadC()
	return finish(r, C_OPCODE_CREATE_CHARACTER)
}

type SelectCharacterRequest struct {
	CharacterID int64
}

func (SelectCharacterRequest) Opcode() byte { return C_OPCODE_SELECT_CHARACTER }

func (m SelectCharacterRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_SELECT_CHARACTER)
	w.WriteQ(m.CharacterID)
}

func (m *SelectCharacterRequest) Decode(r *Reader) error {
	m.CharacterID = r.ReadQ()
	return finish(r, C_OPCODE_SELECT_CHARACTER)
}

type EnterGameRequest struct {
	CharacterID int64
}

func (EnterGameRequest) Opcode() byte { return C_OPCODE_ENTER_GAME }

func (m EnterGameRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_ENTER_GAME)
	w.WriteQ(m.CharacterID)
}

func (m *EnterGameRequest) Decode(r *Reader) error {
	m.CharacterID = r.ReadQ()
	return finish(r, C_OPCODE_ENTER_GAME)
}

type ExitGameRequest struct {
	CharacterID int64
}

func (ExitGameRequest) Opcode() byte { return C_OPCODE_EXIT_GAME }

func (m ExitGameRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_EXIT_GAME)
	w.WriteQ(m.CharacterID)
}

func (m *ExitGameRequest) Decode(r *Reader) error {
	m.CharacterID = r.ReadQ()
	return finish(r, C_OPCODE_EXIT_GAME)
}

type LeftGameRequest struct{}

func (LeftGameRequest) Opcode() byte          { return C_OPCODE_LEFT_GAME }
func (LeftGameRequest) Encode(w *Writer)      { w.WriteC(C_OPCODE_LEFT_GAME) }
func (*LeftGameRequest) Decode(*Reader) error { return nil }

// MovementRequest asks to step one tile in (DX, DY). SequenceID must grow
// strictly per peer; older or repeated ids are dropped.
type MovementRequest struct {
	SequenceID uint32
	DX         int8
	DY         int8
}

func (MovementRequest) Opcode() byte { return C_OPCODE_MOVEMENT }

func (m MovementRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_MOVEMENT)
	w.WriteDU(m.SequenceID)
	w.WriteSC(m.DX)
	w.WriteSC(m.DY)
}

func (m *MovementRequest) Decode(r *Reader) error {
	m.SequenceID = r.ReadDU()
	m.DX = r.ReadSC()
	m.DY = r.ReadSC()
	return finish(r, C_OPCODE_MOVEMENT)
}

type AttackRequest struct {
	DX int8
	DY int8
}

func (AttackRequest) Opcode() byte { return C_OPCODE_ATTACK }

func (m AttackRequest) Encode(w *Writer) {
	w.WriteC(C_OPCODE_ATTACK)
	w.WriteSC(m.DX)
	w.WriteSC(m.DY)
}

func (m *AttackRequest) Decode(r *Reader) error {
	m.DX = r.ReadSC()
	m.DY = r.ReadSC()
	return finish(r, C_OPCODE_ATTACK)
}

// ---------------------------------------------------------------------------
// Server → client
// ---------------------------------------------------------------------------

type LoginResult struct {
	OK      bool
	Message string
}

func (LoginResult) Opcode() byte { return S_OPCODE_LOGIN_RESULT }

func (m LoginResult) Encode(w *Writer) {
	w.WriteC(S_OPCODE_LOGIN_RESULT)
	writeBool(w, m.OK)
	w.WriteS(m.Message)
}

func (m *LoginResult) Decode(r *Reader) error {
	m.OK = r.ReadC() != 0
	m.Message = r.ReadS()
	return finish(r, S_OPCODE_LOGIN_RESULT)
}

type CreateAccountResult struct {
	OK      bool
	Message string
}

func (CreateAccountResult) Opcode() byte { return S_OPCODE_CREATE_ACCOUNT_RESULT }

func (m CreateAccountResult) Encode(w *Writer) {
	w.WriteC(S_OPCODE_CREATE_ACCOUNT_RESULT)
	writeBool(w, m.OK)
	w.WriteS(m.Message)
}

func (m *CreateAccountResult) Decode(r *Reader) error {
	m.OK = r.ReadC() != 0
	m.Message = r.ReadS()
	return finish(r, S_OPCODE_CREATE_ACCOUNT_RESULT)
}

// CharacterSummary is one row of the character select screen.
type CharacterSummary struct {
	CharacterID int64
	Name        string
	Vocation    uint8
	Gender      uint8
}

func (c CharacterSummary) encode(w *Writer) {
	w.WriteQ(c.CharacterID)
	w.WriteS(c.Name)
	w.WriteC(c.Vocation)
	w.WriteC(c.Gender)
}

func (c *CharacterSummary) decode(r *Reader) {
	c.CharacterID = r.ReadQ()
	c.Name = r.ReadS()
	c.Vocation = r.ReadC()
	c.Gender = r.ReadC()
}

type CharacterListResult struct {
	OK         bool
	Message    string
	Characters []CharacterSummary
}

func (CharacterListResult) Opcode() byte { return S_OPCODE_CHARACTER_LIST_RESULT }

func (m CharacterListResult) Encode(w *Writer) {
	w.WriteC(S_OPCODE_CHARACTER_LIST_RESULT)
	writeBool(w, m.OK)
	w.WriteS(m.Message)
	w.WriteC(byte(len(m.Characters)))
	for _, c := range m.Characters {
		c.encode(w)
	}
}

func (m *CharacterListResult) Decode(r *Reader) error {
	m.OK = r.ReadC() != 0
	m.Message = r.ReadS()
	n := int(r.ReadC())
	m.Characters = make([]CharacterSummary, 0, n)
	for i := 0; i < n && !r.Overflow(); i++ {
		var c CharacterSummary
		c.decode(r)
		m.Characters = append(m.Characters, c)
	}
	return finish(r, S_OPCODE_CHARACTER_LIST_RESULT)
}

type CreateCharacterResult struct {
	OK        bool
	Message   string
	Character CharacterSummary
}

func (CreateCharacterResult) Opcode() byte { return S_OPCODE_CREATE_CHARACTER_RESULT }

func (m CreateCharacterResult) Encode(w *Writer) {
	w.WriteC(S_OPCODE_CREATE_CHARACTER_RESULT)
	writeBool(w, m.OK)
	w.WriteS(m.Message)
	m.Character.encode(w)
}

func (m *CreateCharacterResult) Decode(r *Reader) error {
	m.OK = r.ReadC() != 0
	m.Message = r.ReadS()
	m.Character.decode(r)
	return finish(r, S_OPCODE_CREATE_CHARACTER_RESULT)
}

type SelectCharacterResult struct {
	OK          bool
	Message     string
	CharacterID int64
}

func (SelectCharacterResult) Opcode() byte { return S_OPCODE_SELECT_CHARACTER_RESULT }

func (m SelectCharacterResult) Encode(w *Writer) {
	w.WriteC(S_OPCODE_SELECT_CHARACTER_RESULT)
	writeBool(w, m.OK)
	w.WriteS(m.Message)
	w.WriteQ(m.CharacterID)
}

func (m *SelectCharacterResult) Decode(r *Reader) error {
	m.OK = r.ReadC() != 0
	m.Message = r.ReadS()
	m.CharacterID = r.ReadQ()
	return finish(r, S_OPCODE_SELECT_CHARACTER_RESULT)
}

// PlayerData describes a spawned player to other clients. NetID is the
// entity id and stays valid until the matching Left or ExitGame.
type PlayerData struct {
	NetID       uint64
	CharacterID int64
	Name        string
	Vocation    uint8
	Gender      uint8
	X           int32
	Y           int32
	DX          int8
	DY          int8
	Speed       float32
}

func (PlayerData) Opcode() byte { return S_OPCODE_PLAYER_DATA }

func (m PlayerData) Encode(w *Writer) {
	w.WriteC(S_OPCODE_PLAYER_DATA)
	w.WriteQ(int64(m.NetID))
	w.WriteQ(m.CharacterID)
	w.WriteS(m.Name)
	w.WriteC(m.Vocation)
	w.WriteC(m.Gender)
	w.WriteD(m.X)
	w.WriteD(m.Y)
	w.WriteSC(m.DX)
	w.WriteSC(m.DY)
	w.WriteF(m.Speed)
}

func (m *PlayerData) Decode(r *Reader) error {
	m.NetID = uint64(r.ReadQ())
	m.CharacterID = r.ReadQ()
	m.Name = r.ReadS()
	m.Vocation = r.ReadC()
	m.Gender = r.ReadC()
	m.X = r.ReadD()
	m.Y = r.ReadD()
	m.DX = r.ReadSC()
	m.DY = r.ReadSC()
	m.Speed = r.ReadF()
	return finish(r, S_OPCODE_PLAYER_DATA)
}

// MovementStart tells observers that NetID began a step from (X, Y).
type MovementStart struct {
	NetID uint64
	DX    int8
	DY    int8
	X     int32
	Y     int32
}

func (MovementStart) Opcode() byte { return S_OPCODE_MOVEMENT_START }

func (m MovementStart) Encode(w *Writer) {
	w.WriteC(S_OPCODE_MOVEMENT_START)
	w.WriteQ(int64(m.NetID))
	w.WriteSC(m.DX)
	w.WriteSC(m.DY)
	w.WriteD(m.X)
	w.WriteD(m.Y)
}

func (m *MovementStart) Decode(r *Reader) error {
	m.NetID = uint64(r.ReadQ())
	m.DX = r.ReadSC()
	m.DY = r.ReadSC()
	m.X = r.ReadD()
	m.Y = r.ReadD()
	return finish(r, S_OPCODE_MOVEMENT_START)
}

type Left struct {
	NetID uint64
}

func (Left) Opcode() byte { return S_OPCODE_LEFT }

func (m Left) Encode(w *Writer) {
	w.WriteC(S_OPCODE_LEFT)
	w.WriteQ(int64(m.NetID))
}

func (m *Left) Decode(r *Reader) error {
	m.NetID = uint64(r.ReadQ())
	return finish(r, S_OPCODE_LEFT)
}

type ExitGame struct {
	NetID uint64
}

func (ExitGame) Opcode() byte { return S_OPCODE_EXIT_GAME }

func (m ExitGame) Encode(w *Writer) {
	w.WriteC(S_OPCODE_EXIT_GAME)
	w.WriteQ(int64(m.NetID))
}

func (m *ExitGame) Decode(r *Reader) error {
	m.NetID = uint64(r.ReadQ())
	return finish(r, S_OPCODE_EXIT_GAME)
}
