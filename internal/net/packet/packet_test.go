package packet

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestReaderNormalizesStrings(t *testing.T) {
	// A decomposed e plus combining acute must arrive precomposed.
	w := NewWriterWithOpcode(C_OPCODE_LOGIN)
	w.WriteS("Jose\u0301")
	w.WriteS("pw")

	var req LoginRequest
	if err := req.Decode(NewReader(w.Bytes())); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Account != "Jos\u00e9" {
		t.Fatalf("account = %q, want NFC form", req.Account)
	}
	if req.Password != "pw" {
		t.Fatalf("password = %q", req.Password)
	}
}

func TestDecodeTruncated(t *testing.T) {
	full := Marshal(MovementRequest{SequenceID: 7, DX: 1, DY: -1})
	var m MovementRequest
	err := m.Decode(NewReader(full[:3]))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if err := m.Decode(NewReader(full)); err != nil {
		t.Fatalf("full decode: %v", err)
	}
	if m.SequenceID != 7 || m.DX != 1 || m.DY != -1 {
		t.Fatalf("decoded %+v", m)
	}
}

func TestPlayerDataLayout(t *testing.T) {
	in := PlayerData{
		NetID: 1<<32 | 5, CharacterID: 42, Name: "Ayla",
		Vocation: 2, Gender: 1, X: -3, Y: 9, DX: 0, DY: 1, Speed: 64,
	}
	b := Marshal(in)
	if b[0] != S_OPCODE_PLAYER_DATA {
		t.Fatalf("opcode = 0x%02X", b[0])
	}
	var out PlayerData
	r := NewReader(b)
	if err := out.Decode(r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	if r.Remaining() != 0 {
		t.Fatalf("%d trailing bytes", r.Remaining())
	}
}

func TestCharacterListResult(t *testing.T) {
	in := CharacterListResult{OK: true, Characters: []CharacterSummary{
		{CharacterID: 1, Name: "a", Vocation: 1},
		{CharacterID: 2, Name: "b", Gender: 1},
	}}
	var out CharacterListResult
	if err := out.Decode(NewReader(Marshal(in))); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.OK || len(out.Characters) != 2 || out.Characters[1] != in.Characters[1] {
		t.Fatalf("got %+v", out.Characters)
	}
}

func TestBatchSplit(t *testing.T) {
	var batch []byte
	batch = AppendMessage(batch, Marshal(Left{NetID: 3}))
	batch = AppendMessage(batch, Marshal(ExitGame{NetID: 4}))

	msgs, err := SplitBatch(batch)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(msgs) != 2 || msgs[0][0] != S_OPCODE_LEFT || msgs[1][0] != S_OPCODE_EXIT_GAME {
		t.Fatalf("unexpected messages: %v", msgs)
	}
	if len(batch) != EntrySize(9)*2 {
		t.Fatalf("batch len = %d", len(batch))
	}

	if _, err := SplitBatch(batch[:len(batch)-1]); !errors.Is(err, ErrBadBatch) {
		t.Fatalf("expected ErrBadBatch, got %v", err)
	}
	if _, err := SplitBatch([]byte{0, 0}); !errors.Is(err, ErrBadBatch) {
		t.Fatalf("zero-length entry accepted")
	}
}

func TestRegistryStateGate(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	var got []uint64
	reg.Register(C_OPCODE_MOVEMENT, []SessionState{StateInWorld}, func(peer uint64, r *Reader) {
		got = append(got, peer)
	})

	msg := Marshal(MovementRequest{SequenceID: 1, DX: 1})
	if err := reg.Dispatch(9, StateAuthenticated, msg); !errors.Is(err, ErrStateNotAllowed) {
		t.Fatalf("expected ErrStateNotAllowed, got %v", err)
	}
	if err := reg.Dispatch(9, StateInWorld, msg); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("handler calls = %v", got)
	}
	if err := reg.Dispatch(9, StateInWorld, []byte{0xEE}); err != nil {
		t.Fatalf("unknown opcode should be ignored, got %v", err)
	}
}

func TestRegistryRecoversPanic(t *testing.T) {
	reg := NewRegistry(zaptest.NewLogger(t))
	reg.Register(C_OPCODE_ATTACK, []SessionState{StateInWorld}, func(uint64, *Reader) {
		panic("boom")
	})
	if err := reg.Dispatch(1, StateInWorld, Marshal(AttackRequest{DX: 1})); err == nil {
		t.Fatalf("expected error from panicking handler")
	}
}

func TestSessionStateAuthenticated(t *testing.T) {
	if StateConnected.Authenticated() {
		t.Fatalf("connected must not count as authenticated")
	}
	for _, s := range []SessionState{StateAuthenticated, StateCharacterSelected, StateInWorld} {
		if !s.Authenticated() {
			t.Fatalf("%s should be authenticated", s)
		}
	}
}
