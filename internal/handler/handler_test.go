package handler

import (
	"errors"
	"slices"
	"testing"

	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/event"
	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap/zaptest"
)

// fakeRequests records session requests; full makes every enqueue fail.
type fakeRequests struct {
	full       bool
	logins     []persist.LoginRequest
	creates    []persist.CreateCharacterRequest
	selections []persist.SelectCharacterRequest
}

func (f *fakeRequests) TryEnqueueLogin(req persist.LoginRequest) (string, bool) {
	if f.full {
		return "", false
	}
	f.logins = append(f.logins, req)
	return "login", true
}

func (f *fakeRequests) TryEnqueueCreateAccount(persist.CreateAccountRequest) (string, bool) {
	return "account", !f.full
}

func (f *fakeRequests) TryEnqueueCharacterList(persist.CharacterListRequest) (string, bool) {
	return "list", !f.full
}

func (f *fakeRequests) TryEnqueueCreateCharacter(req persist.CreateCharacterRequest) (string, bool) {
	if f.full {
		return "", false
	}
	f.creates = append(f.creates, req)
	return "create", true
}

func (f *fakeRequests) TryEnqueueSelectCharacter(req persist.SelectCharacterRequest) (string, bool) {
	if f.full {
		return "", false
	}
	f.selections = append(f.selections, req)
	return "select", true
}

// recordingTransport keeps every batch sent to a peer.
type recordingTransport struct {
	peers   []uint64
	batches map[uint64][][]byte
}

func newRecordingTransport(peers ...uint64) *recordingTransport {
	return &recordingTransport{peers: peers, batches: make(map[uint64][][]byte)}
}

func (t *recordingTransport) Send(peer uint64, _ net.Channel, batch []byte) error {
	t.batches[peer] = append(t.batches[peer], batch)
	return nil
}

func (t *recordingTransport) Peers() []uint64                     { return t.peers }
func (t *recordingTransport) Connected(peer uint64) bool          { return slices.Contains(t.peers, peer) }
func (t *recordingTransport) Drain(uint64, int, func([]byte)) int { return 0 }
func (t *recordingTransport) Kick(uint64)                         {}

// messages returns every message delivered to peer, in order.
func (t *recordingTransport) messages(tb testing.TB, peer uint64) [][]byte {
	tb.Helper()
	var out [][]byte
	for _, b := range t.batches[peer] {
		msgs, err := packet.SplitBatch(b)
		if err != nil {
			tb.Fatalf("split batch: %v", err)
		}
		out = append(out, msgs...)
	}
	return out
}

type fixture struct {
	deps      *Deps
	requests  *fakeRequests
	transport *recordingTransport
}

func newFixture(t *testing.T, peers ...uint64) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	rules, err := scripting.NewEngine(t.TempDir(), log)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	t.Cleanup(rules.Close)

	tr := newRecordingTransport(peers...)
	req := &fakeRequests{}
	m := data.NewOpenMap(10, 10, 32)
	return &fixture{
		deps: &Deps{
			Config:   config.Defaults(),
			Log:      log,
			World:    world.NewState(m, 0),
			Sessions: session.NewRegistry(),
			Requests: req,
			Outbox:   net.NewOutbox(tr, nil, 1024, log),
			Rules:    rules,
			Queues:   event.NewQueues(),
		},
		requests:  req,
		transport: tr,
	}
}

func reader(m packet.Message) *packet.Reader { return packet.NewReader(packet.Marshal(m)) }

func (f *fixture) spawn(peer uint64) {
	f.deps.World.SpawnPlayer(peer, persist.CharacterData{
		CharacterID: int64(peer), AccountID: int64(peer), Name: "p", X: 5, Y: 5, Speed: 40,
	})
}

func TestMoveAntiReplay(t *testing.T) {
	f := newFixture(t, 1)
	f.spawn(1)
	ws := f.deps.World
	e, _ := ws.Players.ByPeer(1)

	HandleMove(1, reader(packet.MovementRequest{SequenceID: 5, DX: 1}), f.deps)
	intent, ok := ws.C.MoveIntent.Get(e)
	if !ok || intent.SequenceID != 5 {
		t.Fatalf("first move not attached: %+v %v", intent, ok)
	}
	ws.C.MoveIntent.Remove(e)

	for _, seq := range []uint32{5, 4} {
		HandleMove(1, reader(packet.MovementRequest{SequenceID: seq, DX: 1}), f.deps)
		if ws.C.MoveIntent.Has(e) {
			t.Fatalf("replayed sequence %d attached an intent", seq)
		}
	}
	in, _ := ws.C.Input.Get(e)
	if in.LastProcessedSequenceID != 5 {
		t.Fatalf("last sequence = %d, want 5", in.LastProcessedSequenceID)
	}

	HandleMove(1, reader(packet.MovementRequest{SequenceID: 6, DY: -1}), f.deps)
	if intent, ok := ws.C.MoveIntent.Get(e); !ok || intent.SequenceID != 6 {
		t.Fatalf("fresh sequence rejected")
	}
}

func TestMoveSingleSlot(t *testing.T) {
	f := newFixture(t, 1)
	f.spawn(1)
	ws := f.deps.World
	e, _ := ws.Players.ByPeer(1)

	HandleMove(1, reader(packet.MovementRequest{SequenceID: 1, DX: 1}), f.deps)
	HandleMove(1, reader(packet.MovementRequest{SequenceID: 2, DX: -1}), f.deps)

	intent, _ := ws.C.MoveIntent.Get(e)
	if intent.SequenceID != 1 || intent.Direction.X != 1 {
		t.Fatalf("second move replaced the first: %+v", intent)
	}
	in, _ := ws.C.Input.Get(e)
	if in.LastProcessedSequenceID != 2 {
		t.Fatalf("guarded move should still consume its sequence, last = %d", in.LastProcessedSequenceID)
	}
}

func TestMoveRejectsBadDirection(t *testing.T) {
	f := newFixture(t, 1)
	f.spawn(1)
	e, _ := f.deps.World.Players.ByPeer(1)

	HandleMove(1, reader(packet.MovementRequest{SequenceID: 1, DX: 2}), f.deps)
	HandleMove(1, reader(packet.MovementRequest{SequenceID: 2}), f.deps)
	if f.deps.World.C.MoveIntent.Has(e) {
		t.Fatalf("invalid direction attached an intent")
	}
}

func TestAttackSingleSlot(t *testing.T) {
	f := newFixture(t, 1)
	f.spawn(1)
	ws := f.deps.World
	e, _ := ws.Players.ByPeer(1)

	HandleAttack(1, reader(packet.AttackRequest{DX: 1, DY: 1}), f.deps)
	HandleAttack(1, reader(packet.AttackRequest{DX: -1}), f.deps)
	a, ok := ws.C.AttackIntent.Get(e)
	if !ok || a.Direction.X != 1 || a.Direction.Y != 1 {
		t.Fatalf("attack intent = %+v, %v", a, ok)
	}
}

func TestLoginBusy(t *testing.T) {
	f := newFixture(t, 3)
	f.requests.full = true

	HandleLogin(3, reader(packet.LoginRequest{Account: "ayla", Password: "pw"}), f.deps)
	f.deps.Outbox.Flush()

	msgs := f.transport.messages(t, 3)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	var res packet.LoginResult
	if err := res.Decode(packet.NewReader(msgs[0])); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.OK || res.Message != msgServerBusy {
		t.Fatalf("result = %+v", res)
	}
}

func TestLoginQueued(t *testing.T) {
	f := newFixture(t, 3)
	HandleLogin(3, reader(packet.LoginRequest{Account: "ayla", Password: "pw"}), f.deps)
	if len(f.requests.logins) != 1 || f.requests.logins[0].Peer != 3 {
		t.Fatalf("logins = %+v", f.requests.logins)
	}
	if f.deps.Outbox.Pending() {
		t.Fatalf("queued login should not answer immediately")
	}
}

func TestCreateCharUsesSpawnAndRules(t *testing.T) {
	f := newFixture(t, 4)
	if err := f.deps.Rules.LoadString(`function character_defaults(v) return { speed = 48, dir_x = 1, dir_y = 0 } end`); err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if err := f.deps.Sessions.Bind(4, persist.Account{ID: 9, Name: "ayla"}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	HandleCreateChar(4, reader(packet.CreateCharacterRequest{Name: "Ayla", Vocation: 2, Gender: 1}), f.deps)
	if len(f.requests.creates) != 1 {
		t.Fatalf("creates = %d", len(f.requests.creates))
	}
	c := f.requests.creates[0].Character
	spawn := f.deps.World.Map.Spawn()
	if c.AccountID != 9 || c.X != spawn.X || c.Y != spawn.Y || c.Speed != 48 || c.DirX != 1 {
		t.Fatalf("character = %+v", c)
	}

	HandleCreateChar(4, reader(packet.CreateCharacterRequest{Name: "Bex", Gender: 7}), f.deps)
	if len(f.requests.creates) != 1 {
		t.Fatalf("invalid gender was enqueued")
	}
	f.deps.Outbox.Flush()
	var res packet.CreateCharacterResult
	msgs := f.transport.messages(t, 4)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if err := res.Decode(packet.NewReader(msgs[0])); err != nil || res.OK {
		t.Fatalf("result = %+v, %v", res, err)
	}
}

func TestLeftGameCarriesSelection(t *testing.T) {
	f := newFixture(t, 5)
	s := f.deps.Sessions
	if err := s.Bind(5, persist.Account{ID: 2, Name: "bex"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	s.SetSelectedCharacter(5, persist.CharacterData{CharacterID: 77, AccountID: 2})

	HandleLeftGame(5, reader(packet.LeftGameRequest{}), f.deps)

	var got []event.ExitGameIntent
	f.deps.Queues.Exit.Drain(func(i event.ExitGameIntent) { got = append(got, i) })
	if len(got) != 1 || got[0].CharacterID != 77 || got[0].Reason != event.ExitLeftGame {
		t.Fatalf("intents = %+v", got)
	}
}

func TestRegisterAllGatesByState(t *testing.T) {
	f := newFixture(t, 6)
	f.spawn(6)
	reg := packet.NewRegistry(f.deps.Log)
	RegisterAll(reg, f.deps)

	msg := packet.Marshal(packet.MovementRequest{SequenceID: 1, DX: 1})
	if err := reg.Dispatch(6, packet.StateAuthenticated, msg); !errors.Is(err, packet.ErrStateNotAllowed) {
		t.Fatalf("movement before entering the world: err = %v", err)
	}
	if err := reg.Dispatch(6, packet.StateInWorld, msg); err != nil {
		t.Fatalf("movement in world: %v", err)
	}
	e, _ := f.deps.World.Players.ByPeer(6)
	if !f.deps.World.C.MoveIntent.Has(e) {
		t.Fatalf("dispatch did not reach the movement handler")
	}
}
