package system

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/gridrealm/server/internal/config"
	"github.com/gridrealm/server/internal/core/ecs"
	"github.com/gridrealm/server/internal/core/event"
	coresys "github.com/gridrealm/server/internal/core/system"
	"github.com/gridrealm/server/internal/data"
	"github.com/gridrealm/server/internal/handler"
	"github.com/gridrealm/server/internal/net"
	"github.com/gridrealm/server/internal/net/packet"
	"github.com/gridrealm/server/internal/persist"
	"github.com/gridrealm/server/internal/scripting"
	"github.com/gridrealm/server/internal/session"
	"github.com/gridrealm/server/internal/world"
	"go.uber.org/zap/zaptest"
)

// fakeTransport feeds scripted inbound messages and records outbound batches.
type fakeTransport struct {
	peers   []uint64
	inbound map[uint64][][]byte
	sent    map[uint64][][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(map[uint64][][]byte),
		sent:    make(map[uint64][][]byte),
	}
}

func (f *fakeTransport) connect(peer uint64) {
	if f.Connected(peer) {
		return
	}
	f.peers = append(f.peers, peer)
	slices.Sort(f.peers)
}

func (f *fakeTransport) Send(peer uint64, _ net.Channel, batch []byte) error {
	if !f.Connected(peer) {
		return net.ErrUnknownPeer
	}
	f.sent[peer] = append(f.sent[peer], batch)
	return nil
}

func (f *fakeTransport) Peers() []uint64            { return slices.Clone(f.peers) }
func (f *fakeTransport) Connected(peer uint64) bool { return slices.Contains(f.peers, peer) }

func (f *fakeTransport) Drain(peer uint64, limit int, fn func([]byte)) int {
	n := 0
	for len(f.inbound[peer]) > 0 && (limit <= 0 || n < limit) {
		msg := f.inbound[peer][0]
		f.inbound[peer] = f.inbound[peer][1:]
		fn(msg)
		n++
	}
	return n
}

func (f *fakeTransport) Kick(peer uint64) {
	f.peers = slices.DeleteFunc(f.peers, func(p uint64) bool { return p == peer })
}

// fakePersistence answers session requests synchronously and holds saves
// until complete is called.
type fakePersistence struct {
	capacity  int // save queue size; 0 is unbounded
	nextID    int
	pending   []persist.SaveRequest
	committed []persist.SaveRequest

	passwords  map[string]string
	accounts   map[string]persist.Account
	characters map[int64]persist.CharacterData

	saveResults chan persist.SaveResult
	logins      chan persist.LoginResult
	accountsOut chan persist.CreateAccountResult
	lists       chan persist.CharacterListResult
	creates     chan persist.CreateCharacterResult
	selections  chan persist.SelectCharacterResult
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		passwords:   make(map[string]string),
		accounts:    make(map[string]persist.Account),
		characters:  make(map[int64]persist.CharacterData),
		saveResults: make(chan persist.SaveResult, 64),
		logins:      make(chan persist.LoginResult, 64),
		accountsOut: make(chan persist.CreateAccountResult, 64),
		lists:       make(chan persist.CharacterListResult, 64),
		creates:     make(chan persist.CreateCharacterResult, 64),
		selections:  make(chan persist.SelectCharacterResult, 64),
	}
}

func (f *fakePersistence) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakePersistence) addCharacter(accountID int64, account string, c persist.CharacterData) {
	f.accounts[account] = persist.Account{ID: accountID, Name: account}
	f.passwords[account] = "secret"
	c.AccountID = accountID
	f.characters[c.CharacterID] = c
}

func (f *fakePersistence) TryEnqueueSave(req persist.SaveRequest) (string, bool) {
	if f.capacity > 0 && len(f.pending) >= f.capacity {
		return "", false
	}
	req.ID = f.id("save")
	f.pending = append(f.pending, req)
	return req.ID, true
}

func (f *fakePersistence) EnqueueSaveWait(ctx context.Context, req persist.SaveRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	req.ID = f.id("save")
	f.pending = append(f.pending, req)
	return req.ID, nil
}

func (f *fakePersistence) SaveResults() <-chan persist.SaveResult { return f.saveResults }

// complete finishes every pending save with err.
func (f *fakePersistence) complete(err error) {
	for _, req := range f.pending {
		if err == nil {
			f.committed = append(f.committed, req)
		}
		f.saveResults <- persist.SaveResult{
			ID:          req.ID,
			Entity:      req.Entity,
			CharacterID: req.Character.CharacterID,
			Final:       req.Final,
			Err:         err,
		}
	}
	f.pending = nil
}

func (f *fakePersistence) TryEnqueueLogin(req persist.LoginRequest) (string, bool) {
	res := persist.LoginResult{ID: f.id("login"), Peer: req.Peer}
	acc, ok := f.accounts[req.Account]
	switch {
	case !ok:
		res.Err = persist.ErrAccountNotFound
	case f.passwords[req.Account] != req.Password:
		res.Err = persist.ErrWrongPassword
	default:
		res.Account = acc
	}
	f.logins <- res
	return res.ID, true
}

func (f *fakePersistence) TryEnqueueCreateAccount(req persist.CreateAccountRequest) (string, bool) {
	res := persist.CreateAccountResult{ID: f.id("account"), Peer: req.Peer}
	if _, ok := f.accounts[req.Account]; ok {
		res.Err = persist.ErrAccountExists
	} else {
		res.Account = persist.Account{ID: int64(len(f.accounts) + 100), Name: req.Account}
		f.accounts[req.Account] = res.Account
		f.passwords[req.Account] = req.Password
	}
	f.accountsOut <- res
	return res.ID, true
}

func (f *fakePersistence) TryEnqueueCharacterList(req persist.CharacterListRequest) (string, bool) {
	res := persist.CharacterListResult{ID: f.id("list"), Peer: req.Peer, AccountID: req.AccountID}
	for _, c := range f.characters {
		if c.AccountID == req.AccountID {
			res.Characters = append(res.Characters, c)
		}
	}
	f.lists <- res
	return res.ID, true
}

func (f *fakePersistence) TryEnqueueCreateCharacter(req persist.CreateCharacterRequest) (string, bool) {
	res := persist.CreateCharacterResult{ID: f.id("create"), Peer: req.Peer, Character: req.Character}
	res.Character.CharacterID = int64(len(f.characters) + 1000)
	f.characters[res.Character.CharacterID] = res.Character
	f.creates <- res
	return res.ID, true
}

func (f *fakePersistence) TryEnqueueSelectCharacter(req persist.SelectCharacterRequest) (string, bool) {
	res := persist.SelectCharacterResult{ID: f.id("select"), Peer: req.Peer}
	c, ok := f.characters[req.CharacterID]
	if !ok || c.AccountID != req.AccountID {
		res.Err = persist.ErrCharacterNotFound
		res.Character.CharacterID = req.CharacterID
	} else {
		res.Character = c
	}
	f.selections <- res
	return res.ID, true
}

func (f *fakePersistence) LoginResults() <-chan persist.LoginResult                     { return f.logins }
func (f *fakePersistence) CreateAccountResults() <-chan persist.CreateAccountResult     { return f.accountsOut }
func (f *fakePersistence) CharacterListResults() <-chan persist.CharacterListResult     { return f.lists }
func (f *fakePersistence) CreateCharacterResults() <-chan persist.CreateCharacterResult { return f.creates }
func (f *fakePersistence) SelectCharacterResults() <-chan persist.SelectCharacterResult { return f.selections }

// harness runs the full system set against fakes with a fixed dt.
type harness struct {
	t      *testing.T
	dt     time.Duration
	deps   Deps
	runner *coresys.Runner
	tr     *fakeTransport
	db     *fakePersistence
}

// newHarness builds a 10x10 open map with 32px tiles and the tile (4,5)
// blocked.
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := config.Defaults()
	cfg.Tick.SaveInterval = time.Second

	m := data.NewOpenMap(10, 10, 32)
	m.SetBlocked(4, 5, true)
	ws := world.NewState(m, 0)

	rules, err := scripting.NewEngine(t.TempDir(), log)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	t.Cleanup(rules.Close)

	tr := newFakeTransport()
	db := newFakePersistence()
	sessions := session.NewRegistry()
	queues := event.NewQueues()
	outbox := net.NewOutbox(tr, ws.Players.Peers, cfg.Network.MaxFrameSize, log)
	packets := packet.NewRegistry(log)
	handler.RegisterAll(packets, &handler.Deps{
		Config:   cfg,
		Log:      log,
		World:    ws,
		Sessions: sessions,
		Requests: db,
		Outbox:   outbox,
		Rules:    rules,
		Queues:   queues,
	})

	deps := Deps{
		Config:    cfg,
		Log:       log,
		World:     ws,
		Sessions:  sessions,
		Transport: tr,
		Packets:   packets,
		Outbox:    outbox,
		Rules:     rules,
		Queues:    queues,
		Saves:     db,
		Results:   db,
	}
	runner := coresys.NewRunner(log)
	RegisterAll(runner, deps)

	return &harness{
		t:      t,
		dt:     100 * time.Millisecond,
		deps:   deps,
		runner: runner,
		tr:     tr,
		db:     db,
	}
}

func (h *harness) send(peer uint64, m packet.Message) {
	h.tr.inbound[peer] = append(h.tr.inbound[peer], packet.Marshal(m))
}

func (h *harness) tick() { h.runner.Tick(h.dt) }

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick()
	}
}

// messages returns the messages delivered to peer since the last reset.
func (h *harness) messages(peer uint64) [][]byte {
	h.t.Helper()
	var out [][]byte
	for _, b := range h.tr.sent[peer] {
		msgs, err := packet.SplitBatch(b)
		if err != nil {
			h.t.Fatalf("split batch: %v", err)
		}
		out = append(out, msgs...)
	}
	return out
}

// ofOpcode returns the messages of peer with opcode op.
func (h *harness) ofOpcode(peer uint64, op byte) [][]byte {
	var out [][]byte
	for _, m := range h.messages(peer) {
		if m[0] == op {
			out = append(out, m)
		}
	}
	return out
}

func (h *harness) resetSent() { clear(h.tr.sent) }

// login connects peer and authenticates it as account.
func (h *harness) login(peer uint64, account string) {
	h.t.Helper()
	h.tr.connect(peer)
	h.send(peer, packet.LoginRequest{Account: account, Password: "secret"})
	h.tick()
	if st := h.deps.Sessions.State(peer); st != packet.StateAuthenticated {
		h.t.Fatalf("peer %d state after login = %v", peer, st)
	}
}

// selectCharacter logs peer in and selects character c of accountID.
func (h *harness) selectCharacter(peer uint64, accountID int64, c persist.CharacterData) {
	h.t.Helper()
	account := fmt.Sprintf("acct%d", accountID)
	h.db.addCharacter(accountID, account, c)
	h.login(peer, account)

	h.send(peer, packet.SelectCharacterRequest{CharacterID: c.CharacterID})
	h.tick()
	if st := h.deps.Sessions.State(peer); st != packet.StateCharacterSelected {
		h.t.Fatalf("peer %d state after select = %v", peer, st)
	}
}

// enterGame sends EnterGame for the selected character and runs one tick.
func (h *harness) enterGame(peer uint64, characterID int64) ecs.EntityID {
	h.t.Helper()
	h.send(peer, packet.EnterGameRequest{CharacterID: characterID})
	h.tick()
	e, ok := h.deps.World.Players.ByPeer(peer)
	if !ok {
		h.t.Fatalf("peer %d did not enter the world", peer)
	}
	return e
}

// enter logs peer in, selects character c and enters the world.
func (h *harness) enter(peer uint64, accountID int64, c persist.CharacterData) ecs.EntityID {
	h.t.Helper()
	h.selectCharacter(peer, accountID, c)
	return h.enterGame(peer, c.CharacterID)
}

func decodePlayerData(t *testing.T, msg []byte) packet.PlayerData {
	t.Helper()
	var pd packet.PlayerData
	if err := pd.Decode(packet.NewReader(msg)); err != nil {
		t.Fatalf("decode player data: %v", err)
	}
	return pd
}
