package persist

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridrealm/server/internal/config"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrShutdownTimeout is returned by Close when in-flight work outlived the
// shutdown budget and was abandoned.
var ErrShutdownTimeout = errors.New("persistence shutdown timed out")

// lane is one bounded request channel and its bounded result channel.
type lane[Req, Res any] struct {
	kind Kind
	in   chan Req
	out  chan Res
}

func newLane[Req, Res any](kind Kind, reqSize, resSize int) *lane[Req, Res] {
	return &lane[Req, Res]{
		kind: kind,
		in:   make(chan Req, reqSize),
		out:  make(chan Res, resSize),
	}
}

// Pipeline runs relational operations off the tick goroutine. Producers
// enqueue typed requests without blocking; workers publish correlated
// results which the tick goroutine drains with non-blocking reads. Workers
// never touch the world.
type Pipeline struct {
	store Store
	cfg   config.PersistenceConfig
	log   *zap.Logger

	saves      *lane[SaveRequest, SaveResult]
	logins     *lane[LoginRequest, LoginResult]
	accounts   *lane[CreateAccountRequest, CreateAccountResult]
	lists      *lane[CharacterListRequest, CharacterListResult]
	creates    *lane[CreateCharacterRequest, CreateCharacterResult]
	selections *lane[SelectCharacterRequest, SelectCharacterResult]

	sem      *semaphore.Weighted
	group    *errgroup.Group
	runCtx   context.Context // cancelled when Close gives up
	cancel   context.CancelFunc
	closing  chan struct{} // closed with intake; results stop waiting for readers
	inFlight atomic.Int64

	saveMu   sync.Mutex
	saving   map[int64]int // character ID -> batches in flight holding it
	saveWake chan struct{}

	mu     sync.RWMutex // guards closed against concurrent enqueue
	closed bool
}

// NewPipeline creates the lanes and starts one dispatcher goroutine per kind.
func NewPipeline(store Store, cfg config.PersistenceConfig, log *zap.Logger) *Pipeline {
	p := newPipeline(store, cfg, log)
	p.start()
	return p
}

func newPipeline(store Store, cfg config.PersistenceConfig, log *zap.Logger) *Pipeline {
	runCtx, cancel := context.WithCancel(context.Background())
	req, res := cfg.RequestQueueSize, cfg.ResultQueueSize
	return &Pipeline{
		store:      store,
		cfg:        cfg,
		log:        log,
		saves:      newLane[SaveRequest, SaveResult](KindSave, req, res),
		logins:     newLane[LoginRequest, LoginResult](KindLogin, req, res),
		accounts:   newLane[CreateAccountRequest, CreateAccountResult](KindCreateAccount, req, res),
		lists:      newLane[CharacterListRequest, CharacterListResult](KindCharacterList, req, res),
		creates:    newLane[CreateCharacterRequest, CreateCharacterResult](KindCreateCharacter, req, res),
		selections: newLane[SelectCharacterRequest, SelectCharacterResult](KindSelectCharacter, req, res),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		group:      new(errgroup.Group),
		runCtx:     runCtx,
		cancel:     cancel,
		closing:    make(chan struct{}),
		saving:     make(map[int64]int),
		saveWake:   make(chan struct{}, 1),
	}
}

func (p *Pipeline) start() {
	p.group.Go(p.runSaves)
	p.group.Go(func() error {
		serve(p, p.logins, func(ctx context.Context, r LoginRequest) LoginResult {
			acc, err := p.store.Authenticate(ctx, r.Account, r.Password)
			return LoginResult{ID: r.ID, Peer: r.Peer, Account: acc, Err: err}
		})
		return nil
	})
	p.group.Go(func() error {
		serve(p, p.accounts, func(ctx context.Context, r CreateAccountRequest) CreateAccountResult {
			acc, err := p.store.CreateAccount(ctx, r.Account, r.Password)
			return CreateAccountResult{ID: r.ID, Peer: r.Peer, Account: acc, Err: err}
		})
		return nil
	})
	p.group.Go(func() error {
		serve(p, p.lists, func(ctx context.Context, r CharacterListRequest) CharacterListResult {
			chars, err := p.store.ListCharacters(ctx, r.AccountID)
			return CharacterListResult{ID: r.ID, Peer: r.Peer, AccountID: r.AccountID, Characters: chars, Err: err}
		})
		return nil
	})
	p.group.Go(func() error {
		serve(p, p.creates, func(ctx context.Context, r CreateCharacterRequest) CreateCharacterResult {
			c, err := p.store.CreateCharacter(ctx, r.Character)
			return CreateCharacterResult{ID: r.ID, Peer: r.Peer, Character: c, Err: err}
		})
		return nil
	})
	p.group.Go(func() error {
		serve(p, p.selections, func(ctx context.Context, r SelectCharacterRequest) SelectCharacterResult {
			c, err := p.store.LoadCharacter(ctx, r.AccountID, r.CharacterID)
			return SelectCharacterResult{ID: r.ID, Peer: r.Peer, Character: c, Err: err}
		})
		return nil
	})
}

func newID() string { return ksuid.New().String() }

// tryEnqueue sends req without blocking. It reports false when the lane is
// full or the pipeline is closed.
func tryEnqueue[Req any](p *Pipeline, ch chan Req, req Req) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case ch <- req:
		return true
	default:
		return false
	}
}

// TryEnqueueSave queues a periodic save. On failure the caller keeps the
// entity dirty and retries on a later cycle.
func (p *Pipeline) TryEnqueueSave(req SaveRequest) (string, bool) {
	req.ID = newID()
	return req.ID, tryEnqueue(p, p.saves.in, req)
}

// EnqueueSaveWait queues a save, waiting for room until ctx is done. Used for
// the final save of a despawning entity.
func (p *Pipeline) EnqueueSaveWait(ctx context.Context, req SaveRequest) (string, error) {
	req.ID = newID()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return "", errors.New("persistence pipeline closed")
	}
	select {
	case p.saves.in <- req:
		return req.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Pipeline) TryEnqueueLogin(req LoginRequest) (string, bool) {
	req.ID = newID()
	return req.ID, tryEnqueue(p, p.logins.in, req)
}

func (p *Pipeline) TryEnqueueCreateAccount(req CreateAccountRequest) (string, bool) {
	req.ID = newID()
	return req.ID, tryEnqueue(p, p.accounts.in, req)
}

func (p *Pipeline) TryEnqueueCharacterList(req CharacterListRequest) (string, bool) {
	req.ID = newID()
	return req.ID, tryEnqueue(p, p.lists.in, req)
}

func (p *Pipeline) TryEnqueueCreateCharacter(req CreateCharacterRequest) (string, bool) {
	req.ID = newID()
	return req.ID, tryEnqueue(p, p.creates.in, req)
}

func (p *Pipeline) TryEnqueueSelectCharacter(req SelectCharacterRequest) (string, bool) {
	req.ID = newID()
	return req.ID, tryEnqueue(p, p.selections.in, req)
}

func (p *Pipeline) SaveResults() <-chan SaveResult                       { return p.saves.out }
func (p *Pipeline) LoginResults() <-chan LoginResult                     { return p.logins.out }
func (p *Pipeline) CreateAccountResults() <-chan CreateAccountResult     { return p.accounts.out }
func (p *Pipeline) CharacterListResults() <-chan CharacterListResult     { return p.lists.out }
func (p *Pipeline) CreateCharacterResults() <-chan CreateCharacterResult { return p.creates.out }
func (p *Pipeline) SelectCharacterResults() <-chan SelectCharacterResult { return p.selections.out }

// Drain reads at most limit results from ch without blocking (limit <= 0
// means all currently buffered).
func Drain[T any](ch <-chan T, limit int, fn func(T)) int {
	n := 0
	for limit <= 0 || n < limit {
		select {
		case v := <-ch:
			fn(v)
			n++
		default:
			return n
		}
	}
	return n
}

// serve runs one session-kind dispatcher until its request channel closes.
func serve[Req, Res any](p *Pipeline, l *lane[Req, Res], handle func(context.Context, Req) Res) {
	for req := range l.in {
		req := req
		if err := p.sem.Acquire(p.runCtx, 1); err != nil {
			p.log.Warn("request abandoned", zap.Stringer("kind", l.kind))
			continue
		}
		p.inFlight.Add(1)
		p.group.Go(func() error {
			defer p.inFlight.Add(-1)
			ctx, cancel := context.WithTimeout(p.runCtx, p.cfg.OperationTimeout)
			res := handle(ctx, req)
			cancel()
			p.sem.Release(1)
			deliver(p, l, res)
			return nil
		})
	}
}

// deliver publishes res, waiting for the tick goroutine to make room. Once
// Close has begun nobody may be reading, so a full lane drops the result.
func deliver[Req, Res any](p *Pipeline, l *lane[Req, Res], res Res) {
	select {
	case l.out <- res:
		return
	default:
	}
	select {
	case l.out <- res:
	case <-p.closing:
		p.log.Debug("result dropped, pipeline closing", zap.Stringer("kind", l.kind))
	}
}

// runSaves coalesces save requests into batches of up to BatchSize or
// whatever arrived within BatchWindow of the first one. A character never
// has two batches in flight: a request for a character that is still being
// written is held, in arrival order, until that batch has reported.
func (p *Pipeline) runSaves() error {
	var (
		intake = p.saves.in
		batch  []SaveRequest
		held   []SaveRequest
		timer  *time.Timer
		fire   <-chan time.Time
	)
	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, fire = nil, nil
		}
		if len(batch) > 0 {
			held = p.launchSaves(append(held, batch...))
			batch = nil
		}
	}

	for intake != nil || len(held) > 0 {
		select {
		case req, ok := <-intake:
			if !ok {
				intake = nil
				flush()
				continue
			}
			batch = append(batch, req)
			if len(batch) == 1 {
				timer = time.NewTimer(p.cfg.BatchWindow)
				fire = timer.C
			}
			if len(batch) >= p.cfg.BatchSize {
				flush()
			}
		case <-fire:
			timer, fire = nil, nil
			flush()
		case <-p.saveWake:
			if len(held) > 0 {
				held = p.launchSaves(held)
			}
		}
	}
	return nil
}

// launchSaves starts batches for every request in reqs whose character is
// idle and returns the rest, order preserved. Once one request for a
// character is held, later ones for it are held too.
func (p *Pipeline) launchSaves(reqs []SaveRequest) []SaveRequest {
	var (
		held    []SaveRequest
		chunk   []SaveRequest
		blocked = make(map[int64]bool)
	)
	for _, r := range reqs {
		id := r.Character.CharacterID
		if blocked[id] || p.saveBusy(id) {
			blocked[id] = true
			held = append(held, r)
			continue
		}
		chunk = append(chunk, r)
		if len(chunk) >= p.cfg.BatchSize {
			p.saveBatch(chunk)
			chunk = nil
		}
	}
	if len(chunk) > 0 {
		p.saveBatch(chunk)
	}
	return held
}

func (p *Pipeline) saveBusy(characterID int64) bool {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.saving[characterID] > 0
}

func (p *Pipeline) markSaving(batch []SaveRequest, delta int) {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	for _, r := range batch {
		id := r.Character.CharacterID
		p.saving[id] += delta
		if p.saving[id] <= 0 {
			delete(p.saving, id)
		}
	}
}

// saveDone releases the characters of batch and wakes runSaves to retry
// held requests.
func (p *Pipeline) saveDone(batch []SaveRequest) {
	p.markSaving(batch, -1)
	select {
	case p.saveWake <- struct{}{}:
	default:
	}
}

// saveBatch writes batch in one transaction. A failure fails every request
// in the batch.
func (p *Pipeline) saveBatch(batch []SaveRequest) {
	report := func(err error) {
		for _, r := range batch {
			deliver(p, p.saves, SaveResult{
				ID:          r.ID,
				Entity:      r.Entity,
				CharacterID: r.Character.CharacterID,
				Final:       r.Final,
				Err:         err,
			})
		}
	}
	p.markSaving(batch, 1)
	if err := p.sem.Acquire(p.runCtx, 1); err != nil {
		p.log.Warn("save batch abandoned", zap.Int("size", len(batch)))
		report(err)
		p.saveDone(batch)
		return
	}
	p.inFlight.Add(1)
	p.group.Go(func() error {
		defer p.inFlight.Add(-1)

		chars := make([]CharacterData, len(batch))
		for i, r := range batch {
			chars[i] = r.Character
		}
		ctx, cancel := context.WithTimeout(p.runCtx, p.cfg.OperationTimeout)
		err := p.store.SaveCharacters(ctx, chars)
		cancel()
		p.sem.Release(1)
		if err != nil {
			p.log.Warn("save batch failed", zap.Int("size", len(batch)), zap.Error(err))
		} else {
			p.log.Debug("save batch committed", zap.Int("size", len(batch)))
		}
		report(err)
		p.saveDone(batch)
		return nil
	})
}

// Close stops intake and waits up to timeout for queued and in-flight work.
// Results nobody has room for are dropped from here on. Work still running
// after the timeout is cancelled and logged.
func (p *Pipeline) Close(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.saves.in)
	close(p.logins.in)
	close(p.accounts.in)
	close(p.lists.in)
	close(p.creates.in)
	close(p.selections.in)
	close(p.closing)
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		p.cancel()
		p.log.Info("persistence pipeline drained")
		return err
	case <-timer.C:
		p.log.Error("persistence shutdown timed out, abandoning operations",
			zap.Int64("in_flight", p.inFlight.Load()),
			zap.Duration("timeout", timeout),
		)
		p.cancel()
		return ErrShutdownTimeout
	}
}
