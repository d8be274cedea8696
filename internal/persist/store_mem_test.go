package persist

import (
	"context"
	"sync"
	"sync/atomic"
)

// memStore is an in-memory Store used by the pipeline tests.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[string]Account
	chars    map[int64]CharacterData
	batches  [][]CharacterData
	saveErr  error

	block    chan struct{} // when non-nil, every operation waits on it or ctx
	active   atomic.Int32
	peak     atomic.Int32
	entered  chan struct{}
	password map[string]string

	firstSave chan struct{} // when non-nil, the first SaveCharacters waits on it
	writing   map[int64]int
	overlap   []int64 // characters written by two calls at once
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[string]Account),
		chars:    make(map[int64]CharacterData),
		password: make(map[string]string),
		entered:  make(chan struct{}, 64),
		writing:  make(map[int64]int),
	}
}

func (s *memStore) enter(ctx context.Context) error {
	n := s.active.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case s.entered <- struct{}{}:
	default:
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			s.active.Add(-1)
			return ctx.Err()
		}
	}
	return nil
}

func (s *memStore) leave() { s.active.Add(-1) }

func (s *memStore) Authenticate(ctx context.Context, account, password string) (Account, error) {
	if err := s.enter(ctx); err != nil {
		return Account{}, err
	}
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[account]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if s.password[account] != password {
		return Account{}, ErrWrongPassword
	}
	return acc, nil
}

func (s *memStore) CreateAccount(ctx context.Context, account, password string) (Account, error) {
	if err := s.enter(ctx); err != nil {
		return Account{}, err
	}
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account]; ok {
		return Account{}, ErrAccountExists
	}
	s.nextID++
	acc := Account{ID: s.nextID, Name: account}
	s.accounts[account] = acc
	s.password[account] = password
	return acc, nil
}

func (s *memStore) ListCharacters(ctx context.Context, accountID int64) ([]CharacterData, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CharacterData
	for _, c := range s.chars {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) CreateCharacter(ctx context.Context, c CharacterData) (CharacterData, error) {
	if err := s.enter(ctx); err != nil {
		return CharacterData{}, err
	}
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.CharacterID = s.nextID
	s.chars[c.CharacterID] = c
	return c, nil
}

func (s *memStore) LoadCharacter(ctx context.Context, accountID, characterID int64) (CharacterData, error) {
	if err := s.enter(ctx); err != nil {
		return CharacterData{}, err
	}
	defer s.leave()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chars[characterID]
	if !ok || c.AccountID != accountID {
		return CharacterData{}, ErrCharacterNotFound
	}
	return c, nil
}

func (s *memStore) SaveCharacters(ctx context.Context, chars []CharacterData) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	defer s.leave()

	ids := make(map[int64]bool, len(chars))
	for _, c := range chars {
		ids[c.CharacterID] = true
	}
	s.mu.Lock()
	for id := range ids {
		if s.writing[id] > 0 {
			s.overlap = append(s.overlap, id)
		}
		s.writing[id]++
	}
	gate := s.firstSave
	s.firstSave = nil
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		for id := range ids {
			s.writing[id]--
		}
		s.mu.Unlock()
	}()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]CharacterData(nil), chars...))
	if s.saveErr != nil {
		return s.saveErr
	}
	for _, c := range chars {
		s.chars[c.CharacterID] = c
	}
	return nil
}

func (s *memStore) character(id int64) (CharacterData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chars[id]
	return c, ok
}

func (s *memStore) overlaps() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.overlap...)
}

func (s *memStore) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = len(b)
	}
	return out
}
