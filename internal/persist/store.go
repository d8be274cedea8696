package persist

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Store is the relational contract the pipeline workers run against.
// Implementations must be safe for concurrent use.
type Store interface {
	Authenticate(ctx context.Context, account, password string) (Account, error)
	CreateAccount(ctx context.Context, account, password string) (Account, error)
	ListCharacters(ctx context.Context, accountID int64) ([]CharacterData, error)
	CreateCharacter(ctx context.Context, c CharacterData) (CharacterData, error)
	LoadCharacter(ctx context.Context, accountID, characterID int64) (CharacterData, error)
	SaveCharacters(ctx context.Context, chars []CharacterData) error
}

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	accounts   *AccountRepo
	characters *CharacterRepo
	slots      int
	autoCreate bool
	log        *zap.Logger
}

// NewPGStore builds a store over db. slots caps live characters per account;
// autoCreate registers unknown accounts on first login.
func NewPGStore(db *DB, slots int, autoCreate bool, log *zap.Logger) *PGStore {
	return &PGStore{
		accounts:   NewAccountRepo(db),
		characters: NewCharacterRepo(db),
		slots:      slots,
		autoCreate: autoCreate,
		log:        log,
	}
}

func (s *PGStore) Authenticate(ctx context.Context, account, password string) (Account, error) {
	name, err := NormalizeAccountName(account)
	if err != nil {
		return Account{}, err
	}
	row, err := s.accounts.Load(ctx, name)
	if err != nil {
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	if row == nil {
		if !s.autoCreate {
			return Account{}, ErrAccountNotFound
		}
		s.log.Info("auto-creating account", zap.String("account", name))
		return s.CreateAccount(ctx, name, password)
	}
	if !s.accounts.ValidatePassword(row.PasswordHash, password) {
		return Account{}, ErrWrongPassword
	}
	if err := s.accounts.TouchLastLogin(ctx, row.ID); err != nil {
		s.log.Warn("update last login", zap.Int64("account_id", row.ID), zap.Error(err))
	}
	return Account{ID: row.ID, Name: row.Name}, nil
}

func (s *PGStore) CreateAccount(ctx context.Context, account, password string) (Account, error) {
	name, err := NormalizeAccountName(account)
	if err != nil {
		return Account{}, err
	}
	if password == "" {
		return Account{}, ErrInvalidPassword
	}
	row, err := s.accounts.Create(ctx, name, password)
	if err != nil {
		return Account{}, err
	}
	return Account{ID: row.ID, Name: row.Name}, nil
}

func (s *PGStore) ListCharacters(ctx context.Context, accountID int64) ([]CharacterData, error) {
	return s.characters.LoadByAccount(ctx, accountID)
}

func (s *PGStore) CreateCharacter(ctx context.Context, c CharacterData) (CharacterData, error) {
	display, key, err := NormalizeCharacterName(c.Name)
	if err != nil {
		return CharacterData{}, err
	}
	n, err := s.characters.CountByAccount(ctx, c.AccountID)
	if err != nil {
		return CharacterData{}, fmt.Errorf("count characters: %w", err)
	}
	if n >= s.slots {
		return CharacterData{}, ErrSlotsFull
	}
	c.Name = display
	if err := s.characters.Create(ctx, &c, key); err != nil {
		return CharacterData{}, err
	}
	return c, nil
}

func (s *PGStore) LoadCharacter(ctx context.Context, accountID, characterID int64) (CharacterData, error) {
	return s.characters.Load(ctx, accountID, characterID)
}

func (s *PGStore) SaveCharacters(ctx context.Context, chars []CharacterData) error {
	if len(chars) == 0 {
		return nil
	}
	return s.characters.SaveAll(ctx, chars)
}
