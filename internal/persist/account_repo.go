package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

type AccountRow struct {
	ID           int64
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Load returns the account with the given normalized name, or nil when none
// exists.
func (r *AccountRepo) Load(ctx context.Context, name string) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, password_hash, created_at, last_login
		 FROM accounts WHERE name = $1`, name,
	).Scan(&row.ID, &row.Name, &row.PasswordHash, &row.CreatedAt, &row.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Create hashes the password and inserts a new account. A duplicate name
// yields ErrAccountExists.
func (r *AccountRepo) Create(ctx context.Context, name, rawPassword string) (*AccountRow, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	row := &AccountRow{Name: name, PasswordHash: string(hash)}
	err = r.db.Pool.QueryRow(ctx,
		`INSERT INTO accounts (name, password_hash) VALUES ($1, $2)
		 RETURNING id, created_at`,
		row.Name, row.PasswordHash,
	).Scan(&row.ID, &row.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrAccountExists
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (r *AccountRepo) ValidatePassword(hash string, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}

func (r *AccountRepo) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET last_login = NOW() WHERE id = $1`, id,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
