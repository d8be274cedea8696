package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type CharacterRepo struct {
	db *DB
}

func NewCharacterRepo(db *DB) *CharacterRepo {
	return &CharacterRepo{db: db}
}

const characterColumns = `id, account_id, name, vocation, gender, x, y, dir_x, dir_y, speed`

func scanCharacter(row pgx.Row, c *CharacterData) error {
	var vocation, gender, dirX, dirY int16
	if err := row.Scan(
		&c.CharacterID, &c.AccountID, &c.Name, &vocation, &gender,
		&c.X, &c.Y, &dirX, &dirY, &c.Speed,
	); err != nil {
		return err
	}
	c.Vocation = uint8(vocation)
	c.Gender = uint8(gender)
	c.DirX = int32(dirX)
	c.DirY = int32(dirY)
	return nil
}

func (r *CharacterRepo) LoadByAccount(ctx context.Context, accountID int64) ([]CharacterData, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+characterColumns+`
		 FROM characters
		 WHERE account_id = $1 AND NOT deleted
		 ORDER BY id`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CharacterData
	for rows.Next() {
		var c CharacterData
		if err := scanCharacter(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Load returns one live character owned by accountID.
func (r *CharacterRepo) Load(ctx context.Context, accountID, characterID int64) (CharacterData, error) {
	var c CharacterData
	err := scanCharacter(r.db.Pool.QueryRow(ctx,
		`SELECT `+characterColumns+`
		 FROM characters
		 WHERE id = $1 AND account_id = $2 AND NOT deleted`, characterID, accountID,
	), &c)
	if errors.Is(err, pgx.ErrNoRows) {
		return CharacterData{}, ErrCharacterNotFound
	}
	return c, err
}

func (r *CharacterRepo) CountByAccount(ctx context.Context, accountID int64) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM characters WHERE account_id = $1 AND NOT deleted`,
		accountID,
	).Scan(&count)
	return count, err
}

// Create inserts c and fills in its id. nameKey is the case-folded name.
func (r *CharacterRepo) Create(ctx context.Context, c *CharacterData, nameKey string) error {
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO characters (
			account_id, name, name_key, vocation, gender, x, y, dir_x, dir_y, speed
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		c.AccountID, c.Name, nameKey, int16(c.Vocation), int16(c.Gender),
		c.X, c.Y, int16(c.DirX), int16(c.DirY), c.Speed,
	).Scan(&c.CharacterID)
	if isUniqueViolation(err) {
		return ErrNameTaken
	}
	return err
}

// SaveAll writes the mutable fields of every character in one transaction.
// Any failure rolls back the whole batch.
func (r *CharacterRepo) SaveAll(ctx context.Context, chars []CharacterData) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chars {
		tag, err := tx.Exec(ctx,
			`UPDATE characters SET
				x = $1, y = $2, dir_x = $3, dir_y = $4, speed = $5, saved_at = NOW()
			WHERE id = $6 AND NOT deleted`,
			c.X, c.Y, int16(c.DirX), int16(c.DirY), c.Speed, c.CharacterID,
		)
		if err != nil {
			return fmt.Errorf("save character %d: %w", c.CharacterID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("save character %d: %w", c.CharacterID, ErrCharacterNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save tx: %w", err)
	}
	return nil
}
