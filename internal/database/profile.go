package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/primepickle/courtside/internal/models"
)

const profileColumns = `id, role, display_name, rating, games_played, created_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(&p.ID, &p.Role, &p.DisplayName, &p.Rating, &p.GamesPlayed, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureProfile inserts p unless a profile with its id exists, then returns the stored row.
func (s *Store) EnsureProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	var out *models.Profile
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO profiles (id, role, display_name, rating, games_played, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.Role, p.DisplayName, p.Rating, p.GamesPlayed, p.CreatedAt)
		if err != nil {
			return err
		}
		out, err = scanProfile(tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, p.ID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return out, nil
}

func (s *Store) GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Profile, error) {
	return loadProfiles(ctx, s.pool, ids)
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadProfiles(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID]*models.Profile, error) {
	out := make(map[uuid.UUID]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
