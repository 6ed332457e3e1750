package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/models"
)

// CommitSettlement applies the rating changes, records m and writes l in one transaction.
func (s *Store) CommitSettlement(ctx context.Context, l *models.Lobby, m *models.Match, changes []models.RatingChange) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := updateLobbyTx(ctx, tx, l); err != nil {
			return err
		}
		for _, c := range changes {
			tag, err := tx.Exec(ctx, `
				UPDATE profiles
				SET rating = rating + $1, games_played = games_played + 1
				WHERE id = $2
			`, c.Delta, c.ProfileID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("profile %s: %w", c.ProfileID, lobby.ErrRecordNotFound)
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO matches (id, lobby_id, winner_team, score, mmr_delta, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, m.LobbyID, m.WinningTeam, m.Score, m.RatingDelta, m.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("match for lobby %s already recorded: %w", m.LobbyID, lobby.ErrVersionConflict)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to commit settlement: %w", err)
	}
	l.Version++
	return nil
}

func (s *Store) GetMatchByLobby(ctx context.Context, lobbyID uuid.UUID) (*models.Match, error) {
	var m models.Match
	err := s.pool.QueryRow(ctx, `
		SELECT id, lobby_id, winner_team, score, mmr_delta, created_at
		FROM matches
		WHERE lobby_id = $1
	`, lobbyID).Scan(&m.ID, &m.LobbyID, &m.WinningTeam, &m.Score, &m.RatingDelta, &m.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &m, nil
}
