package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/models"
)

const lobbyColumns = `id, organizer_id, token, status, created_at, team_a_captain_id, team_b_captain_id, point_goal, version`

func scanLobby(row pgx.Row) (*models.Lobby, error) {
	l := models.Lobby{Members: []models.Member{}}
	err := row.Scan(
		&l.ID,
		&l.OrganizerID,
		&l.Token,
		&l.Status,
		&l.CreatedAt,
		&l.TeamACaptainID,
		&l.TeamBCaptainID,
		&l.PointGoal,
		&l.Version,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertLobby creates a new lobby row together with any initial members.
func (s *Store) InsertLobby(ctx context.Context, l *models.Lobby) error {
	q := `
	INSERT INTO lobbies (id, organizer_id, token, status, created_at,
	                     team_a_captain_id, team_b_captain_id, point_goal, version)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			l.ID,
			l.OrganizerID,
			l.Token,
			l.Status,
			l.CreatedAt,
			l.TeamACaptainID,
			l.TeamBCaptainID,
			l.PointGoal,
			l.Version,
		)
		if err != nil {
			return err
		}
		return upsertMembers(ctx, tx, l)
	})
	if err != nil {
		return fmt.Errorf("failed to insert lobby: %w", err)
	}
	return nil
}

// GetLobby fetches a lobby and its members from one snapshot.
func (s *Store) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	var l *models.Lobby
	err := s.readTx(ctx, func(tx pgx.Tx) error {
		var err error
		l, err = scanLobby(tx.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE id = $1`, id))
		if err != nil {
			return mapNoRows(err)
		}
		return loadMembers(ctx, tx, []*models.Lobby{l})
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) GetLobbyByToken(ctx context.Context, token string) (*models.Lobby, error) {
	var l *models.Lobby
	err := s.readTx(ctx, func(tx pgx.Tx) error {
		var err error
		l, err = scanLobby(tx.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE token = $1`, token))
		if err != nil {
			return mapNoRows(err)
		}
		return loadMembers(ctx, tx, []*models.Lobby{l})
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetLobbySnapshot reads a lobby, its members and their profiles in one snapshot.
func (s *Store) GetLobbySnapshot(ctx context.Context, id uuid.UUID) (*lobby.Snapshot, error) {
	var snap *lobby.Snapshot
	err := s.readTx(ctx, func(tx pgx.Tx) error {
		l, err := scanLobby(tx.QueryRow(ctx, `SELECT `+lobbyColumns+` FROM lobbies WHERE id = $1`, id))
		if err != nil {
			return mapNoRows(err)
		}
		snaps, err := snapshots(ctx, tx, []*models.Lobby{l})
		if err != nil {
			return err
		}
		snap = snaps[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) ListLobbiesByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]*lobby.Snapshot, error) {
	return s.listLobbies(ctx, `
		SELECT `+lobbyColumns+`
		FROM lobbies
		WHERE organizer_id = $1
		ORDER BY created_at DESC, id DESC
	`, organizerID)
}

func (s *Store) ListLobbiesByMember(ctx context.Context, profileID uuid.UUID) ([]*lobby.Snapshot, error) {
	return s.listLobbies(ctx, `
		SELECT `+lobbyColumns+`
		FROM lobbies
		WHERE id IN (SELECT lobby_id FROM lobby_members WHERE profile_id = $1)
		ORDER BY created_at DESC, id DESC
	`, profileID)
}

func (s *Store) listLobbies(ctx context.Context, q string, arg any) ([]*lobby.Snapshot, error) {
	var out []*lobby.Snapshot
	err := s.readTx(ctx, func(tx pgx.Tx) error {
		lobbies := []*models.Lobby{}
		rows, err := tx.Query(ctx, q, arg)
		if err != nil {
			return err
		}
		for rows.Next() {
			l, err := scanLobby(rows)
			if err != nil {
				rows.Close()
				return err
			}
			lobbies = append(lobbies, l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		out, err = snapshots(ctx, tx, lobbies)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list lobbies: %w", err)
	}
	return out, nil
}

// snapshots loads members and member profiles for lobbies inside tx.
func snapshots(ctx context.Context, tx pgx.Tx, lobbies []*models.Lobby) ([]*lobby.Snapshot, error) {
	if err := loadMembers(ctx, tx, lobbies); err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	for _, l := range lobbies {
		for _, m := range l.Members {
			ids = append(ids, m.ProfileID)
		}
	}
	profiles, err := loadProfiles(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*lobby.Snapshot, 0, len(lobbies))
	for _, l := range lobbies {
		snap := &lobby.Snapshot{Lobby: l, Profiles: make(map[uuid.UUID]*models.Profile, len(l.Members))}
		for _, m := range l.Members {
			if p, ok := profiles[m.ProfileID]; ok {
				snap.Profiles[m.ProfileID] = p
			}
		}
		out = append(out, snap)
	}
	return out, nil
}

// loadMembers fills Members of every lobby in join order with a single query.
func loadMembers(ctx context.Context, tx pgx.Tx, lobbies []*models.Lobby) error {
	if len(lobbies) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Lobby, len(lobbies))
	ids := make([]uuid.UUID, 0, len(lobbies))
	for _, l := range lobbies {
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}

	rows, err := tx.Query(ctx, `
		SELECT lobby_id, profile_id, position, joined_at, is_ready
		FROM lobby_members
		WHERE lobby_id = ANY($1::uuid[])
		ORDER BY lobby_id, position
	`, uuidStrings(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lobbyID uuid.UUID
			m       models.Member
		)
		if err := rows.Scan(&lobbyID, &m.ProfileID, &m.Position, &m.JoinedAt, &m.Ready); err != nil {
			return err
		}
		if l, ok := byID[lobbyID]; ok {
			l.Members = append(l.Members, m)
		}
	}
	return rows.Err()
}

// UpdateLobby writes l if the stored version still matches, then bumps l.Version.
func (s *Store) UpdateLobby(ctx context.Context, l *models.Lobby) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return updateLobbyTx(ctx, tx, l)
	})
	if err != nil {
		return err
	}
	l.Version++
	return nil
}

// updateLobbyTx performs the compare-and-swap write of l inside tx. It does not touch
// l.Version; callers bump it once the transaction commits.
func updateLobbyTx(ctx context.Context, tx pgx.Tx, l *models.Lobby) error {
	tag, err := tx.Exec(ctx, `
		UPDATE lobbies
		SET status = $3,
		    team_a_captain_id = $4,
		    team_b_captain_id = $5,
		    point_goal = $6,
		    version = version + 1
		WHERE id = $1 AND version = $2
	`, l.ID, l.Version, l.Status, l.TeamACaptainID, l.TeamBCaptainID, l.PointGoal)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lobbies WHERE id = $1)`, l.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return lobby.ErrRecordNotFound
		}
		return lobby.ErrVersionConflict
	}
	return upsertMembers(ctx, tx, l)
}

// upsertMembers inserts new memberships and refreshes ready flags of existing ones.
// A clash on (lobby_id, position) means another writer took the slot first.
func upsertMembers(ctx context.Context, tx pgx.Tx, l *models.Lobby) error {
	for _, m := range l.Members {
		_, err := tx.Exec(ctx, `
			INSERT INTO lobby_members (lobby_id, profile_id, position, joined_at, is_ready)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (lobby_id, profile_id) DO UPDATE SET is_ready = EXCLUDED.is_ready
		`, l.ID, m.ProfileID, m.Position, m.JoinedAt, m.Ready)
		if isUniqueViolation(err) {
			return fmt.Errorf("position %d taken: %w", m.Position, lobby.ErrVersionConflict)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
