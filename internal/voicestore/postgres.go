package voicestore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the user→voice mapping in Postgres. Unlike the flat
// file it gives atomic per-key read-modify-write via upsert.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed directory.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get returns the stored voice ID for userID.
func (s *PostgresStore) Get(ctx context.Context, userID string) (string, bool, error) {
	var voiceID string
	err := s.db.QueryRow(ctx, `
		SELECT voice_id FROM user_voices WHERE user_id = $1
	`, userID).Scan(&voiceID)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return voiceID, voiceID != "", nil
}

// Set stores voiceID under userID, overwriting any prior value.
func (s *PostgresStore) Set(ctx context.Context, userID, voiceID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_voices (user_id, voice_id, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			voice_id = EXCLUDED.voice_id,
			updated_at = NOW()
	`, userID, voiceID)
	return err
}
