package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edo9300/ygopen/internal/duel"
)

// ReplayRepository stores duel message logs in Postgres, one row per duel,
// with the log encoded as a JSON array of message envelopes.
type ReplayRepository struct {
	db *DB
}

// NewReplayRepository creates a replay repository.
func NewReplayRepository(db *DB) *ReplayRepository {
	return &ReplayRepository{db: db}
}

// Migrate creates the replay table if it does not exist.
func (r *ReplayRepository) Migrate(ctx context.Context) error {
	_, err := r.db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS duel_replays (
			duel_id       TEXT PRIMARY KEY,
			messages      JSONB NOT NULL,
			message_count INT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create duel_replays table: %w", err)
	}
	return nil
}

// Save upserts a duel's message log.
func (r *ReplayRepository) Save(ctx context.Context, duelID string, msgs []duel.Message) error {
	envelopes := make([]json.RawMessage, len(msgs))
	for i, msg := range msgs {
		raw, err := duel.EncodeMessage(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message %d: %w", i, err)
		}
		envelopes[i] = raw
	}
	encoded, err := json.Marshal(envelopes)
	if err != nil {
		return fmt.Errorf("failed to encode message log: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO duel_replays (duel_id, messages, message_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (duel_id) DO UPDATE
		SET messages = EXCLUDED.messages,
		    message_count = EXCLUDED.message_count,
		    updated_at = now()`,
		duelID, encoded, len(msgs))
	if err != nil {
		return fmt.Errorf("failed to save replay %s: %w", duelID, err)
	}
	return nil
}

// Load reads a duel's message log back.
func (r *ReplayRepository) Load(ctx context.Context, duelID string) ([]duel.Message, error) {
	var encoded []byte
	err := r.db.pool.QueryRow(ctx,
		`SELECT messages FROM duel_replays WHERE duel_id = $1`, duelID).Scan(&encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to load replay %s: %w", duelID, err)
	}

	var envelopes []json.RawMessage
	if err := json.Unmarshal(encoded, &envelopes); err != nil {
		return nil, fmt.Errorf("failed to decode message log %s: %w", duelID, err)
	}

	msgs := make([]duel.Message, 0, len(envelopes))
	for i, raw := range envelopes {
		msg, err := duel.DecodeMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode message %d of %s: %w", i, duelID, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ReplaySummary describes a stored replay.
type ReplaySummary struct {
	DuelID       string    `json:"duel_id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// List returns summaries of all stored replays, newest first.
func (r *ReplayRepository) List(ctx context.Context) ([]ReplaySummary, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT duel_id, message_count, created_at
		FROM duel_replays
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list replays: %w", err)
	}
	defer rows.Close()

	var summaries []ReplaySummary
	for rows.Next() {
		var s ReplaySummary
		if err := rows.Scan(&s.DuelID, &s.MessageCount, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan replay summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate replays: %w", err)
	}
	return summaries, nil
}

// Delete removes a stored replay.
func (r *ReplayRepository) Delete(ctx context.Context, duelID string) error {
	_, err := r.db.pool.Exec(ctx,
		`DELETE FROM duel_replays WHERE duel_id = $1`, duelID)
	if err != nil {
		return fmt.Errorf("failed to delete replay %s: %w", duelID, err)
	}
	return nil
}
