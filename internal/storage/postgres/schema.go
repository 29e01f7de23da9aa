package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func schemaSQL(dimension int) string {
	return fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			timestamp DOUBLE PRECISION NOT NULL,
			description TEXT NOT NULL,
			video_id TEXT NOT NULL,
			video_filename TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			llm_summary TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_events_video_id ON events (video_id);
		CREATE INDEX IF NOT EXISTS idx_events_video_filename ON events (video_filename);
	`, dimension)
}

// EnsureSchema creates the vector extension, the events table sized to the
// embedder's dimension, and its lookup indexes.
func (r *EventRepository) EnsureSchema(ctx context.Context) error {
	return r.createSchema(ctx, r.db)
}

func (r *EventRepository) createSchema(ctx context.Context, ex execer) error {
	dim := r.embedder.Dimension()
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", dim)
	}
	if _, err := ex.ExecContext(ctx, schemaSQL(dim)); err != nil {
		return fmt.Errorf("create schema failed: %w", err)
	}
	return nil
}

// Reset drops every event and recreates an empty table. Ids start over.
func (r *EventRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS events`); err != nil {
		return fmt.Errorf("drop events failed: %w", err)
	}
	if err := r.createSchema(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	r.logger.Warn().Msg("event store reset")
	return nil
}
