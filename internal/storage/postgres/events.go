package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/embeddings"
	"jamesfarrell.me/vidextract/internal/storage/models"
)

// EventsSavedChannel is notified with the ids of every committed batch.
const EventsSavedChannel = "events_saved"

var (
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrVideoIDMismatch   = errors.New("video id does not match filename")
)

type EventRepository struct {
	db       *sql.DB
	embedder embeddings.Embedder
	logger   zerolog.Logger
}

func NewEventRepository(db *sql.DB, embedder embeddings.Embedder, logger zerolog.Logger) *EventRepository {
	return &EventRepository{
		db:       db,
		embedder: embedder,
		logger:   logger.With().Str("component", "event_store").Logger(),
	}
}

// Save embeds the description and inserts a single event.
func (r *EventRepository) Save(ctx context.Context, timestamp float64, description, videoID, videoFilename string, summary *string) (int64, error) {
	if want := models.VideoIDFromFilename(videoFilename); videoID != want {
		return 0, fmt.Errorf("%w: got %q, want %q", ErrVideoIDMismatch, videoID, want)
	}

	vec, err := r.embed(ctx, description)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, insertEventSQL,
		timestamp,
		description,
		videoID,
		videoFilename,
		vec,
		summary,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("event insert failed: %w", err)
	}

	r.logger.Debug().Int64("id", id).Str("video_filename", videoFilename).Msg("event saved")
	return id, nil
}

type pendingEvent struct {
	index       int
	timestamp   float64
	description string
	summary     *string
	embedding   pgvector.Vector
}

// SaveBatch persists the valid moments of one selector response. Invalid
// moments are skipped and reported; an embedding or database failure aborts
// the whole batch and leaves no rows behind.
func (r *EventRepository) SaveBatch(ctx context.Context, moments []models.Moment, videoFilename string) (*models.BatchReport, error) {
	videoID := models.VideoIDFromFilename(videoFilename)
	report := &models.BatchReport{Items: make([]models.ItemOutcome, len(moments))}

	var pending []pendingEvent
	for i, m := range moments {
		report.Items[i].Index = i

		v, err := validateMoment(m)
		if err != nil {
			report.Items[i].Skipped = true
			report.Items[i].Reason = err.Error()
			r.logger.Warn().Int("moment", i).Err(err).Msg("skipping moment")
			continue
		}
		pending = append(pending, pendingEvent{
			index:       i,
			timestamp:   v.timestamp,
			description: v.description,
			summary:     v.summary,
		})
	}

	if len(pending) == 0 {
		return report, nil
	}

	for i := range pending {
		vec, err := r.embed(ctx, pending[i].description)
		if err != nil {
			return nil, fmt.Errorf("moment %d: %w", pending[i].index, err)
		}
		pending[i].embedding = vec
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction failed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return nil, fmt.Errorf("prepare statement failed: %w", err)
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(pending))
	for _, p := range pending {
		var id int64
		err := stmt.QueryRowContext(ctx,
			p.timestamp,
			p.description,
			videoID,
			videoFilename,
			p.embedding,
			p.summary,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("event insert failed: %w", err)
		}
		report.Items[p.index].ID = id
		ids = append(ids, id)
	}

	payload, err := json.Marshal(EventsSaved{VideoFilename: videoFilename, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, EventsSavedChannel, string(payload)); err != nil {
		return nil, fmt.Errorf("notify failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit failed: %w", err)
	}

	r.logger.Info().
		Str("video_filename", videoFilename).
		Int("saved", report.Saved()).
		Int("skipped", report.Skipped()).
		Msg("moments saved")
	return report, nil
}

func (r *EventRepository) GetByVideoID(ctx context.Context, videoID string) ([]models.Event, error) {
	const query = `
		SELECT id, timestamp, description, video_id, video_filename, llm_summary
		FROM events
		WHERE video_id = $1
		ORDER BY timestamp, id
	`
	return r.queryEvents(ctx, query, videoID)
}

func (r *EventRepository) GetByFilename(ctx context.Context, videoFilename string) ([]models.Event, error) {
	const query = `
		SELECT id, timestamp, description, video_id, video_filename, llm_summary
		FROM events
		WHERE video_filename = $1
		ORDER BY timestamp, id
	`
	return r.queryEvents(ctx, query, videoFilename)
}

// Search ranks every stored event by cosine similarity to the query text.
func (r *EventRepository) Search(ctx context.Context, query string, limit int) ([]models.Event, error) {
	if limit <= 0 {
		return []models.Event{}, nil
	}

	vec, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, description, video_id, video_filename, llm_summary,
			1 - (embedding <=> $1) AS similarity
		FROM events
		ORDER BY embedding <=> $1, id
		LIMIT $2
	`, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		var similarity float64
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Description, &e.VideoID, &e.VideoFilename, &e.Summary, &similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		e.Similarity = &similarity
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}

	return events, nil
}

func (r *EventRepository) queryEvents(ctx context.Context, query string, arg string) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("event query failed: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Description, &e.VideoID, &e.VideoFilename, &e.Summary); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}

	return events, nil
}

func (r *EventRepository) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding failed: %w", err)
	}
	if want := r.embedder.Dimension(); len(vec) != want {
		return pgvector.Vector{}, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return pgvector.NewVector(vec), nil
}

const insertEventSQL = `
	INSERT INTO events (timestamp, description, video_id, video_filename, embedding, llm_summary)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
`
