package models

import (
	"path/filepath"
	"strings"
)

// AllEventsQuery is the reserved chat query that lists every event of a video
// instead of running a similarity search.
const AllEventsQuery = "__GET_ALL_EVENTS__"

type Event struct {
	ID            int64     `json:"id"`
	Timestamp     float64   `json:"timestamp"`
	Description   string    `json:"description"`
	VideoID       string    `json:"video_id"`
	VideoFilename string    `json:"video_filename"`
	Summary       *string   `json:"llm_summary"`
	Similarity    *float64  `json:"similarity"`
	Embedding     []float32 `json:"-"`
}

// Moment is one entry of the moment selector's "moments" array. Fields are
// kept loosely typed; the event store validates and coerces them.
type Moment struct {
	ShotNumbers []int `json:"shot_numbers,omitempty"`
	StartTime   any   `json:"start_time"`
	EndTime     any   `json:"end_time"`
	Description any   `json:"description"`
	Summary     any   `json:"summary,omitempty"`
}

type ChatRequest struct {
	Query         string `json:"query"`
	Limit         *int   `json:"limit,omitempty"`
	VideoFilename string `json:"video_filename"`
}

type ChatResponse struct {
	Events       []Event `json:"events"`
	TotalResults int     `json:"total_results"`
}

type UploadResponse struct {
	Message     string `json:"message"`
	Filename    string `json:"filename"`
	EventsSaved int    `json:"events_saved"`
	Skipped     int    `json:"events_skipped"`
	Analysis    any    `json:"analysis"`
}

// VideoIDFromFilename strips the final extension from a filename. Leading
// dots do not start an extension, so ".hidden" stays ".hidden".
func VideoIDFromFilename(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	if ext == "" || strings.TrimLeft(base, ".") == strings.TrimLeft(ext, ".") {
		return filename
	}
	return strings.TrimSuffix(filename, ext)
}
