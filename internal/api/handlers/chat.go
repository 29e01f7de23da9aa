package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"jamesfarrell.me/vidextract/internal/storage/models"
)

const defaultChatLimit = 5

type EventSearcher interface {
	EventReader
	Search(ctx context.Context, query string, limit int) ([]models.Event, error)
}

type ChatHandler struct {
	events EventSearcher
}

func NewChatHandler(events EventSearcher) *ChatHandler {
	return &ChatHandler{events: events}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	limit := defaultChatLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit < 0 {
		writeError(w, r, http.StatusBadRequest, "limit must not be negative", nil)
		return
	}

	var (
		events []models.Event
		err    error
	)
	if req.Query == models.AllEventsQuery {
		if req.VideoFilename == "" {
			writeError(w, r, http.StatusBadRequest, "video_filename is required to list all events", nil)
			return
		}
		events, err = h.events.GetByFilename(r.Context(), req.VideoFilename)
		if err == nil {
			events = withFullSimilarity(events)
		}
	} else {
		events, err = h.events.Search(r.Context(), req.Query, limit)
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "search failed", err)
		return
	}

	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Events: events, TotalResults: len(events)})
}
