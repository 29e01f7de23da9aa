package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	}
	detail := msg
	if err != nil {
		detail = msg + ": " + err.Error()
	}
	writeJSON(w, status, errorResponse{Detail: detail})
}
