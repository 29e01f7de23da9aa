package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/api/handlers"
	"jamesfarrell.me/vidextract/internal/api/middleware"
)

type Options struct {
	APIKey         string
	UploadDir      string
	MaxUploadBytes int64
}

func NewRouter(processor handlers.VideoProcessor, events handlers.EventSearcher, opts Options, logger zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/", root).Methods(http.MethodGet)

	// Protected routes
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(middleware.APIKey(opts.APIKey))

	videoHandler := handlers.NewVideoHandler(processor, events, opts.UploadDir, opts.MaxUploadBytes)
	videos := protected.PathPrefix("/video").Subrouter()
	videos.HandleFunc("/upload", videoHandler.Upload).Methods(http.MethodPost)
	videos.HandleFunc("/events/{video_filename}", videoHandler.Events).Methods(http.MethodGet)

	chatHandler := handlers.NewChatHandler(events)
	protected.HandleFunc("/chat", chatHandler.Chat).Methods(http.MethodPost)

	return middleware.CORS(middleware.Logging(logger)(r))
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok","message":"Video analysis API is running"}`))
}
