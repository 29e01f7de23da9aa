package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/pipeline"
	"jamesfarrell.me/vidextract/internal/storage/models"
)

type VideoProcessor interface {
	Process(ctx context.Context, videoPath, videoName string) (*pipeline.Result, error)
}

type EventReader interface {
	GetByFilename(ctx context.Context, videoFilename string) ([]models.Event, error)
}

type VideoHandler struct {
	processor VideoProcessor
	events    EventReader
	uploadDir string
	maxBytes  int64
}

// NewVideoHandler stores uploads under uploadDir while they are processed.
// maxBytes <= 0 leaves the upload size unbounded.
func NewVideoHandler(processor VideoProcessor, events EventReader, uploadDir string, maxBytes int64) *VideoHandler {
	return &VideoHandler{
		processor: processor,
		events:    events,
		uploadDir: uploadDir,
		maxBytes:  maxBytes,
	}
}

func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "upload too large", nil)
			return
		}
		writeError(w, r, http.StatusBadRequest, "missing multipart field \"file\"", err)
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		writeError(w, r, http.StatusBadRequest, "upload has no filename", nil)
		return
	}

	log := zerolog.Ctx(r.Context())
	log.Info().Str("filename", filename).Int64("size", header.Size).Msg("upload received")

	tempPath, err := h.saveUpload(file, filepath.Ext(filename))
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to store upload", err)
		return
	}
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", tempPath).Msg("failed to remove upload")
		}
	}()

	res, err := h.processor.Process(r.Context(), tempPath, filename)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to process video", err)
		return
	}

	moments := res.Moments
	if moments == nil {
		moments = []models.Moment{}
	}

	writeJSON(w, http.StatusOK, models.UploadResponse{
		Message:     "File processed successfully",
		Filename:    filename,
		EventsSaved: res.Report.Saved(),
		Skipped:     res.Report.Skipped(),
		Analysis:    map[string]any{"moments": moments},
	})
}

func (h *VideoHandler) saveUpload(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}

	dst, err := os.CreateTemp(h.uploadDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// Events lists a video's events in timestamp order with similarity fixed at 1.
func (h *VideoHandler) Events(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["video_filename"]

	events, err := h.events.GetByFilename(r.Context(), filename)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to load events", err)
		return
	}

	writeJSON(w, http.StatusOK, withFullSimilarity(events))
}

func withFullSimilarity(events []models.Event) []models.Event {
	out := make([]models.Event, len(events))
	for i, e := range events {
		one := 1.0
		e.Similarity = &one
		out[i] = e
	}
	return out
}
