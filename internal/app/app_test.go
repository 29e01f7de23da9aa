package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jamesfarrell.me/vidextract/internal/analysis"
	"jamesfarrell.me/vidextract/internal/archive"
	"jamesfarrell.me/vidextract/internal/config"
	"jamesfarrell.me/vidextract/internal/transcription"
)

func testApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	return &App{Config: cfg, openai: openai.NewClient("test")}
}

func TestTranscriberSelection(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		key     string
		want    any
		wantErr bool
	}{
		{name: "default", backend: "", want: &transcription.OpenAI{}},
		{name: "openai", backend: "OpenAI", want: &transcription.OpenAI{}},
		{name: "lemonfox", backend: "lemonfox", key: "lf-key", want: &transcription.Lemonfox{}},
		{name: "lemonfox without key", backend: "lemonfox", wantErr: true},
		{name: "unknown", backend: "vosk", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(t)
			a.Config.Audio.Transcriber = tt.backend
			a.Config.Audio.LemonfoxKey = tt.key

			got, err := a.transcriber()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestArchiveSelection(t *testing.T) {
	ctx := context.Background()

	a := testApp(t)
	a.Config.Archive.Backend = "none"
	sink, err := a.archive(ctx)
	require.NoError(t, err)
	assert.IsType(t, archive.Nop{}, sink)

	a.Config.Archive.Backend = "local"
	a.Config.Archive.Dir = filepath.Join(t.TempDir(), "analyses")
	sink, err = a.archive(ctx)
	require.NoError(t, err)
	assert.IsType(t, &archive.Local{}, sink)

	a.Config.Archive.Backend = "s3"
	a.Config.Archive.S3Bucket = ""
	_, err = a.archive(ctx)
	assert.Error(t, err)

	a.Config.Archive.Backend = "ftp"
	_, err = a.archive(ctx)
	assert.Error(t, err)
}

func TestLocalArchiveUsesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	t.Setenv("OUTPUT_DIR", dir)
	t.Setenv("ARCHIVE_BACKEND", "")

	a := testApp(t)
	sink, err := a.archive(context.Background())
	require.NoError(t, err)

	got, err := sink.Store(context.Background(), &analysis.Document{VideoName: "match.mp4"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "match_analysis.json"), got)
	assert.FileExists(t, got)
}

func TestNewRequiresAPIKey(t *testing.T) {
	a := testApp(t)
	a.Config.OpenAI.APIKey = ""

	_, err := New(context.Background(), a.Config, a.Logger)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}
