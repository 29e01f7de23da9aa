package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_MODEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	assert.Equal(t, 1536, cfg.OpenAI.EmbeddingDimension)
	assert.Equal(t, 3, cfg.Audio.TopK)
	assert.InDelta(t, 0.5, cfg.Audio.Threshold, 1e-9)
	assert.False(t, cfg.Visual.CaptionsEnabled)
	assert.Empty(t, cfg.Archive.Dir, "local archive falls back to OutputDir")
}

func TestLoadOutputDirFromEnv(t *testing.T) {
	t.Setenv("OUTPUT_DIR", "/srv/analyses")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/analyses", cfg.OutputDir)
	assert.Empty(t, cfg.Archive.Dir)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
	}{
		{name: "negative top_k", yaml: "audio:\n  top_k: -1\n", wantErr: "audio.top_k"},
		{name: "zero top_k", yaml: "audio:\n  top_k: 0\n", wantErr: "audio.top_k"},
		{name: "audio threshold above one", yaml: "audio:\n  threshold: 1.5\n", wantErr: "audio.threshold"},
		{name: "audio threshold negative", yaml: "audio:\n  threshold: -0.1\n", wantErr: "audio.threshold"},
		{name: "visual confidence above one", yaml: "visual:\n  confidence: 2\n", wantErr: "visual.confidence"},
		{name: "scene threshold negative", yaml: "scene:\n  threshold: -1\n", wantErr: "scene.threshold"},
		{name: "zero dimension", yaml: "openai:\n  embedding_dimension: 0\n", wantErr: "embedding_dimension"},
		{name: "negative dimension from env", env: map[string]string{"EMBEDDING_DIMENSION": "-8"}, wantErr: "embedding_dimension"},
		{name: "boundaries accepted", yaml: "audio:\n  top_k: 1\n  threshold: 0\nscene:\n  threshold: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EMBEDDING_DIMENSION", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "vidextract.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, cfg.Audio.TopK)
		})
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidextract.yaml")
	data := []byte(`
listen_addr: ":9090"
openai:
  chat_model: gpt-4o
scene:
  threshold: 0.4
visual:
  captions_enabled: true
archive:
  backend: s3
  s3_bucket: from-file
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("ARCHIVE_S3_BUCKET", "from-env")
	t.Setenv("WORKERS", "8")
	t.Setenv("CAPTIONS_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.ChatModel)
	assert.InDelta(t, 0.4, cfg.Scene.Threshold, 1e-9)
	assert.Equal(t, "s3", cfg.Archive.Backend)
	assert.Equal(t, "from-env", cfg.Archive.S3Bucket)
	assert.Equal(t, 8, cfg.Workers)
	assert.False(t, cfg.Visual.CaptionsEnabled)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scene: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		env     map[string]string
		want    string
		wantErr bool
	}{
		{
			name:    "profile set",
			profile: "staging",
			env:     map[string]string{"DATABASE_URL_STAGING": "postgres://staging"},
			want:    "postgres://staging",
		},
		{
			name:    "profile missing",
			profile: "prod",
			env:     map[string]string{"DATABASE_URL_PROD": ""},
			wantErr: true,
		},
		{
			name: "plain env",
			env:  map[string]string{"DATABASE_URL": "postgres://plain"},
			want: "postgres://plain",
		},
		{
			name: "default",
			env:  map[string]string{"DATABASE_URL": ""},
			want: defaultDatabaseURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			got, err := DatabaseURL(tt.profile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
