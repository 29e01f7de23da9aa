package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	DatabaseURL   string `yaml:"database_url"`
	ListenAddr    string `yaml:"listen_addr"`
	ServiceAPIKey string `yaml:"-"`
	OutputDir     string `yaml:"output_dir"`
	MaxUploadMB   int64  `yaml:"max_upload_mb"`
	Workers       int    `yaml:"workers"`

	Log     LogConfig     `yaml:"log"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Scene   SceneConfig   `yaml:"scene"`
	Visual  VisualConfig  `yaml:"visual"`
	Audio   AudioConfig   `yaml:"audio"`
	ONNX    ONNXConfig    `yaml:"onnx"`
	Archive ArchiveConfig `yaml:"archive"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type OpenAIConfig struct {
	APIKey             string `yaml:"-"`
	BaseURL            string `yaml:"base_url"`
	ChatModel          string `yaml:"chat_model"`
	CaptionModel       string `yaml:"caption_model"`
	EmbeddingModel     string `yaml:"embedding_model"`
	EmbeddingDimension int    `yaml:"embedding_dimension"`
}

type FFmpegConfig struct {
	Threads int `yaml:"threads"`
}

type SceneConfig struct {
	Threshold      float64 `yaml:"threshold"`
	MinSceneLength float64 `yaml:"min_scene_length"`
}

type VisualConfig struct {
	ModelPath       string  `yaml:"model_path"`
	ClassNamesPath  string  `yaml:"class_names_path"`
	Confidence      float32 `yaml:"confidence"`
	CaptionsEnabled bool    `yaml:"captions_enabled"`
}

type AudioConfig struct {
	ModelPath    string  `yaml:"model_path"`
	ClassMapPath string  `yaml:"class_map_path"`
	TopK         int     `yaml:"top_k"`
	Threshold    float32 `yaml:"threshold"`
	Transcriber  string  `yaml:"transcriber"`
	Language     string  `yaml:"language"`
	LemonfoxKey  string  `yaml:"-"`
	LemonfoxURL  string  `yaml:"lemonfox_url"`
}

type ONNXConfig struct {
	LibraryPath string `yaml:"library_path"`
	UseCUDA     bool   `yaml:"use_cuda"`
}

type ArchiveConfig struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3Region    string `yaml:"s3_region"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Load reads configuration from file, then applies environment overrides.
// An empty path searches the usual locations; a missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would only fail once a video is processed.
func (c *Config) Validate() error {
	switch {
	case c.Audio.TopK < 1:
		return fmt.Errorf("audio.top_k must be at least 1, got %d", c.Audio.TopK)
	case c.Audio.Threshold < 0 || c.Audio.Threshold > 1:
		return fmt.Errorf("audio.threshold must be within [0,1], got %g", c.Audio.Threshold)
	case c.Visual.Confidence < 0 || c.Visual.Confidence > 1:
		return fmt.Errorf("visual.confidence must be within [0,1], got %g", c.Visual.Confidence)
	case c.Scene.Threshold < 0 || c.Scene.Threshold > 1:
		return fmt.Errorf("scene.threshold must be within [0,1], got %g", c.Scene.Threshold)
	case c.OpenAI.EmbeddingDimension <= 0:
		return fmt.Errorf("openai.embedding_dimension must be positive, got %d", c.OpenAI.EmbeddingDimension)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		DatabaseURL: defaultDatabaseURL,
		ListenAddr:  ":8080",
		OutputDir:   "./output",
		MaxUploadMB: 512,
		Workers:     4,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		OpenAI: OpenAIConfig{
			ChatModel:          "gpt-4o-mini",
			CaptionModel:       "gpt-4o-mini",
			EmbeddingModel:     "text-embedding-3-small",
			EmbeddingDimension: 1536,
		},
		Scene: SceneConfig{
			Threshold:      0.3,
			MinSceneLength: 0.5,
		},
		Visual: VisualConfig{
			ModelPath:      "./models/yolov8l.onnx",
			ClassNamesPath: "./models/coco.names",
			Confidence:     0.25,
		},
		Audio: AudioConfig{
			ModelPath:    "./models/yamnet.onnx",
			ClassMapPath: "./resources/yamnet_class_map.csv",
			TopK:         3,
			Threshold:    0.5,
			Transcriber:  "openai",
			Language:     "en",
			LemonfoxURL:  "https://api.lemonfox.ai/v1/audio/transcriptions",
		},
		Archive: ArchiveConfig{
			Backend: "local",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./vidextract.yaml",
		"./config.yaml",
		filepath.Join(os.Getenv("HOME"), ".vidextract", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func (c *Config) applyEnv() {
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.ServiceAPIKey, "SERVICE_API_KEY")
	setString(&c.OutputDir, "OUTPUT_DIR")
	setInt(&c.Workers, "WORKERS")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.OpenAI.ChatModel, "OPENAI_MODEL")
	setString(&c.OpenAI.EmbeddingModel, "OPENAI_EMBEDDING_MODEL")
	setInt(&c.OpenAI.EmbeddingDimension, "EMBEDDING_DIMENSION")

	setBool(&c.Visual.CaptionsEnabled, "CAPTIONS_ENABLED")
	setString(&c.Visual.ModelPath, "YOLO_MODEL_PATH")
	setString(&c.Visual.ClassNamesPath, "YOLO_CLASSES_PATH")

	setString(&c.Audio.ModelPath, "YAMNET_MODEL_PATH")
	setString(&c.Audio.ClassMapPath, "YAMNET_CLASS_MAP_PATH")
	setString(&c.Audio.Transcriber, "TRANSCRIBER")
	setString(&c.Audio.LemonfoxKey, "LEMONFOX_API_KEY")

	setString(&c.ONNX.LibraryPath, "ONNXRUNTIME_LIB")
	setBool(&c.ONNX.UseCUDA, "ONNXRUNTIME_CUDA")

	setString(&c.Archive.Backend, "ARCHIVE_BACKEND")
	setString(&c.Archive.S3Bucket, "ARCHIVE_S3_BUCKET")
	setString(&c.Archive.S3Region, "AWS_REGION")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}
