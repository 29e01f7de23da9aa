package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"jamesfarrell.me/vidextract/internal/archive"
	"jamesfarrell.me/vidextract/internal/audio"
	"jamesfarrell.me/vidextract/internal/config"
	"jamesfarrell.me/vidextract/internal/embeddings"
	"jamesfarrell.me/vidextract/internal/ffmpeg"
	"jamesfarrell.me/vidextract/internal/logging"
	"jamesfarrell.me/vidextract/internal/onnx"
	"jamesfarrell.me/vidextract/internal/pipeline"
	"jamesfarrell.me/vidextract/internal/scene"
	"jamesfarrell.me/vidextract/internal/selector"
	"jamesfarrell.me/vidextract/internal/storage/db"
	"jamesfarrell.me/vidextract/internal/storage/postgres"
	"jamesfarrell.me/vidextract/internal/transcription"
	"jamesfarrell.me/vidextract/internal/visual"
)

// App owns the long-lived resources shared by the binaries.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *sql.DB
	Events *postgres.EventRepository

	openai  *openai.Client
	closers []io.Closer
	onnx    bool
}

// New connects to the event store and makes sure its schema exists.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY must be set")
	}

	log := logging.WithComponent(logger, "app")
	log.Info().Str("database", db.MaskDatabaseURL(cfg.DatabaseURL)).Msg("connecting to database")

	database, err := db.NewConnection(ctx, db.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	client := newOpenAIClient(cfg.OpenAI)
	embedder := embeddings.NewOpenAI(client, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.EmbeddingDimension)
	events := postgres.NewEventRepository(database, embedder, logger)

	if err := events.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to prepare schema: %w", err)
	}

	return &App{
		Config: cfg,
		Logger: logger,
		DB:     database,
		Events: events,
		openai: client,
	}, nil
}

func newOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(oc)
}

// Pipeline loads the models and builds the analysis pipeline. The models are
// released by Close.
func (a *App) Pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg := a.Config

	exec, err := ffmpeg.New(a.Logger, cfg.FFmpeg.Threads)
	if err != nil {
		return nil, err
	}

	if err := onnx.Init(cfg.ONNX.LibraryPath); err != nil {
		return nil, err
	}
	a.onnx = true

	detector, err := visual.NewYOLO(a.Logger, cfg.Visual.ModelPath, cfg.Visual.ClassNamesPath, cfg.Visual.Confidence, cfg.ONNX.UseCUDA)
	if err != nil {
		return nil, fmt.Errorf("load object detector: %w", err)
	}
	a.closers = append(a.closers, detector)

	classifier, err := audio.NewYAMNet(a.Logger, cfg.Audio.ModelPath, cfg.Audio.ClassMapPath, cfg.ONNX.UseCUDA)
	if err != nil {
		return nil, fmt.Errorf("load sound classifier: %w", err)
	}
	a.closers = append(a.closers, classifier)

	var captioner visual.Captioner
	if cfg.Visual.CaptionsEnabled {
		captioner = visual.NewOpenAICaptioner(a.openai, cfg.OpenAI.CaptionModel)
	}

	transcriber, err := a.transcriber()
	if err != nil {
		return nil, err
	}

	sink, err := a.archive(ctx)
	if err != nil {
		return nil, err
	}

	opts := audio.DefaultEventOptions()
	opts.TopK = cfg.Audio.TopK
	opts.Threshold = cfg.Audio.Threshold
	opts.Workers = cfg.Workers

	segmenter := scene.NewSegmenter(exec, scene.Options{
		Threshold:      cfg.Scene.Threshold,
		MinSceneLength: cfg.Scene.MinSceneLength,
		Workers:        cfg.Workers,
	}, a.Logger)

	return pipeline.New(
		segmenter,
		visual.NewExtractor(detector, captioner, cfg.Workers, a.Logger),
		audio.NewExtractor(exec, classifier, transcriber, opts, a.Logger),
		selector.New(a.openai, cfg.OpenAI.ChatModel, a.Logger),
		a.Events,
		a.Logger,
		pipeline.WithArchive(sink),
	), nil
}

func (a *App) transcriber() (transcription.Transcriber, error) {
	cfg := a.Config.Audio
	switch strings.ToLower(cfg.Transcriber) {
	case "", "openai", "whisper":
		return transcription.NewOpenAI(a.openai, cfg.Language), nil
	case "lemonfox":
		if cfg.LemonfoxKey == "" {
			return nil, errors.New("LEMONFOX_API_KEY must be set for the lemonfox transcriber")
		}
		return transcription.NewLemonfox(cfg.LemonfoxKey, cfg.LemonfoxURL, cfg.Language), nil
	default:
		return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
	}
}

func (a *App) archive(ctx context.Context) (archive.Sink, error) {
	cfg := a.Config.Archive
	switch strings.ToLower(cfg.Backend) {
	case "none", "off", "":
		return archive.Nop{}, nil
	case "local":
		dir := cfg.Dir
		if dir == "" {
			dir = a.Config.OutputDir
		}
		return archive.NewLocal(dir)
	case "s3":
		return archive.NewS3(ctx, archive.S3Config{
			Bucket:       cfg.S3Bucket,
			Prefix:       cfg.S3Prefix,
			Region:       cfg.S3Region,
			UsePathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

// Close releases models and the database connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	if a.onnx {
		errs = append(errs, onnx.Shutdown())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
