package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/analysis"
	"jamesfarrell.me/vidextract/internal/archive"
	"jamesfarrell.me/vidextract/internal/audio"
	"jamesfarrell.me/vidextract/internal/scene"
	"jamesfarrell.me/vidextract/internal/storage/models"
)

type Segmenter interface {
	Segment(ctx context.Context, path string) ([]scene.Scene, error)
}

type VisualExtractor interface {
	DetectObjects(ctx context.Context, frames []image.Image) ([][]string, error)
	GenerateCaptions(ctx context.Context, frames []image.Image) ([]*string, error)
}

type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, dir string) (*audio.Track, error)
	DetectSoundEvents(ctx context.Context, track *audio.Track) ([]analysis.SoundEvent, error)
	Transcribe(ctx context.Context, track *audio.Track) ([]analysis.TranscriptSegment, error)
}

type MomentSelector interface {
	Select(ctx context.Context, doc *analysis.Document) ([]models.Moment, error)
}

type EventSaver interface {
	SaveBatch(ctx context.Context, moments []models.Moment, videoFilename string) (*models.BatchReport, error)
}

// Result is everything one run produced.
type Result struct {
	RunID       string
	Document    *analysis.Document
	ArchivePath string
	Moments     []models.Moment
	Report      *models.BatchReport
}

// Pipeline runs each stage to completion before starting the next.
type Pipeline struct {
	segmenter Segmenter
	visual    VisualExtractor
	audio     AudioExtractor
	selector  MomentSelector
	events    EventSaver
	archive   archive.Sink
	tempDir   string
	logger    zerolog.Logger
}

type Option func(*Pipeline)

// WithArchive keeps a copy of every assembled document.
func WithArchive(sink archive.Sink) Option {
	return func(p *Pipeline) { p.archive = sink }
}

// WithTempDir sets the parent of the per-run scratch directories.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

func New(seg Segmenter, vis VisualExtractor, aud AudioExtractor, sel MomentSelector, events EventSaver, logger zerolog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		segmenter: seg,
		visual:    vis,
		audio:     aud,
		selector:  sel,
		events:    events,
		archive:   archive.Nop{},
		logger:    logger.With().Str("component", "pipeline").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process analyses the video, asks the selector for moments and saves them
// as events under videoName.
func (p *Pipeline) Process(ctx context.Context, videoPath, videoName string) (*Result, error) {
	res, err := p.analyze(ctx, videoPath, videoName)
	if err != nil {
		return nil, err
	}
	log := p.logger.With().Str("run_id", res.RunID).Logger()

	moments, err := p.selector.Select(ctx, res.Document)
	if err != nil {
		return nil, fmt.Errorf("select moments: %w", err)
	}
	res.Moments = moments
	log.Info().Int("moments", len(moments)).Msg("moments selected")

	report, err := p.events.SaveBatch(ctx, moments, videoName)
	if err != nil {
		return nil, fmt.Errorf("save events: %w", err)
	}
	res.Report = report

	log.Info().
		Int("saved", report.Saved()).
		Int("skipped", report.Skipped()).
		Msg("events saved")
	return res, nil
}

// Analyze builds the analysis document without selecting or saving moments.
func (p *Pipeline) Analyze(ctx context.Context, videoPath, videoName string) (*Result, error) {
	return p.analyze(ctx, videoPath, videoName)
}

func (p *Pipeline) analyze(ctx context.Context, videoPath, videoName string) (*Result, error) {
	runID := uuid.NewString()
	log := p.logger.With().Str("run_id", runID).Str("video", videoName).Logger()
	ctx = log.WithContext(ctx)
	started := time.Now()

	workDir, err := os.MkdirTemp(p.tempDir, "vidextract-run-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Err(err).Str("dir", workDir).Msg("failed to remove work dir")
		}
	}()

	log.Info().Str("path", videoPath).Msg("analysis started")

	scenes, err := p.segmenter.Segment(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("segment video: %w", err)
	}

	timestamps := make([]float64, len(scenes))
	for i, s := range scenes {
		timestamps[i] = s.Timestamp
	}

	objects, captions, err := p.describeScenes(ctx, scenes)
	if err != nil {
		return nil, err
	}

	sounds, transcript, err := p.describeAudio(ctx, videoPath, workDir)
	if err != nil {
		return nil, err
	}

	doc, err := analysis.Assemble(videoName, timestamps, objects, captions, sounds, transcript)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, Document: doc}

	loc, err := p.archive.Store(ctx, doc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("failed to archive analysis")
	} else if loc != "" {
		res.ArchivePath = loc
		log.Debug().Str("location", loc).Msg("analysis archived")
	}

	log.Info().
		Int("shots", doc.ShotCount).
		Int("sound_events", len(doc.SoundEvents)).
		Int("transcript_segments", len(doc.Transcript)).
		Dur("elapsed", time.Since(started)).
		Msg("analysis complete")
	return res, nil
}

// describeScenes runs the visual stage and releases every scene's frame.
func (p *Pipeline) describeScenes(ctx context.Context, scenes []scene.Scene) ([][]string, []*string, error) {
	frames := make([]image.Image, len(scenes))
	for i := range scenes {
		frames[i] = scenes[i].Frame
		scenes[i].Frame = nil
	}

	objects, err := p.visual.DetectObjects(ctx, frames)
	if err != nil {
		return nil, nil, fmt.Errorf("detect objects: %w", err)
	}

	captions, err := p.visual.GenerateCaptions(ctx, frames)
	if err != nil {
		return nil, nil, fmt.Errorf("generate captions: %w", err)
	}
	return objects, captions, nil
}

func (p *Pipeline) describeAudio(ctx context.Context, videoPath, workDir string) ([]analysis.SoundEvent, []analysis.TranscriptSegment, error) {
	track, err := p.audio.ExtractAudio(ctx, videoPath, workDir)
	if err != nil {
		return nil, nil, err
	}
	defer track.Close()

	sounds, err := p.audio.DetectSoundEvents(ctx, track)
	if err != nil {
		return nil, nil, fmt.Errorf("detect sound events: %w", err)
	}

	transcript, err := p.audio.Transcribe(ctx, track)
	if err != nil {
		return nil, nil, err
	}
	return sounds, transcript, nil
}
