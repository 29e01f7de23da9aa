package visual

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/parallel"
)

// ObjectDetector returns the distinct class names predicted for a frame.
type ObjectDetector interface {
	Detect(ctx context.Context, frame image.Image) ([]string, error)
}

// Captioner describes a frame in one sentence.
type Captioner interface {
	Caption(ctx context.Context, frame image.Image) (string, error)
}

// Extractor runs per-frame visual models. A nil captioner disables captions.
type Extractor struct {
	detector  ObjectDetector
	captioner Captioner
	workers   int
	logger    zerolog.Logger
}

func NewExtractor(detector ObjectDetector, captioner Captioner, workers int, logger zerolog.Logger) *Extractor {
	return &Extractor{
		detector:  detector,
		captioner: captioner,
		workers:   workers,
		logger:    logger.With().Str("component", "visual").Logger(),
	}
}

// CaptionsEnabled reports whether GenerateCaptions produces captions.
func (e *Extractor) CaptionsEnabled() bool {
	return e.captioner != nil
}

// DetectObjects returns one label set per frame, in frame order.
func (e *Extractor) DetectObjects(ctx context.Context, frames []image.Image) ([][]string, error) {
	labels, err := parallel.Map(ctx, e.workers, frames, func(ctx context.Context, i int, frame image.Image) ([]string, error) {
		got, err := e.detector.Detect(ctx, frame)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		if got == nil {
			got = []string{}
		}
		return got, nil
	})
	if err != nil {
		return nil, fmt.Errorf("object detection failed: %w", err)
	}

	e.logger.Debug().Int("frames", len(frames)).Msg("object detection complete")
	return labels, nil
}

// GenerateCaptions returns one caption per frame, or nil when captioning is
// disabled. A frame whose caption request fails gets a nil entry.
func (e *Extractor) GenerateCaptions(ctx context.Context, frames []image.Image) ([]*string, error) {
	if e.captioner == nil {
		return nil, nil
	}

	captions, err := parallel.Map(ctx, e.workers, frames, func(ctx context.Context, i int, frame image.Image) (*string, error) {
		text, err := e.captioner.Caption(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Warn().Err(err).Int("frame", i).Msg("caption failed")
			return nil, nil
		}
		return &text, nil
	})
	if err != nil {
		return nil, err
	}
	return captions, nil
}
