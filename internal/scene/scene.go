package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sort"

	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/ffmpeg"
	"jamesfarrell.me/vidextract/internal/parallel"
)

// Scene is one content-based segment and its representative frame. Frame is
// owned by the Scene until the visual stage consumes it.
type Scene struct {
	Start     float64
	End       float64
	Timestamp float64
	Frame     image.Image
}

// Boundary is a detected [Start, End) range in seconds.
type Boundary struct {
	Start float64
	End   float64
}

// Midpoint is the representative timestamp of the boundary.
func (b Boundary) Midpoint() float64 {
	return b.Start + (b.End-b.Start)/2
}

// Source is the video access the segmenter needs.
type Source interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	SceneCuts(ctx context.Context, path string, threshold float64) ([]float64, error)
	GrabFrame(ctx context.Context, path string, at float64) (image.Image, error)
}

type Options struct {
	// Threshold is the ffmpeg scene score, 0..1, above which a frame starts a new scene.
	Threshold float64
	// MinSceneLength drops cuts closer than this many seconds to the previous one.
	MinSceneLength float64
	Workers        int
}

type Segmenter struct {
	src    Source
	opts   Options
	logger zerolog.Logger
}

func NewSegmenter(src Source, opts Options, logger zerolog.Logger) *Segmenter {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.3
	}
	return &Segmenter{
		src:    src,
		opts:   opts,
		logger: logger.With().Str("component", "segmenter").Logger(),
	}
}

// Segment returns one Scene per detected boundary whose midpoint frame could
// be decoded, ordered by timestamp. An unreadable video is an error.
func (s *Segmenter) Segment(ctx context.Context, path string) ([]Scene, error) {
	info, err := s.src.ProbeVideo(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read video: %w", err)
	}

	cuts, err := s.src.SceneCuts(ctx, path, s.opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("detect scenes: %w", err)
	}

	bounds, err := Boundaries(cuts, info.Duration, s.opts.MinSceneLength)
	if err != nil {
		return nil, err
	}

	type grabbed struct {
		scene Scene
		ok    bool
	}

	results, err := parallel.Map(ctx, s.opts.Workers, bounds, func(ctx context.Context, i int, b Boundary) (grabbed, error) {
		at := b.Midpoint()
		frame, err := s.src.GrabFrame(ctx, path, at)
		if err != nil {
			if ctx.Err() != nil {
				return grabbed{}, ctx.Err()
			}
			s.logger.Debug().Err(err).Int("scene", i).Float64("timestamp", at).Msg("dropping scene, frame not decoded")
			return grabbed{}, nil
		}
		return grabbed{
			scene: Scene{Start: b.Start, End: b.End, Timestamp: at, Frame: frame},
			ok:    true,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	scenes := make([]Scene, 0, len(results))
	for _, r := range results {
		if r.ok {
			scenes = append(scenes, r.scene)
		}
	}

	s.logger.Info().
		Int("detected", len(bounds)).
		Int("kept", len(scenes)).
		Msg("segmentation complete")
	return scenes, nil
}

var ErrUnknownDuration = errors.New("video duration unknown")

// Boundaries turns cut points into consecutive scenes covering [0, duration).
// Cuts outside the video, and cuts closer than minLen to the previous scene
// start, are ignored. No cuts yields a single scene.
func Boundaries(cuts []float64, duration, minLen float64) ([]Boundary, error) {
	if duration <= 0 {
		return nil, ErrUnknownDuration
	}

	sorted := append([]float64(nil), cuts...)
	sort.Float64s(sorted)

	var bounds []Boundary
	start := 0.0
	for _, c := range sorted {
		if c <= start || c >= duration {
			continue
		}
		if c-start < minLen {
			continue
		}
		bounds = append(bounds, Boundary{Start: start, End: c})
		start = c
	}
	bounds = append(bounds, Boundary{Start: start, End: duration})
	return bounds, nil
}
