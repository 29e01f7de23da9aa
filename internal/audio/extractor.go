package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"jamesfarrell.me/vidextract/internal/analysis"
	"jamesfarrell.me/vidextract/internal/ffmpeg"
	"jamesfarrell.me/vidextract/internal/transcription"
)

// TrackWriter writes a video's first audio stream to a file.
type TrackWriter interface {
	ExtractAudio(ctx context.Context, input, output string, format ffmpeg.AudioFormat) error
}

// Track is an extracted mono 16 kHz WAV file plus a compressed copy for
// speech recognition. Close removes both.
type Track struct {
	Path       string
	SpeechPath string
	SampleRate int
}

func (t *Track) Close() error {
	for _, p := range []string{t.Path, t.SpeechPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func (t *Track) speechInput() string {
	if t.SpeechPath != "" {
		return t.SpeechPath
	}
	return t.Path
}

type Extractor struct {
	writer      TrackWriter
	classifier  Classifier
	transcriber transcription.Transcriber
	opts        EventOptions
	logger      zerolog.Logger
}

func NewExtractor(writer TrackWriter, classifier Classifier, transcriber transcription.Transcriber, opts EventOptions, logger zerolog.Logger) *Extractor {
	return &Extractor{
		writer:      writer,
		classifier:  classifier,
		transcriber: transcriber,
		opts:        opts,
		logger:      logger.With().Str("component", "audio").Logger(),
	}
}

// ExtractAudio writes the video's audio track into dir as WAV for the sound
// classifier, then encodes the WAV to FLAC for transcription. A video
// without audio is an error.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath, dir string) (*Track, error) {
	format := ffmpeg.DefaultWhisperFormat()
	track := &Track{Path: filepath.Join(dir, "audio.wav"), SampleRate: format.SampleRate}

	if err := e.writer.ExtractAudio(ctx, videoPath, track.Path, format); err != nil {
		return nil, fmt.Errorf("extract audio: %w", err)
	}

	speech := filepath.Join(dir, "speech.flac")
	if err := e.writer.ExtractAudio(ctx, track.Path, speech, ffmpeg.SpeechFormat()); err != nil {
		_ = track.Close()
		return nil, fmt.Errorf("encode speech track: %w", err)
	}
	track.SpeechPath = speech
	return track, nil
}

func (e *Extractor) DetectSoundEvents(ctx context.Context, track *Track) ([]analysis.SoundEvent, error) {
	wave, err := LoadWaveform(track.Path)
	if err != nil {
		return nil, err
	}
	if wave.SampleRate != track.SampleRate {
		return nil, fmt.Errorf("audio sample rate %d, want %d", wave.SampleRate, track.SampleRate)
	}

	events, err := DetectSoundEvents(ctx, wave, e.classifier, e.opts)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Float64("duration", wave.Duration()).
		Int("events", len(events)).
		Msg("sound events detected")
	return events, nil
}

// Transcribe runs speech recognition once over the whole track, sending the
// compressed copy when there is one.
func (e *Extractor) Transcribe(ctx context.Context, track *Track) ([]analysis.TranscriptSegment, error) {
	segments, err := e.transcriber.Transcribe(ctx, track.speechInput())
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	out := make([]analysis.TranscriptSegment, len(segments))
	for i, s := range segments {
		out[i] = analysis.TranscriptSegment{
			Start: analysis.Seconds(s.Start),
			End:   analysis.Seconds(s.End),
			Text:  s.Text,
		}
	}

	e.logger.Debug().Int("segments", len(out)).Msg("transcription complete")
	return out, nil
}
