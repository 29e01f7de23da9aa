package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// AudioFormat defines audio extraction format options
type AudioFormat struct {
	Codec      string
	SampleRate int
	Channels   int
}

// DefaultWhisperFormat is mono 16 kHz 16-bit PCM, the rate every audio model
// in the pipeline expects.
func DefaultWhisperFormat() AudioFormat {
	return AudioFormat{
		Codec:      "pcm_s16le",
		SampleRate: 16000,
		Channels:   1,
	}
}

// SpeechFormat is mono 16 kHz FLAC. Speech-to-text APIs cap uploads at
// 25 MB, which raw PCM passes after about 13 minutes.
func SpeechFormat() AudioFormat {
	return AudioFormat{
		Codec:      "flac",
		SampleRate: 16000,
		Channels:   1,
	}
}

// ExtractAudio writes the first audio stream of input to output. A video
// without an audio stream returns ErrNoAudio.
func (e *Executor) ExtractAudio(ctx context.Context, input, output string, format AudioFormat) error {
	e.logger.Debug().
		Str("input", input).
		Str("output", output).
		Str("codec", format.Codec).
		Int("sample_rate", format.SampleRate).
		Msg("extracting audio")

	args := ffmpeggo.Input(input).
		Output(output, ffmpeggo.KwArgs{
			"map":    "0:a:0",
			"acodec": format.Codec,
			"ar":     format.SampleRate,
			"ac":     format.Channels,
		}).
		OverWriteOutput().
		GetArgs()

	stderr, err := e.run(ctx, args, nil)
	if err != nil {
		if isMissingStream(stderr) && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", input, ErrNoAudio)
		}
		return fmt.Errorf("audio extraction failed: %w", err)
	}
	return nil
}

func isMissingStream(stderr string) bool {
	return strings.Contains(stderr, "matches no streams") ||
		strings.Contains(stderr, "does not contain any stream")
}
