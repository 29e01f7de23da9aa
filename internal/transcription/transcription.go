package transcription

import (
	"context"
)

// Segment is one span of recognised speech, in seconds from the start of
// the audio.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Transcriber turns an audio file into ordered segments. Boundaries and text
// are whatever the engine returns.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
}
