package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAI transcribes with the Whisper API, keeping its segment boundaries.
type OpenAI struct {
	client   *openai.Client
	language string
}

func NewOpenAI(client *openai.Client, language string) *OpenAI {
	return &OpenAI{client: client, language: language}
}

func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Language: o.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		segments = append(segments, Segment{
			Start: s.Start,
			End:   s.End,
			Text:  strings.TrimSpace(s.Text),
		})
	}
	return segments, nil
}
