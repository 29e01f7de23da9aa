package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"jamesfarrell.me/vidextract/internal/analysis"
	"jamesfarrell.me/vidextract/internal/storage/models"
)

const systemPrompt = "You review machine-generated video analyses and pick out the moments a viewer would search for. You answer with a single JSON object and nothing else."

const instructionTemplate = `The JSON document below describes one video:
- "shots": one entry per scene with its timestamp in seconds, the objects detected in a still frame, and a caption of that frame when "caption" is not null.
- "sound_events": labelled sounds detected on a half-second clock.
- "transcript": speech segments with start and end times.

Pick the important moments (for example people speaking, vehicles moving, explosions, animals, crowds reacting). For each moment give the shot indexes it covers, an approximate start and end time in seconds, and a detailed description of what happens. The video name may or may not help.

Answer with exactly this shape:
{"moments": [{"shot_numbers": [0], "start_time": 0.0, "end_time": 8.0, "description": "..."}]}

Video analysis:
%s`

// Selector asks a chat model for the important moments of a video.
type Selector struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

func New(client *openai.Client, model string, logger zerolog.Logger) *Selector {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Selector{
		client: client,
		model:  model,
		logger: logger.With().Str("component", "selector").Logger(),
	}
}

// BuildPrompt embeds the minified document in the instruction template.
func BuildPrompt(doc *analysis.Document) (string, error) {
	data, err := analysis.MarshalCompact(doc)
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	return fmt.Sprintf(instructionTemplate, data), nil
}

// Select returns the moments chosen by the model. An unreachable model or a
// malformed answer yields no moments; only context cancellation is an error.
func (s *Selector) Select(ctx context.Context, doc *analysis.Document) ([]models.Moment, error) {
	prompt, err := BuildPrompt(doc)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Error().Err(err).Msg("moment selection request failed")
		return []models.Moment{}, nil
	}
	if len(resp.Choices) == 0 {
		s.logger.Warn().Msg("moment selector returned no choices")
		return []models.Moment{}, nil
	}

	moments, err := ParseMoments(resp.Choices[0].Message.Content)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed moment selector response")
		return []models.Moment{}, nil
	}

	s.logger.Info().Int("moments", len(moments)).Msg("moments selected")
	return moments, nil
}

// ParseMoments checks the response shape: a JSON object whose "moments" key
// holds an array of objects. Field-level checks are left to the event store.
func ParseMoments(content string) ([]models.Moment, error) {
	content = stripCodeFence(content)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &top); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	raw, ok := top["moments"]
	if !ok {
		return nil, fmt.Errorf(`response has no "moments" key`)
	}

	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf(`"moments" is not an array of objects: %w`, err)
	}

	moments := make([]models.Moment, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("moment %d is null", i)
		}
		moments = append(moments, models.Moment{
			ShotNumbers: shotNumbers(item["shot_numbers"]),
			StartTime:   item["start_time"],
			EndTime:     item["end_time"],
			Description: item["description"],
			Summary:     item["summary"],
		})
	}
	return moments, nil
}

// shotNumbers keeps the integral entries of a loosely typed list.
func shotNumbers(v any) []int {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(list))
	for _, n := range list {
		if f, ok := n.(float64); ok && f == math.Trunc(f) {
			out = append(out, int(f))
		}
	}
	return out
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
