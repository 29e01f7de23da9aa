package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/nfnt/resize"
	"github.com/sashabaranov/go-openai"
)

const captionPrompt = "Describe this video frame in one short sentence. Mention the main subjects and what they are doing."

// OpenAICaptioner captions frames with a vision-capable chat model.
type OpenAICaptioner struct {
	client *openai.Client
	model  string
}

func NewOpenAICaptioner(client *openai.Client, model string) *OpenAICaptioner {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAICaptioner{client: client, model: model}
}

func (c *OpenAICaptioner) Caption(ctx context.Context, frame image.Image) (string, error) {
	uri, err := jpegDataURI(frame, 512)
	if err != nil {
		return "", err
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: 60,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: captionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    uri,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("caption response had no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// jpegDataURI downsizes the frame so its long edge is at most maxEdge.
func jpegDataURI(img image.Image, maxEdge uint) (string, error) {
	b := img.Bounds()
	if uint(b.Dx()) > maxEdge || uint(b.Dy()) > maxEdge {
		if b.Dx() >= b.Dy() {
			img = resize.Resize(maxEdge, 0, img, resize.Bilinear)
		} else {
			img = resize.Resize(0, maxEdge, img, resize.Bilinear)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
