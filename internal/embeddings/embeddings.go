package embeddings

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Embedder turns text into a fixed-width vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// OpenAI embeds text through the OpenAI embeddings API.
type OpenAI struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

func NewOpenAI(client *openai.Client, model string, dimension int) *OpenAI {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAI{
		client:    client,
		model:     openai.EmbeddingModel(model),
		dimension: dimension,
	}
}

// Embed converts text to an embedding vector
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	}
	// ada-002 rejects the dimensions parameter
	if e.model != openai.AdaEmbeddingV2 {
		req.Dimensions = e.dimension
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("OpenAI embedding creation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("OpenAI embedding response was empty")
	}

	return resp.Data[0].Embedding, nil
}

func (e *OpenAI) Dimension() int {
	return e.dimension
}
