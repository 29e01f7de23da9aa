package postgres

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync/atomic"
)

// hashEmbedder maps each word to a bucket. Identical text gives an identical
// vector; the first component is a constant so no vector is all zeros.
type hashEmbedder struct {
	dim    int
	failOn string
	calls  atomic.Int64
}

func newHashEmbedder(dim int) *hashEmbedder {
	return &hashEmbedder{dim: dim}
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h.calls.Add(1)
	if h.failOn != "" && text == h.failOn {
		return nil, errors.New("embedding service unavailable")
	}

	vec := make([]float32, h.dim)
	vec[0] = 0.1
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(word))
		vec[1+int(f.Sum32())%(h.dim-1)] += 1
	}
	return vec, nil
}

func (h *hashEmbedder) Dimension() int { return h.dim }

type wrongWidthEmbedder struct{}

func (wrongWidthEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (wrongWidthEmbedder) Dimension() int { return 16 }
