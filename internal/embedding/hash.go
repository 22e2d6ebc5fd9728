package embedding

import (
	"context"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/querylens/querylens/internal/tokenize"
)

const bigramWeight = 0.5

// HashEmbedder is a deterministic in-process embedder using signed feature
// hashing of unigrams and bigrams.
type HashEmbedder struct {
	dimensions int
}

func NewHashEmbedder(dimensions int) (*HashEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &HashEmbedder{dimensions: dimensions}, nil
}

func (h *HashEmbedder) ID() string {
	return identity("local", "murmur3-hashing", h.dimensions)
}

func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize.Terms(text)
	if len(terms) == 0 {
		return nil, ErrEmptyText
	}

	vector := make([]float32, h.dimensions)
	for i, term := range terms {
		h.add(vector, term, 1)
		if i > 0 {
			h.add(vector, terms[i-1]+" "+term, bigramWeight)
		}
	}
	return normalize(vector), nil
}

func (h *HashEmbedder) add(vector []float32, feature string, weight float32) {
	sum := murmur3.Sum64([]byte(feature))
	index := sum % uint64(h.dimensions)
	if sum>>63 == 1 {
		weight = -weight
	}
	vector[index] += weight
}
