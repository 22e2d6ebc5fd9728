// Package embedding turns schema documents and questions into fixed-length vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/querylens/querylens/internal/config"
)

var ErrEmptyText = errors.New("text to embed is empty")

// Embedder produces vectors in a single embedding space identified by ID.
// Vectors from embedders with different IDs are not comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ID() string
	Dimensions() int
}

func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Backend {
	case "local", "":
		return NewHashEmbedder(cfg.Dimensions)
	case "remote":
		return NewRemoteEmbedder(RemoteConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding backend %q", cfg.Backend)
	}
}

func identity(backend, model string, dimensions int) string {
	return fmt.Sprintf("%s:%s:%d", backend, model, dimensions)
}

func normalize(vector []float32) []float32 {
	var sum float64
	for _, value := range vector {
		sum += float64(value) * float64(value)
	}
	if sum == 0 {
		return vector
	}
	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
	return vector
}

// Cosine returns the cosine similarity of two equal-length vectors, or 0 when
// either is zero or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
