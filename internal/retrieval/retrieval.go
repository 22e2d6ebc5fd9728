// Package retrieval ranks schema descriptions by relevance to a question.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/querylens/querylens/internal/embedding"
	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/vectorstore"
)

const (
	StrategyVector  = "vector"
	StrategyKeyword = "keyword"
)

var (
	// ErrNoContextAvailable means no schema knowledge exists to ground a question.
	ErrNoContextAvailable = errors.New("no schema context available")
	ErrInvalidK           = errors.New("k must be positive")
)

type Match struct {
	Description schema.Description `json:"description"`
	Score       float64            `json:"score"`
}

// Result holds at most k matches, each for a distinct table, ordered by
// descending score.
type Result struct {
	Matches        []Match `json:"matches"`
	Strategy       string  `json:"strategy"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
}

func (r Result) TableNames() []string {
	names := make([]string, 0, len(r.Matches))
	for _, match := range r.Matches {
		names = append(names, match.Description.TableName)
	}
	return names
}

type ContextRetriever interface {
	Retrieve(ctx context.Context, question string, k int) (Result, error)
}

type Dependencies struct {
	Embedder embedding.Embedder
	Store    vectorstore.Store
	Corpus   CorpusSource
	MinScore float64
	Logger   *slog.Logger
}

// New builds the retriever for strategy. The vector strategy always carries
// a keyword fallback over deps.Corpus.
func New(strategy string, deps Dependencies) (ContextRetriever, error) {
	if deps.Corpus == nil {
		return nil, fmt.Errorf("corpus source is required")
	}
	keyword := NewKeywordRetriever(deps.Corpus)
	switch strategy {
	case StrategyKeyword:
		return keyword, nil
	case StrategyVector, "":
		if deps.Embedder == nil || deps.Store == nil {
			return nil, fmt.Errorf("vector strategy requires an embedder and a vector store")
		}
		return NewVectorRetriever(deps.Embedder, deps.Store, keyword, VectorOptions{
			MinScore: deps.MinScore,
			Logger:   deps.Logger,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported retrieval strategy %q", strategy)
	}
}

func validateK(k int) error {
	if k <= 0 {
		return fmt.Errorf("%w, got %d", ErrInvalidK, k)
	}
	return nil
}
