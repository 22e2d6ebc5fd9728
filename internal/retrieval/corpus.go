package retrieval

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/vectorstore"
)

// CorpusSource yields every known schema description.
type CorpusSource interface {
	Corpus(ctx context.Context) ([]schema.Description, error)
}

type CorpusFunc func(ctx context.Context) ([]schema.Description, error)

func (f CorpusFunc) Corpus(ctx context.Context) ([]schema.Description, error) {
	return f(ctx)
}

type StaticCorpus []schema.Description

func (s StaticCorpus) Corpus(context.Context) ([]schema.Description, error) {
	return append([]schema.Description(nil), s...), nil
}

// StoreCorpus reads the payloads already held by the vector store.
type StoreCorpus struct {
	Store vectorstore.Store
}

func (s StoreCorpus) Corpus(ctx context.Context) ([]schema.Description, error) {
	records, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]schema.Description, 0, len(records))
	for _, record := range records {
		out = append(out, record.Description)
	}
	return out, nil
}

// ExtractorCorpus reads the live schema.
type ExtractorCorpus struct {
	Extractor interface {
		Extract(ctx context.Context) ([]schema.Description, error)
	}
}

func (e ExtractorCorpus) Corpus(ctx context.Context) ([]schema.Description, error) {
	return e.Extractor.Extract(ctx)
}

// ChainCorpus returns the first non-empty corpus. Errors from earlier
// sources are reported only when no later source succeeds.
type ChainCorpus []CorpusSource

func (c ChainCorpus) Corpus(ctx context.Context) ([]schema.Description, error) {
	var failures *multierror.Error
	succeeded := false
	for i, source := range c {
		if source == nil {
			continue
		}
		corpus, err := source.Corpus(ctx)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("corpus source %d: %w", i, err))
			continue
		}
		succeeded = true
		if len(corpus) > 0 {
			return corpus, nil
		}
	}
	if !succeeded && failures != nil {
		return nil, failures.ErrorOrNil()
	}
	return nil, nil
}
