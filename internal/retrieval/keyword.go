package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/querylens/querylens/internal/observability"
	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/tokenize"
)

const (
	tableTermWeight   = 3
	columnTermWeight  = 2
	summaryTermWeight = 1
)

// KeywordRetriever scores descriptions by term overlap between the question
// and each table's name, column names and summary. Deterministic for a given
// corpus; ties break by table name ascending.
type KeywordRetriever struct {
	corpus CorpusSource
}

func NewKeywordRetriever(corpus CorpusSource) *KeywordRetriever {
	return &KeywordRetriever{corpus: corpus}
}

func (r *KeywordRetriever) Retrieve(ctx context.Context, question string, k int) (Result, error) {
	if err := validateK(k); err != nil {
		return Result{}, err
	}
	corpus, err := r.corpus.Corpus(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrNoContextAvailable, err)
	}
	if len(corpus) == 0 {
		return Result{}, ErrNoContextAvailable
	}

	result := Result{Matches: Rank(question, corpus, k), Strategy: StrategyKeyword}
	observability.ObserveRetrieval(StrategyKeyword)
	return result, nil
}

// Rank returns the top k distinct tables of corpus for question.
func Rank(question string, corpus []schema.Description, k int) []Match {
	questionTerms := uniqueTerms(tokenize.Terms(question))

	byTable := make(map[string]Match, len(corpus))
	for _, description := range corpus {
		if _, seen := byTable[description.TableName]; seen {
			continue
		}
		byTable[description.TableName] = Match{Description: description, Score: keywordScore(questionTerms, description)}
	}

	matches := make([]Match, 0, len(byTable))
	for _, match := range byTable {
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Description.TableName < matches[j].Description.TableName
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func keywordScore(questionTerms []string, description schema.Description) float64 {
	tableTerms := termSet(tokenize.Terms(description.TableName))
	columnTerms := map[string]struct{}{}
	for _, name := range description.ColumnNames() {
		for _, term := range tokenize.Terms(name) {
			columnTerms[term] = struct{}{}
		}
	}
	summaryTerms := termSet(tokenize.Terms(description.Summary))

	score := 0
	for _, term := range questionTerms {
		switch {
		case contains(tableTerms, term):
			score += tableTermWeight
		case contains(columnTerms, term):
			score += columnTermWeight
		case contains(summaryTerms, term):
			score += summaryTermWeight
		}
	}
	return float64(score)
}

func uniqueTerms(terms []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

func termSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		set[term] = struct{}{}
	}
	return set
}

func contains(set map[string]struct{}, term string) bool {
	_, ok := set[term]
	return ok
}
