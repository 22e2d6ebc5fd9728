// Package pipeline runs a question through retrieval, generation,
// normalization and execution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/querylens/querylens/internal/nl2sql"
	"github.com/querylens/querylens/internal/query"
	"github.com/querylens/querylens/internal/retrieval"
	"github.com/querylens/querylens/internal/schema"
	"github.com/querylens/querylens/internal/sqlcompat"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"

	DefaultTopK = 5
)

var ErrEmptyQuestion = errors.New("question is required")

// GeneratedQuery is the record of one question's trip through the pipeline.
// Failed runs keep whatever stages completed.
type GeneratedQuery struct {
	ID                string        `json:"id"`
	Question          string        `json:"question"`
	Dialect           string        `json:"dialect"`
	Tables            []string      `json:"context_tables"`
	Strategy          string        `json:"retrieval_strategy,omitempty"`
	FallbackReason    string        `json:"fallback_reason,omitempty"`
	RawSQL            string        `json:"raw_sql,omitempty"`
	NormalizedSQL     string        `json:"sql,omitempty"`
	Columns           []string      `json:"columns,omitempty"`
	Rows              [][]any       `json:"results,omitempty"`
	Truncated         bool          `json:"truncated,omitempty"`
	GenerationLatency time.Duration `json:"-"`
	ExecutionLatency  time.Duration `json:"-"`
	Status            string        `json:"status"`
	Error             string        `json:"error,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Recorder keeps finished queries; the pipeline records both outcomes.
type Recorder interface {
	Record(GeneratedQuery)
}

type Dependencies struct {
	Retriever retrieval.ContextRetriever
	Generator nl2sql.Generator
	Engine    query.Engine
	History   Recorder
	Dialect   string
	TopK      int
	RowLimit  int
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

type Pipeline struct {
	retriever retrieval.ContextRetriever
	generator nl2sql.Generator
	engine    query.Engine
	history   Recorder
	dialect   string
	topK      int
	rowLimit  int
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

func New(deps Dependencies) *Pipeline {
	p := &Pipeline{
		retriever: deps.Retriever,
		generator: deps.Generator,
		engine:    deps.Engine,
		history:   deps.History,
		dialect:   deps.Dialect,
		topK:      deps.TopK,
		rowLimit:  deps.RowLimit,
		logger:    deps.Logger,
		now:       deps.Now,
		newID:     deps.NewID,
	}
	if p.topK <= 0 {
		p.topK = DefaultTopK
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = func() string { return uuid.NewString() }
	}
	return p
}

// Translate retrieves context and produces normalized SQL without executing it.
func (p *Pipeline) Translate(ctx context.Context, question string) (GeneratedQuery, error) {
	generated := p.start(question)
	if err := p.translate(ctx, &generated); err != nil {
		return p.fail(generated, err), err
	}
	generated.Status = StatusSucceeded
	return generated, nil
}

// Ask translates the question, then executes the SQL when it is read-only.
// The returned GeneratedQuery is populated up to the failing stage.
func (p *Pipeline) Ask(ctx context.Context, question string) (GeneratedQuery, error) {
	generated := p.start(question)
	if err := p.translate(ctx, &generated); err != nil {
		return p.finish(p.fail(generated, err)), err
	}
	if err := query.CheckReadOnly(generated.NormalizedSQL); err != nil {
		return p.finish(p.fail(generated, err)), err
	}
	if p.engine == nil {
		err := fmt.Errorf("query engine is not configured")
		return p.finish(p.fail(generated, err)), err
	}

	result, err := p.engine.Execute(ctx, query.Request{SQL: generated.NormalizedSQL, RowLimit: p.rowLimit})
	generated.ExecutionLatency = result.Duration
	if err != nil {
		return p.finish(p.fail(generated, err)), err
	}
	generated.Columns = result.Columns
	generated.Rows = result.Rows
	generated.Truncated = result.Truncated
	generated.Status = StatusSucceeded

	p.logger.InfoContext(ctx, "question answered",
		slog.String("query_id", generated.ID),
		slog.Any("context_tables", generated.Tables),
		slog.String("retrieval_strategy", generated.Strategy),
		slog.Int("rows", len(generated.Rows)),
		slog.Int64("generation_ms", generated.GenerationLatency.Milliseconds()),
		slog.Int64("execution_ms", generated.ExecutionLatency.Milliseconds()),
	)
	return p.finish(generated), nil
}

func (p *Pipeline) start(question string) GeneratedQuery {
	return GeneratedQuery{
		ID:        p.newID(),
		Question:  strings.TrimSpace(question),
		Dialect:   p.dialect,
		CreatedAt: p.now().UTC(),
	}
}

func (p *Pipeline) translate(ctx context.Context, generated *GeneratedQuery) error {
	if generated.Question == "" {
		return ErrEmptyQuestion
	}
	if p.retriever == nil || p.generator == nil {
		return fmt.Errorf("pipeline is missing its retriever or generator")
	}

	retrieved, err := p.retriever.Retrieve(ctx, generated.Question, p.topK)
	if err != nil {
		return err
	}
	generated.Tables = retrieved.TableNames()
	generated.Strategy = retrieved.Strategy
	generated.FallbackReason = retrieved.FallbackReason

	tables := make([]schema.Description, 0, len(retrieved.Matches))
	for _, match := range retrieved.Matches {
		tables = append(tables, match.Description)
	}
	output, err := p.generator.Generate(ctx, nl2sql.Request{
		Question: generated.Question,
		Tables:   tables,
		Dialect:  p.dialect,
	})
	generated.GenerationLatency = output.Latency
	if err != nil {
		return err
	}
	generated.RawSQL = output.SQL
	generated.NormalizedSQL = sqlcompat.Normalize(output.SQL, p.dialect)
	return nil
}

func (p *Pipeline) fail(generated GeneratedQuery, err error) GeneratedQuery {
	generated.Status = StatusFailed
	generated.Error = err.Error()
	return generated
}

func (p *Pipeline) finish(generated GeneratedQuery) GeneratedQuery {
	if p.history != nil {
		p.history.Record(generated)
	}
	return generated
}
