package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/querylens/querylens/internal/nl2sql"
	"github.com/querylens/querylens/internal/pipeline"
	"github.com/querylens/querylens/internal/query"
	"github.com/querylens/querylens/internal/retrieval"
	"github.com/querylens/querylens/internal/schema"
)

type askRequest struct {
	Question string `json:"question"`
}

type retrieveRequest struct {
	Question string `json:"question"`
	K        int    `json:"k"`
}

type askResponse struct {
	pipeline.GeneratedQuery
	Results             [][]any `json:"results"`
	GenerationLatencyMS int64   `json:"generation_latency_ms"`
	ExecutionLatencyMS  int64   `json:"execution_latency_ms"`
}

func newAskResponse(generated pipeline.GeneratedQuery) askResponse {
	results := generated.Rows
	if results == nil {
		results = [][]any{}
	}
	return askResponse{
		GeneratedQuery:      generated,
		Results:             results,
		GenerationLatencyMS: generated.GenerationLatency.Milliseconds(),
		ExecutionLatencyMS:  generated.ExecutionLatency.Milliseconds(),
	}
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "PIPELINE_UNAVAILABLE", "question pipeline is not configured", true, nil)
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid JSON body: %v", err), false, nil)
		return
	}
	generated, err := deps.Pipeline.Ask(r.Context(), req.Question)
	if err != nil {
		writePipelineError(r.Context(), w, generated, req.Question, err)
		return
	}
	writeJSON(w, http.StatusOK, newAskResponse(generated))
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "PIPELINE_UNAVAILABLE", "question pipeline is not configured", true, nil)
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid JSON body: %v", err), false, nil)
		return
	}
	generated, err := deps.Pipeline.Translate(r.Context(), req.Question)
	if err != nil {
		writePipelineError(r.Context(), w, generated, req.Question, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                    generated.ID,
		"question":              generated.Question,
		"dialect":               generated.Dialect,
		"context_tables":        generated.Tables,
		"retrieval_strategy":    generated.Strategy,
		"raw_sql":               generated.RawSQL,
		"sql":                   generated.NormalizedSQL,
		"generation_latency_ms": generated.GenerationLatency.Milliseconds(),
	})
}

func handleRetrieve(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Retriever == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "RETRIEVER_UNAVAILABLE", "context retriever is not configured", true, nil)
		return
	}
	var req retrieveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid JSON body: %v", err), false, nil)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", pipeline.ErrEmptyQuestion.Error(), false, nil)
		return
	}
	k := req.K
	if k == 0 {
		k = deps.DefaultTopK
		if k <= 0 {
			k = pipeline.DefaultTopK
		}
	}

	result, err := deps.Retriever.Retrieve(r.Context(), question, k)
	if err != nil {
		switch {
		case errors.Is(err, retrieval.ErrInvalidK):
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_K", err.Error(), false, map[string]any{"k": req.K})
		case errors.Is(err, retrieval.ErrNoContextAvailable):
			writeError(r.Context(), w, http.StatusUnprocessableEntity, "INSUFFICIENT_SCHEMA_KNOWLEDGE", err.Error(), false, map[string]any{"question": question})
		default:
			writeError(r.Context(), w, http.StatusInternalServerError, "RETRIEVAL_FAILED", err.Error(), true, nil)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"question":        question,
		"k":               k,
		"strategy":        result.Strategy,
		"fallback_reason": result.FallbackReason,
		"matches":         result.Matches,
	})
}

// writePipelineError maps a pipeline failure onto the error envelope. The
// partially populated query supplies the id and SQL for context.
func writePipelineError(ctx context.Context, w http.ResponseWriter, generated pipeline.GeneratedQuery, question string, err error) {
	extra := map[string]any{}
	if generated.ID != "" {
		extra["query_id"] = generated.ID
	}

	var (
		generationErr *nl2sql.GenerationError
		executionErr  *query.ExecutionError
		extractionErr *schema.ExtractionError
	)
	switch {
	case errors.Is(err, pipeline.ErrEmptyQuestion):
		writeError(ctx, w, http.StatusBadRequest, "QUESTION_REQUIRED", err.Error(), false, extra)
	case errors.Is(err, retrieval.ErrNoContextAvailable):
		extra["question"] = question
		writeError(ctx, w, http.StatusUnprocessableEntity, "INSUFFICIENT_SCHEMA_KNOWLEDGE",
			"not enough schema knowledge to answer the question", false, extra)
	case errors.As(err, &generationErr):
		extra["question"] = generationErr.Question
		extra["attempts"] = generationErr.Attempts
		writeError(ctx, w, http.StatusBadGateway, "GENERATION_FAILED", err.Error(), true, extra)
	case errors.Is(err, query.ErrNotReadOnly):
		extra["sql"] = generated.NormalizedSQL
		writeError(ctx, w, http.StatusBadRequest, "SQL_NOT_ALLOWED", err.Error(), false, extra)
	case errors.As(err, &executionErr):
		extra["sql"] = executionErr.SQL
		writeError(ctx, w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", executionErr.Err.Error(), false, extra)
	case errors.As(err, &extractionErr):
		writeError(ctx, w, http.StatusInternalServerError, "EXTRACTION_FAILED", err.Error(), true, extra)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "TIMEOUT", err.Error(), true, extra)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), true, extra)
	}
}
