package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/querylens/querylens/internal/config"
	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/internal/indexer"
	"github.com/querylens/querylens/internal/nl2sql"
	"github.com/querylens/querylens/internal/pipeline"
	"github.com/querylens/querylens/internal/query"
	"github.com/querylens/querylens/internal/retrieval"
	"github.com/querylens/querylens/internal/schema"
)

type fakeAsker struct {
	ask       func(ctx context.Context, question string) (pipeline.GeneratedQuery, error)
	translate func(ctx context.Context, question string) (pipeline.GeneratedQuery, error)
}

func (f fakeAsker) Ask(ctx context.Context, question string) (pipeline.GeneratedQuery, error) {
	return f.ask(ctx, question)
}

func (f fakeAsker) Translate(ctx context.Context, question string) (pipeline.GeneratedQuery, error) {
	return f.translate(ctx, question)
}

type retrieverFunc func(ctx context.Context, question string, k int) (retrieval.Result, error)

func (f retrieverFunc) Retrieve(ctx context.Context, question string, k int) (retrieval.Result, error) {
	return f(ctx, question, k)
}

type fakeIndexer struct {
	rebuildErr error
	verify     indexer.VerifySummary
}

func (f fakeIndexer) RunRebuildOnce(context.Context) (indexer.RebuildSummary, error) {
	if f.rebuildErr != nil {
		return indexer.RebuildSummary{}, f.rebuildErr
	}
	return indexer.RebuildSummary{Status: indexer.StatusCompleted, Tables: 2}, nil
}

func (f fakeIndexer) RunVerifyOnce(context.Context) (indexer.VerifySummary, error) {
	return f.verify, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("querylens-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func serve(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	decoded := map[string]any{}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response error = %v body=%s", err, rr.Body.String())
		}
	}
	return rr, decoded
}

func TestHealthEndpointWithoutProbesIsHealthy(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr, body := serve(t, h, http.MethodGet, "/v1/health", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body["status"] != HealthHealthy {
		t.Fatalf("health status = %v", body["status"])
	}
}

func TestHealthEndpointReportsComponentStatus(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		probes     []HealthProbe
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all up",
			probes:     []HealthProbe{{Name: "database", Check: up}, {Name: "vector_store", Check: up}, {Name: "generator", Check: up}},
			wantCode:   http.StatusOK,
			wantStatus: HealthHealthy,
		},
		{
			name:       "some down",
			probes:     []HealthProbe{{Name: "database", Check: up}, {Name: "vector_store", Check: down}, {Name: "generator", Check: up}},
			wantCode:   http.StatusOK,
			wantStatus: HealthDegraded,
		},
		{
			name:       "all down",
			probes:     []HealthProbe{{Name: "database", Check: down}, {Name: "vector_store", Check: down}, {Name: "generator", Check: down}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: HealthUnhealthy,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(testConfig(t), Dependencies{Probes: tc.probes})
			rr, body := serve(t, h, http.MethodGet, "/v1/health", "")
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantCode)
			}
			if body["status"] != tc.wantStatus {
				t.Fatalf("health status = %v, want %s", body["status"], tc.wantStatus)
			}
			components, ok := body["components"].(map[string]any)
			if !ok || len(components) != 3 {
				t.Fatalf("components = %#v", body["components"])
			}
		})
	}
}

func TestHealthProbeHonoursDependencyTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	h := NewHandler(testConfig(t), Dependencies{
		DependencyTimeout: 20 * time.Millisecond,
		Probes:            []HealthProbe{{Name: "generator", Check: slow}},
	})
	rr, body := serve(t, h, http.MethodGet, "/v1/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	generator := body["components"].(map[string]any)["generator"].(map[string]any)
	if generator["status"] != "down" {
		t.Fatalf("generator = %#v", generator)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr, body := serve(t, h, http.MethodGet, "/v1/ready", "")

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if body["error_code"] != "NOT_READY" || body["retryable"] != true {
		t.Fatalf("body = %#v", body)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if diff := cmp.Diff([]int{1, 2}, order); diff != "" {
		t.Fatalf("execution order mismatch (-want +got):\n%s", diff)
	}
}

func TestAskReturnsSQLAndResults(t *testing.T) {
	var gotQuestion string
	h := NewHandler(testConfig(t), Dependencies{
		Pipeline: fakeAsker{ask: func(_ context.Context, question string) (pipeline.GeneratedQuery, error) {
			gotQuestion = question
			return pipeline.GeneratedQuery{
				ID:                "q-1",
				Question:          question,
				Dialect:           "sqlite",
				Tables:            []string{"orders"},
				NormalizedSQL:     "SELECT COUNT(*) FROM orders",
				Columns:           []string{"COUNT(*)"},
				Rows:              [][]any{{int64(3)}},
				GenerationLatency: 120 * time.Millisecond,
				ExecutionLatency:  4 * time.Millisecond,
				Status:            pipeline.StatusSucceeded,
			}, nil
		}},
	})

	rr, body := serve(t, h, http.MethodPost, "/v1/ask", `{"question":"how many orders?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if gotQuestion != "how many orders?" {
		t.Fatalf("question = %q", gotQuestion)
	}
	if body["sql"] != "SELECT COUNT(*) FROM orders" {
		t.Fatalf("sql = %v", body["sql"])
	}
	if diff := cmp.Diff([]any{[]any{float64(3)}}, body["results"]); diff != "" {
		t.Fatalf("results mismatch (-want +got):\n%s", diff)
	}
	if body["generation_latency_ms"] != float64(120) || body["execution_latency_ms"] != float64(4) {
		t.Fatalf("latencies = %v / %v", body["generation_latency_ms"], body["execution_latency_ms"])
	}
}

func TestAskAlwaysIncludesResults(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Pipeline: fakeAsker{ask: func(_ context.Context, question string) (pipeline.GeneratedQuery, error) {
			return pipeline.GeneratedQuery{ID: "q-2", Question: question, NormalizedSQL: "SELECT 1 WHERE 0", Status: pipeline.StatusSucceeded}, nil
		}},
	})
	rr, body := serve(t, h, http.MethodPost, "/v1/ask", `{"question":"anything?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	results, ok := body["results"].([]any)
	if !ok || len(results) != 0 {
		t.Fatalf("results = %#v", body["results"])
	}
}

func TestAskMapsPipelineErrors(t *testing.T) {
	tests := []struct {
		name        string
		generated   pipeline.GeneratedQuery
		err         error
		wantCode    int
		wantErrCode string
		wantContext map[string]any
	}{
		{
			name:        "empty question",
			err:         pipeline.ErrEmptyQuestion,
			wantCode:    http.StatusBadRequest,
			wantErrCode: "QUESTION_REQUIRED",
		},
		{
			name:        "no context",
			generated:   pipeline.GeneratedQuery{ID: "q-3"},
			err:         fmt.Errorf("%w: corpus empty", retrieval.ErrNoContextAvailable),
			wantCode:    http.StatusUnprocessableEntity,
			wantErrCode: "INSUFFICIENT_SCHEMA_KNOWLEDGE",
			wantContext: map[string]any{"query_id": "q-3", "question": "what?"},
		},
		{
			name:        "generation failed",
			generated:   pipeline.GeneratedQuery{ID: "q-4"},
			err:         &nl2sql.GenerationError{Question: "what?", Attempts: 3, Err: errors.New("status=503")},
			wantCode:    http.StatusBadGateway,
			wantErrCode: "GENERATION_FAILED",
			wantContext: map[string]any{"query_id": "q-4", "question": "what?", "attempts": float64(3)},
		},
		{
			name:        "write statement",
			generated:   pipeline.GeneratedQuery{ID: "q-5", NormalizedSQL: "DELETE FROM orders"},
			err:         fmt.Errorf("%w: statement starts with DELETE", query.ErrNotReadOnly),
			wantCode:    http.StatusBadRequest,
			wantErrCode: "SQL_NOT_ALLOWED",
			wantContext: map[string]any{"query_id": "q-5", "sql": "DELETE FROM orders"},
		},
		{
			name:        "execution failed",
			generated:   pipeline.GeneratedQuery{ID: "q-6", NormalizedSQL: "SELECT nope FROM orders"},
			err:         &query.ExecutionError{SQL: "SELECT nope FROM orders", Err: errors.New("no such column: nope")},
			wantCode:    http.StatusBadRequest,
			wantErrCode: "QUERY_EXECUTION_FAILED",
			wantContext: map[string]any{"query_id": "q-6", "sql": "SELECT nope FROM orders"},
		},
		{
			name:        "extraction failed",
			err:         &schema.ExtractionError{Err: errors.New("database is locked")},
			wantCode:    http.StatusInternalServerError,
			wantErrCode: "EXTRACTION_FAILED",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("execute: %w", context.DeadlineExceeded),
			wantCode:    http.StatusGatewayTimeout,
			wantErrCode: "TIMEOUT",
		},
		{
			name:        "unknown",
			err:         errors.New("boom"),
			wantCode:    http.StatusInternalServerError,
			wantErrCode: "INTERNAL_ERROR",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(testConfig(t), Dependencies{
				Pipeline: fakeAsker{ask: func(context.Context, string) (pipeline.GeneratedQuery, error) {
					return tc.generated, tc.err
				}},
			})
			rr, body := serve(t, h, http.MethodPost, "/v1/ask", `{"question":"what?"}`)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d body=%s", rr.Code, tc.wantCode, rr.Body.String())
			}
			if body["error_code"] != tc.wantErrCode {
				t.Fatalf("error_code = %v, want %s", body["error_code"], tc.wantErrCode)
			}
			if body["trace_id"] == "" {
				t.Fatal("expected trace_id in error envelope")
			}
			if tc.wantContext != nil {
				if diff := cmp.Diff(tc.wantContext, body["context"]); diff != "" {
					t.Fatalf("context mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestAskExecutionErrorCarriesDriverMessage(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Pipeline: fakeAsker{ask: func(context.Context, string) (pipeline.GeneratedQuery, error) {
			return pipeline.GeneratedQuery{ID: "q-7"}, &query.ExecutionError{SQL: "SELECT x", Err: errors.New("no such column: x")}
		}},
	})
	_, body := serve(t, h, http.MethodPost, "/v1/ask", `{"question":"x?"}`)
	if body["message"] != "no such column: x" {
		t.Fatalf("message = %v", body["message"])
	}
}

func TestAskRejectsInvalidJSON(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Pipeline: fakeAsker{ask: func(context.Context, string) (pipeline.GeneratedQuery, error) {
			t.Fatal("pipeline must not run for invalid JSON")
			return pipeline.GeneratedQuery{}, nil
		}},
	})
	rr, body := serve(t, h, http.MethodPost, "/v1/ask", `{"question":`)
	if rr.Code != http.StatusBadRequest || body["error_code"] != "INVALID_REQUEST" {
		t.Fatalf("status = %d body = %#v", rr.Code, body)
	}
}

func TestAskWithoutPipelineIsUnavailable(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr, _ := serve(t, h, http.MethodPost, "/v1/ask", `{"question":"x?"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestTranslateReturnsSQLWithoutResults(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Pipeline: fakeAsker{translate: func(_ context.Context, question string) (pipeline.GeneratedQuery, error) {
			return pipeline.GeneratedQuery{
				ID:            "q-8",
				Question:      question,
				Dialect:       "postgres",
				Tables:        []string{"sales"},
				RawSQL:        "SELECT YEAR(sold_at) FROM sales",
				NormalizedSQL: "SELECT EXTRACT(YEAR FROM sold_at) FROM sales",
			}, nil
		}},
	})
	rr, body := serve(t, h, http.MethodPost, "/v1/translate", `{"question":"sales by year"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body["sql"] != "SELECT EXTRACT(YEAR FROM sold_at) FROM sales" || body["raw_sql"] != "SELECT YEAR(sold_at) FROM sales" {
		t.Fatalf("body = %#v", body)
	}
	if _, ok := body["results"]; ok {
		t.Fatal("translate must not return results")
	}
}

func TestRetrieveUsesDefaultK(t *testing.T) {
	var gotK int
	h := NewHandler(testConfig(t), Dependencies{
		DefaultTopK: 3,
		Retriever: retrieverFunc(func(_ context.Context, _ string, k int) (retrieval.Result, error) {
			gotK = k
			return retrieval.Result{
				Strategy: retrieval.StrategyKeyword,
				Matches:  []retrieval.Match{{Description: schema.Description{TableName: "users"}, Score: 3}},
			}, nil
		}),
	})
	rr, body := serve(t, h, http.MethodPost, "/v1/retrieve", `{"question":"list users"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if gotK != 3 {
		t.Fatalf("k = %d, want 3", gotK)
	}
	matches, ok := body["matches"].([]any)
	if !ok || len(matches) != 1 {
		t.Fatalf("matches = %#v", body["matches"])
	}
}

func TestRetrieveRejectsInvalidK(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Retriever: retrieverFunc(func(_ context.Context, _ string, k int) (retrieval.Result, error) {
			return retrieval.Result{}, fmt.Errorf("%w, got %d", retrieval.ErrInvalidK, k)
		}),
	})
	rr, body := serve(t, h, http.MethodPost, "/v1/retrieve", `{"question":"list users","k":-2}`)
	if rr.Code != http.StatusBadRequest || body["error_code"] != "INVALID_K" {
		t.Fatalf("status = %d body = %#v", rr.Code, body)
	}
}

func TestSchemaListsCorpusSortedByTable(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Corpus: retrieval.StaticCorpus{
			{TableName: "users"},
			{TableName: "orders"},
		},
	})
	rr, body := serve(t, h, http.MethodGet, "/v1/schema", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	tables := body["tables"].([]any)
	first := tables[0].(map[string]any)["table_name"]
	if len(tables) != 2 || first != "orders" {
		t.Fatalf("tables = %#v", tables)
	}
}

func TestQueriesEndpoints(t *testing.T) {
	store := history.NewStore(10)
	store.Record(pipeline.GeneratedQuery{ID: "q-1", Question: "first", Status: pipeline.StatusSucceeded})
	store.Record(pipeline.GeneratedQuery{ID: "q-2", Question: "second", Status: pipeline.StatusFailed, Error: "boom"})
	h := NewHandler(testConfig(t), Dependencies{History: store})

	rr, body := serve(t, h, http.MethodGet, "/v1/queries?limit=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	queries := body["queries"].([]any)
	if len(queries) != 1 || queries[0].(map[string]any)["id"] != "q-2" {
		t.Fatalf("queries = %#v", queries)
	}

	rr, body = serve(t, h, http.MethodGet, "/v1/queries/q-1", "")
	if rr.Code != http.StatusOK || body["question"] != "first" {
		t.Fatalf("get status = %d body = %#v", rr.Code, body)
	}

	rr, body = serve(t, h, http.MethodGet, "/v1/queries/missing", "")
	if rr.Code != http.StatusNotFound || body["error_code"] != "QUERY_NOT_FOUND" {
		t.Fatalf("missing status = %d body = %#v", rr.Code, body)
	}

	rr, _ = serve(t, h, http.MethodGet, "/v1/queries?limit=zero", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit status = %d", rr.Code)
	}
}

func TestIndexEndpoints(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{
		Indexer: fakeIndexer{verify: indexer.VerifySummary{Status: indexer.StatusCompleted, Consistent: false, Missing: 1}},
	})
	rr, body := serve(t, h, http.MethodPost, "/v1/index/rebuild", "")
	if rr.Code != http.StatusOK || body["tables"] != float64(2) {
		t.Fatalf("rebuild status = %d body = %#v", rr.Code, body)
	}

	rr, body = serve(t, h, http.MethodPost, "/v1/index/verify", "")
	if rr.Code != http.StatusOK || body["missing_tables"] != float64(1) {
		t.Fatalf("verify status = %d body = %#v", rr.Code, body)
	}
}

func TestIndexRebuildInProgressConflicts(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{Indexer: fakeIndexer{rebuildErr: indexer.ErrRunInProgress}})
	rr, body := serve(t, h, http.MethodPost, "/v1/index/rebuild", "")
	if rr.Code != http.StatusConflict || body["error_code"] != "INDEX_RUN_IN_PROGRESS" {
		t.Fatalf("status = %d body = %#v", rr.Code, body)
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	h := NewHandler(testConfig(t), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatal("expected default collectors in exposition")
	}
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
