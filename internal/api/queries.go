package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/querylens/querylens/internal/history"
	"github.com/querylens/querylens/internal/schema"
)

const maxListLimit = 1000

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Corpus == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", "schema corpus is not configured", true, nil)
		return
	}
	corpus, err := deps.Corpus.Corpus(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "SCHEMA_UNAVAILABLE", err.Error(), true, nil)
		return
	}
	tables := append([]schema.Description{}, corpus...)
	sort.Slice(tables, func(i, j int) bool { return tables[i].TableName < tables[j].TableName })
	writeJSON(w, http.StatusOK, map[string]any{
		"tables": tables,
		"count":  len(tables),
	})
}

func handleListQueries(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "query history is not configured", true, nil)
		return
	}
	limit := history.DefaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxListLimit {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT",
				fmt.Sprintf("limit must be an integer between 1 and %d", maxListLimit), false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}
	queries := deps.History.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"queries": queries,
		"count":   len(queries),
	})
}

func handleGetQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "query history is not configured", true, nil)
		return
	}
	id := r.PathValue("id")
	generated, ok := deps.History.Get(id)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "QUERY_NOT_FOUND", "query not found", false, map[string]any{"query_id": id})
		return
	}
	writeJSON(w, http.StatusOK, newAskResponse(generated))
}
