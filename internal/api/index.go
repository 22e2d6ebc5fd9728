package api

import (
	"errors"
	"net/http"

	"github.com/querylens/querylens/internal/indexer"
	"github.com/querylens/querylens/internal/schema"
)

func handleIndexRebuild(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Indexer == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "INDEXER_UNAVAILABLE", "indexer is not configured", true, nil)
		return
	}
	summary, err := deps.Indexer.RunRebuildOnce(r.Context())
	if err != nil {
		writeIndexError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func handleIndexVerify(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Indexer == nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "INDEXER_UNAVAILABLE", "indexer is not configured", true, nil)
		return
	}
	summary, err := deps.Indexer.RunVerifyOnce(r.Context())
	if err != nil {
		writeIndexError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeIndexError(w http.ResponseWriter, r *http.Request, err error) {
	var extractionErr *schema.ExtractionError
	switch {
	case errors.Is(err, indexer.ErrRunInProgress):
		writeError(r.Context(), w, http.StatusConflict, "INDEX_RUN_IN_PROGRESS", err.Error(), true, nil)
	case errors.As(err, &extractionErr):
		writeError(r.Context(), w, http.StatusInternalServerError, "EXTRACTION_FAILED", err.Error(), true, map[string]any{"table": extractionErr.Table})
	default:
		writeError(r.Context(), w, http.StatusInternalServerError, "INDEX_RUN_FAILED", err.Error(), true, nil)
	}
}
