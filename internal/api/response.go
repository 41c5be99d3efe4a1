// Package api exposes search, queue and vector operations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"feedsearch/internal/adapter/embedding"
	"feedsearch/internal/adapter/retriever"
	"feedsearch/internal/adapter/store"
	"feedsearch/internal/domain"
)

// ScoredItemResponse is a ranked item. Similarity is null when it is undefined,
// which happens for items whose stored vector is all zeros.
type ScoredItemResponse struct {
	Item       domain.Item `json:"item"`
	Similarity *float64    `json:"similarity"`
}

func toScoredResponse(results []domain.ScoredItem) []ScoredItemResponse {
	out := make([]ScoredItemResponse, len(results))
	for i, r := range results {
		out[i] = ScoredItemResponse{Item: r.Item}
		if !math.IsNaN(r.Similarity) && !math.IsInf(r.Similarity, 0) {
			sim := r.Similarity
			out[i].Similarity = &sim
		}
	}
	return out
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
		"meta": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeSuccess writes a standard success response.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"data": data,
		"meta": map[string]any{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeDomainError maps subsystem errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	var providerErr *embedding.ProviderError
	switch {
	case errors.Is(err, embedding.ErrMissingCredential):
		writeError(w, http.StatusBadRequest, "CONFIG_ERROR", "Embedding API key is not configured")
	case errors.As(err, &providerErr):
		writeError(w, http.StatusBadGateway, "PROVIDER_ERROR", providerErr.Error())
	case errors.Is(err, retriever.ErrNoSourceEmbedding):
		writeError(w, http.StatusNotFound, "NO_SOURCE_EMBEDDING", err.Error())
	case errors.Is(err, embedding.ErrDimensionMismatch):
		writeError(w, http.StatusConflict, "DIMENSION_MISMATCH", err.Error())
	case errors.Is(err, store.ErrNotInitialized):
		writeError(w, http.StatusServiceUnavailable, "STORE_ERROR", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}
