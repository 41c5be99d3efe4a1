package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"feedsearch/config"
	"feedsearch/internal/adapter/feed"
	"feedsearch/internal/adapter/retriever"
	"feedsearch/internal/port"
)

var tracer = otel.Tracer("feedsearch/api")

// Credentials supplies the embedding API key for query-time calls.
type Credentials interface {
	Credential() string
}

// SearchHandler provides semantic, hybrid and find-similar endpoints.
type SearchHandler struct {
	ranker   *retriever.Ranker
	keywords port.KeywordRanker
	catalog  *feed.Catalog
	creds    Credentials
	defaults config.SearchConfig
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(ranker *retriever.Ranker, keywords port.KeywordRanker, catalog *feed.Catalog, creds Credentials, defaults config.SearchConfig) *SearchHandler {
	return &SearchHandler{
		ranker:   ranker,
		keywords: keywords,
		catalog:  catalog,
		creds:    creds,
		defaults: defaults,
	}
}

// SearchRequest is the request body for semantic and hybrid search.
type SearchRequest struct {
	Query          string   `json:"query"`
	TopK           int      `json:"top_k,omitempty"`
	SemanticWeight *float64 `json:"semantic_weight,omitempty"`
}

// TopicsRequest is the request body for topic filtering.
type TopicsRequest struct {
	Topics []string `json:"topics"`
}

func (h *SearchHandler) decodeSearch(w http.ResponseWriter, r *http.Request) (*SearchRequest, bool) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return nil, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Query is required")
		return nil, false
	}
	if req.TopK <= 0 {
		req.TopK = h.defaults.TopK
	}
	return &req, true
}

// Search handles POST /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSearch(w, r)
	if !ok {
		return
	}

	ctx, span := tracer.Start(r.Context(), "search.semantic",
		trace.WithAttributes(attribute.Int("top_k", req.TopK)))
	defer span.End()

	results, err := h.ranker.SemanticSearch(ctx, req.Query, h.creds.Credential(), h.catalog.Snapshot(), req.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "semantic search failed")
		writeDomainError(w, err)
		return
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	writeSuccess(w, http.StatusOK, toScoredResponse(results))
}

// Hybrid handles POST /search/hybrid.
func (h *SearchHandler) Hybrid(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSearch(w, r)
	if !ok {
		return
	}

	weight := h.defaults.SemanticWeight
	if req.SemanticWeight != nil {
		weight = *req.SemanticWeight
	}
	if weight < 0 || weight > 1 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "semantic_weight must be within [0,1]")
		return
	}

	ctx, span := tracer.Start(r.Context(), "search.hybrid",
		trace.WithAttributes(attribute.Int("top_k", req.TopK), attribute.Float64("semantic_weight", weight)))
	defer span.End()

	keywordRanked, err := h.keywords.Rank(req.Query, req.TopK*2)
	if err != nil {
		span.RecordError(err)
		writeDomainError(w, err)
		return
	}

	results, err := h.ranker.HybridSearch(ctx, req.Query, h.creds.Credential(), h.catalog.Snapshot(), keywordRanked, weight, req.TopK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hybrid search failed")
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, toScoredResponse(results))
}

// Similar handles GET /items/{id}/similar.
func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}

	topK := h.defaults.SimilarTopK
	if v := r.URL.Query().Get("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "top_k must be a positive integer")
			return
		}
		topK = n
	}

	results, err := h.ranker.FindSimilar(id, h.catalog.Snapshot(), topK)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, toScoredResponse(results))
}

// Topics handles POST /search/topics. It returns catalog items related to the topics.
func (h *SearchHandler) Topics(w http.ResponseWriter, r *http.Request) {
	var req TopicsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	items, err := h.ranker.FilterByTopics(r.Context(), req.Topics, h.creds.Credential(), h.catalog.List())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, items)
}
