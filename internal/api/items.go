package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"feedsearch/internal/adapter/feed"
	"feedsearch/internal/domain"
	"feedsearch/internal/port"
)

// ItemSink is an in-memory item view kept in step with additions and deletions.
type ItemSink interface {
	Put(items ...domain.Item)
	Remove(ids ...int64)
}

// Queue is the embedding queue as seen by the HTTP layer.
type Queue interface {
	Enqueue(ctx context.Context, items []domain.Item) (int, error)
	Status() domain.QueueStatus
	Clear()
	SetCredential(key string)
	Credential() string
}

// ItemHandler accepts new and deleted items from the feed reader.
type ItemHandler struct {
	catalog *feed.Catalog
	sinks   []ItemSink
	queue   Queue
	vectors port.VectorStore
	logger  *slog.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(catalog *feed.Catalog, queue Queue, vectors port.VectorStore, logger *slog.Logger, sinks ...ItemSink) *ItemHandler {
	return &ItemHandler{
		catalog: catalog,
		sinks:   sinks,
		queue:   queue,
		vectors: vectors,
		logger:  logger,
	}
}

// AddItemsRequest is the request body for POST /items.
type AddItemsRequest struct {
	Items []domain.Item `json:"items"`
}

// Add handles POST /items.
func (h *ItemHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "At least one item is required")
		return
	}

	h.catalog.Put(req.Items...)
	for _, s := range h.sinks {
		s.Put(req.Items...)
	}

	queued, err := h.queue.Enqueue(r.Context(), req.Items)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, map[string]any{
		"received": len(req.Items),
		"queued":   queued,
	})
}

// Delete handles DELETE /items/{id}.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid item id")
		return
	}

	h.catalog.Remove(id)
	for _, s := range h.sinks {
		s.Remove(id)
	}

	if err := h.vectors.Delete(id); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("item deleted", "item_id", id)
	w.WriteHeader(http.StatusNoContent)
}
