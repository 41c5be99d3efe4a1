package api

import (
	"net/http"
	"time"

	"feedsearch/internal/adapter/events"
	"feedsearch/internal/adapter/feed"
	"feedsearch/internal/port"
)

// HealthHandler provides the health endpoint.
type HealthHandler struct {
	vectors   port.VectorStore
	catalog   *feed.Catalog
	queue     Queue
	events    *events.Client
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler. eventsClient may be nil.
func NewHealthHandler(vectors port.VectorStore, catalog *feed.Catalog, queue Queue, eventsClient *events.Client) *HealthHandler {
	return &HealthHandler{
		vectors:   vectors,
		catalog:   catalog,
		queue:     queue,
		events:    eventsClient,
		startTime: time.Now(),
	}
}

// Health returns the service health status.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":         "healthy",
		"items":          h.catalog.Len(),
		"queue":          h.queue.Status(),
		"embedding_key":  h.queue.Credential() != "",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}

	count, err := h.vectors.Count()
	if err != nil {
		resp["status"] = "degraded"
		resp["store_error"] = err.Error()
	} else {
		resp["vectors"] = count
	}

	eventsStatus := "disabled"
	if h.events != nil {
		eventsStatus = "disconnected"
		if h.events.IsConnected() {
			eventsStatus = "connected"
		}
	}
	resp["events"] = eventsStatus

	writeJSON(w, http.StatusOK, resp)
}
