package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// QueueHandler exposes the embedding queue.
type QueueHandler struct {
	queue Queue
}

func NewQueueHandler(queue Queue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Status handles GET /queue.
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.queue.Status())
}

// Clear handles DELETE /queue. Stored vectors are kept.
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.queue.Clear()
	writeSuccess(w, http.StatusOK, h.queue.Status())
}

// CredentialRequest is the request body for PUT /queue/credential.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// SetCredential handles PUT /queue/credential. An empty key disables embedding.
func (h *QueueHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	h.queue.SetCredential(strings.TrimSpace(req.APIKey))
	w.WriteHeader(http.StatusNoContent)
}
