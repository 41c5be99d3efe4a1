package api

import (
	"net/http"
	"strconv"
	"strings"

	"feedsearch/internal/domain"
	"feedsearch/internal/port"
)

// VectorHandler exposes read access to the vector store.
type VectorHandler struct {
	vectors port.VectorStore
}

func NewVectorHandler(vectors port.VectorStore) *VectorHandler {
	return &VectorHandler{vectors: vectors}
}

// Count handles GET /vectors/count.
func (h *VectorHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.vectors.Count()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]int{"count": n})
}

// Get handles GET /vectors?ids=1,2,3. Missing ids are omitted from the result.
func (h *VectorHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "ids is required")
		return
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid id: "+part)
			return
		}
		ids = append(ids, id)
	}

	records, err := h.vectors.GetBatch(ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.VectorRecord{}
	}
	writeSuccess(w, http.StatusOK, records)
}
