package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogging(logger))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such item")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if line["level"] != "WARN" {
		t.Errorf("expected WARN for 404, got %v", line["level"])
	}
	if line["route"] != "/items/{id}" {
		t.Errorf("expected route pattern, got %v", line["route"])
	}
	if line["status"] != float64(http.StatusNotFound) {
		t.Errorf("expected status 404, got %v", line["status"])
	}
	if line["request_id"] == "" || line["request_id"] == nil {
		t.Error("expected request id")
	}
	if line["bytes"] == float64(0) {
		t.Error("expected response bytes to be counted")
	}
}
