package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"
)

type recordedRequest struct {
	auth string
	body embeddingRequest
}

func newTestServer(t *testing.T, handle func(w http.ResponseWriter, req embeddingRequest)) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		mu.Lock()
		seen = append(seen, recordedRequest{auth: r.Header.Get("Authorization"), body: req})
		mu.Unlock()
		handle(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), seen...)
	}
}

func writeVector(w http.ResponseWriter, vec []float32) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data": []map[string]any{{"embedding": vec, "index": 0}},
	})
}

func TestEmbedOne(t *testing.T) {
	srv, seen := newTestServer(t, func(w http.ResponseWriter, req embeddingRequest) {
		writeVector(w, []float32{0.1, 0.2, 0.3})
	})

	c := NewClient(Options{BaseURL: srv.URL, Dimensions: 3})
	vec, err := c.EmbedOne(context.Background(), "hello", "sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected vector %v", vec)
	}

	reqs := seen()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	got := reqs[0]
	if got.auth != "Bearer sk-test" {
		t.Errorf("expected bearer auth, got %q", got.auth)
	}
	if got.body.Model != DefaultModel || got.body.Dimensions != 3 || got.body.Input != "hello" {
		t.Errorf("unexpected request body %+v", got.body)
	}
}

func TestEmbedOne_MissingCredential(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(Options{BaseURL: srv.URL})
	_, err := c.EmbedOne(context.Background(), "hello", "")
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("expected no network call without credential")
	}
}

func TestEmbedOne_Truncates(t *testing.T) {
	srv, seen := newTestServer(t, func(w http.ResponseWriter, req embeddingRequest) {
		writeVector(w, []float32{1, 0})
	})

	c := NewClient(Options{BaseURL: srv.URL, Dimensions: 2, MaxInputChars: 10})
	long := strings.Repeat("é", 25)
	if _, err := c.EmbedOne(context.Background(), long, "key"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := seen()[0].body.Input
	if n := utf8.RuneCountInString(input); n != 10 {
		t.Errorf("expected 10 characters, got %d", n)
	}
	if !utf8.ValidString(input) {
		t.Error("truncated input is not valid UTF-8")
	}
}

func TestEmbedOne_UpstreamError(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, req embeddingRequest) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	})

	c := NewClient(Options{BaseURL: srv.URL, Dimensions: 2})
	_, err := c.EmbedOne(context.Background(), "hello", "bad")

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Reason != ReasonUpstream || perr.StatusCode != http.StatusUnauthorized {
		t.Errorf("unexpected error %+v", perr)
	}
	if perr.Detail != "Incorrect API key provided" {
		t.Errorf("expected provider message, got %q", perr.Detail)
	}
}

func TestEmbedOne_UpstreamErrorStatusText(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, req embeddingRequest) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	c := NewClient(Options{BaseURL: srv.URL, Dimensions: 2})
	_, err := c.EmbedOne(context.Background(), "hello", "key")

	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if perr.Detail != "Bad Gateway" {
		t.Errorf("expected status text, got %q", perr.Detail)
	}
}

func TestEmbedBatch_ZeroVectorOnItemFailure(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, req embeddingRequest) {
		if req.Input == "b" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"input rejected"}}`))
			return
		}
		writeVector(w, []float32{1, 2})
	})

	c := NewClient(Options{BaseURL: srv.URL, Dimensions: 2, RequestDelay: -1})

	var progress [][2]int
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"}, "key", func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if vecs[0][0] != 1 || vecs[0][1] != 2 {
		t.Errorf("expected vector for a, got %v", vecs[0])
	}
	if len(vecs[1]) != 2 || vecs[1][0] != 0 || vecs[1][1] != 0 {
		t.Errorf("expected zero vector for b, got %v", vecs[1])
	}
	if len(progress) != 1 || progress[0] != [2]int{1, 2} {
		t.Errorf("unexpected progress reports %v", progress)
	}
}

func TestEmbedBatch_TransportFailureAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: url, Dimensions: 2, RequestDelay: -1})
	_, err := c.EmbedBatch(context.Background(), []string{"a", "b"}, "key", nil)

	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Reason != ReasonTransport {
		t.Fatalf("expected transport ProviderError, got %v", err)
	}
}

func TestEmbedBatch_MissingCredentialAborts(t *testing.T) {
	c := NewClient(Options{Dimensions: 2})
	_, err := c.EmbedBatch(context.Background(), []string{"a"}, "", nil)
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
}
