package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"feedsearch/config"
	"feedsearch/internal/adapter/events"
	"feedsearch/internal/adapter/feed"
	"feedsearch/internal/adapter/retriever"
	"feedsearch/internal/port"
)

// Deps holds everything the router serves.
type Deps struct {
	Catalog  *feed.Catalog
	Keywords *retriever.KeywordRanker
	Ranker   *retriever.Ranker
	Queue    Queue
	Vectors  port.VectorStore
	Events   *events.Client
	Search   config.SearchConfig
}

// NewRouter builds the HTTP routes under /api/v1.
func NewRouter(d Deps, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(2 * time.Minute))
	r.Use(RequestLogging(logger))

	healthHandler := NewHealthHandler(d.Vectors, d.Catalog, d.Queue, d.Events)
	searchHandler := NewSearchHandler(d.Ranker, d.Keywords, d.Catalog, d.Queue, d.Search)
	itemHandler := NewItemHandler(d.Catalog, d.Queue, d.Vectors, logger, d.Keywords)
	queueHandler := NewQueueHandler(d.Queue)
	vectorHandler := NewVectorHandler(d.Vectors)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Route("/search", func(r chi.Router) {
			r.Post("/", searchHandler.Search)
			r.Post("/hybrid", searchHandler.Hybrid)
			r.Post("/topics", searchHandler.Topics)
		})

		r.Route("/items", func(r chi.Router) {
			r.Post("/", itemHandler.Add)
			r.Delete("/{id}", itemHandler.Delete)
			r.Get("/{id}/similar", searchHandler.Similar)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", queueHandler.Status)
			r.Delete("/", queueHandler.Clear)
			r.Put("/credential", queueHandler.SetCredential)
		})

		r.Route("/vectors", func(r chi.Router) {
			r.Get("/", vectorHandler.Get)
			r.Get("/count", vectorHandler.Count)
		})
	})

	return r
}
