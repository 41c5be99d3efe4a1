package cli

import (
	"fmt"
	"time"

	"feedsearch/config"
	"feedsearch/internal/adapter/analyzer"
	"feedsearch/internal/adapter/cache"
	"feedsearch/internal/adapter/embedding"
	"feedsearch/internal/adapter/extract"
	"feedsearch/internal/adapter/feed"
	"feedsearch/internal/adapter/retriever"
	"feedsearch/internal/adapter/store"
	"feedsearch/internal/usecase"
)

// app wires the components shared by the commands.
type app struct {
	cfg      *config.Config
	store    *store.VectorStore
	embedder *embedding.Client
	catalog  *feed.Catalog
	keywords *retriever.KeywordRanker
	ranker   *retriever.Ranker
	queue    *usecase.EmbeddingQueue
}

// openApp opens the vector store under dir and, when feedDir is set, loads
// exported items from it into the catalog and keyword index.
func openApp(cfg *config.Config, dir, feedDir string, onProgress func(done, total int)) (*app, error) {
	if err := cfg.EnsureStoreDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	st, err := store.Open(cfg.StorePath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	embedder := embedding.NewClient(embedding.Options{
		BaseURL:       cfg.Embedding.BaseURL,
		Model:         cfg.Embedding.Model,
		Dimensions:    cfg.Embedding.Dimensions,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		RequestDelay:  cfg.Embedding.RequestDelay,
		Timeout:       cfg.Embedding.Timeout,
		Logger:        logger,
	})

	metrics, err := usecase.NewQueueMetrics()
	if err != nil {
		logger.Warn("queue metrics unavailable", "error", err)
	}

	extractor := extract.NewHTMLExtractor()
	queue := usecase.NewEmbeddingQueue(embedder, st, extractor, usecase.QueueOptions{
		BatchSize:       cfg.Queue.BatchSize,
		InterBatchDelay: cfg.Queue.InterBatchDelay,
		Logger:          logger,
		Metrics:         metrics,
		OnProgress:      onProgress,
	})
	queue.SetCredential(cfg.Credential())

	var queryCache *cache.QueryCache
	if cfg.Search.QueryCacheSize > 0 {
		queryCache = cache.NewQueryCache(cfg.Search.QueryCacheSize, cfg.Search.QueryCacheTTL)
	}

	a := &app{
		cfg:      cfg,
		store:    st,
		embedder: embedder,
		catalog:  feed.NewCatalog(),
		keywords: retriever.NewKeywordRanker(analyzer.NewTokenizer(), extractor, cfg.Search.K1, cfg.Search.B, cfg.Search.TitleBoost),
		ranker:   retriever.NewRanker(embedder, st, queryCache, logger),
		queue:    queue,
	}

	if feedDir != "" {
		if _, err := a.loadItems(feedDir); err != nil {
			a.close()
			return nil, err
		}
	}

	return a, nil
}

// loadItems reads feed exports under dir into the catalog and keyword index.
func (a *app) loadItems(dir string) (*feed.LoadResult, error) {
	start := time.Now()
	loader := feed.NewLoader(a.cfg.Feed.Includes, a.cfg.Feed.Excludes)
	result, err := loader.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	for _, e := range result.Errors {
		logger.Warn("skipped feed export", "error", e)
	}

	a.catalog.Put(result.Items...)
	a.keywords.Put(result.Items...)

	logger.Debug("loaded items", "items", len(result.Items), "files", result.Files, "took", time.Since(start).String())
	return result, nil
}

// close stops the queue, then closes the store.
func (a *app) close() {
	a.queue.Close()
	if err := a.store.Close(); err != nil {
		logger.Warn("failed to close vector store", "error", err)
	}
}

func (a *app) requireCredential() error {
	if a.queue.Credential() == "" {
		return fmt.Errorf("embedding API key not set: export %s", a.cfg.Embedding.APIKeyEnv)
	}
	return nil
}
