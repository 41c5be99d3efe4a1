package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"feedsearch/internal/adapter/cache"
	"feedsearch/internal/adapter/embedding"
	"feedsearch/internal/domain"
	"feedsearch/internal/port"
)

// ErrNoSourceEmbedding is returned by FindSimilar when the source item has not been embedded yet.
var ErrNoSourceEmbedding = errors.New("source item has no embedding")

// TopicFilterTopK is the number of items kept by FilterByTopics.
const TopicFilterTopK = 30

// Ranker ranks catalog items by cosine similarity against stored vectors.
// It scans every record linearly.
type Ranker struct {
	embedder port.Embedder
	store    port.VectorStore
	cache    *cache.QueryCache
	logger   *slog.Logger
}

// NewRanker creates a ranker. queryCache may be nil.
func NewRanker(embedder port.Embedder, store port.VectorStore, queryCache *cache.QueryCache, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		embedder: embedder,
		store:    store,
		cache:    queryCache,
		logger:   logger,
	}
}

// SemanticSearch embeds query and returns the topK corpus items closest to it.
// Records whose item is missing from corpus are skipped. An empty store
// yields an empty result without calling the provider.
func (r *Ranker) SemanticSearch(ctx context.Context, query, credential string, corpus map[int64]domain.Item, topK int) ([]domain.ScoredItem, error) {
	records, err := r.store.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	if len(records) == 0 {
		r.logger.Warn("no embeddings stored, run index first")
		return []domain.ScoredItem{}, nil
	}

	queryVec, err := r.embedQuery(ctx, query, credential)
	if err != nil {
		return nil, err
	}

	return rank(queryVec, records, corpus, nil, topK)
}

// HybridSearch blends semantic similarity with keyword rank. Each semantic
// candidate scores similarity*w and each keyword result adds (1-i/n)*(1-w),
// where i is its position in keywordRanked and n its length. Semantic
// candidates are drawn from the top 2*topK.
func (r *Ranker) HybridSearch(ctx context.Context, query, credential string, corpus map[int64]domain.Item, keywordRanked []domain.Item, semanticWeight float64, topK int) ([]domain.ScoredItem, error) {
	w := math.Max(0, math.Min(1, semanticWeight))

	semantic, err := r.SemanticSearch(ctx, query, credential, corpus, topK*2)
	if err != nil {
		return nil, err
	}

	var order []int64
	scores := make(map[int64]float64, len(semantic)+len(keywordRanked))

	for _, res := range semantic {
		if _, seen := scores[res.Item.ID]; !seen {
			order = append(order, res.Item.ID)
		}
		scores[res.Item.ID] = res.Similarity * w
	}

	n := float64(len(keywordRanked))
	for i, item := range keywordRanked {
		kw := (1 - float64(i)/n) * (1 - w)
		current, seen := scores[item.ID]
		if !seen {
			order = append(order, item.ID)
			scores[item.ID] = kw
			continue
		}
		// unknown semantic score contributes nothing
		if math.IsNaN(current) {
			current = 0
		}
		scores[item.ID] = current + kw
	}

	results := make([]domain.ScoredItem, 0, len(order))
	for _, id := range order {
		item, ok := corpus[id]
		if !ok {
			continue
		}
		results = append(results, domain.ScoredItem{Item: item, Similarity: scores[id]})
	}

	sortScored(results)
	return truncate(results, topK), nil
}

// FindSimilar returns the topK corpus items nearest to the stored vector of sourceID,
// excluding the source itself.
func (r *Ranker) FindSimilar(sourceID int64, corpus map[int64]domain.Item, topK int) ([]domain.ScoredItem, error) {
	source, err := r.store.Get(sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source vector: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("item %d: %w", sourceID, ErrNoSourceEmbedding)
	}

	records, err := r.store.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return rank(source.Embedding, records, corpus, &sourceID, topK)
}

// FilterByTopics keeps the items most related to the given topics, best first.
// With no topics the items are returned unchanged.
func (r *Ranker) FilterByTopics(ctx context.Context, topics []string, credential string, items []domain.Item) ([]domain.Item, error) {
	if len(topics) == 0 {
		return items, nil
	}

	corpus := make(map[int64]domain.Item, len(items))
	for _, item := range items {
		corpus[item.ID] = item
	}

	results, err := r.SemanticSearch(ctx, strings.Join(topics, ", "), credential, corpus, TopicFilterTopK)
	if err != nil {
		return nil, err
	}

	filtered := make([]domain.Item, len(results))
	for i, res := range results {
		filtered[i] = res.Item
	}
	return filtered, nil
}

// embedQuery requires a credential even on a cache hit, so clearing the key
// disables every search and not only uncached ones.
func (r *Ranker) embedQuery(ctx context.Context, query, credential string) ([]float32, error) {
	if credential == "" {
		return nil, fmt.Errorf("failed to embed query: %w", embedding.ErrMissingCredential)
	}

	model := r.embedder.ModelName()
	if vec, ok := r.cache.Get(model, query); ok {
		return vec, nil
	}

	vec, err := r.embedder.EmbedOne(ctx, query, credential)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	r.cache.Put(model, query, vec)
	return vec, nil
}

func rank(target []float32, records []domain.VectorRecord, corpus map[int64]domain.Item, exclude *int64, topK int) ([]domain.ScoredItem, error) {
	// GetAll has no ordering guarantee; fix one so equal scores rank deterministically.
	sort.Slice(records, func(i, j int) bool {
		return records[i].ItemID < records[j].ItemID
	})

	results := make([]domain.ScoredItem, 0, len(records))
	for _, rec := range records {
		if exclude != nil && rec.ItemID == *exclude {
			continue
		}
		item, ok := corpus[rec.ItemID]
		if !ok {
			continue
		}

		sim, err := embedding.CosineSimilarity(target, rec.Embedding)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", rec.ItemID, err)
		}
		results = append(results, domain.ScoredItem{Item: item, Similarity: sim})
	}

	sortScored(results)
	return truncate(results, topK), nil
}

// sortScored orders by score descending. NaN scores sort last and ties keep their order.
func sortScored(results []domain.ScoredItem) {
	sort.SliceStable(results, func(i, j int) bool {
		return rankKey(results[i].Similarity) > rankKey(results[j].Similarity)
	})
}

func rankKey(score float64) float64 {
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}

func truncate(results []domain.ScoredItem, topK int) []domain.ScoredItem {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
