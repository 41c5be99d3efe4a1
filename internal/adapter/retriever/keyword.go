package retriever

import (
	"math"
	"sort"
	"sync"

	"feedsearch/internal/adapter/analyzer"
	"feedsearch/internal/domain"
	"feedsearch/internal/port"
)

const (
	DefaultK1         = 1.2
	DefaultB          = 0.75
	DefaultTitleBoost = 0.5
)

type keywordDoc struct {
	item        domain.Item
	tf          map[string]int
	length      int
	titleTokens map[string]struct{}
}

// KeywordRanker is an in-memory BM25 index over item titles and extracted text.
// Title matches boost the score of a document.
type KeywordRanker struct {
	tokenizer  *analyzer.Tokenizer
	extractor  port.TextExtractor
	k1         float64
	b          float64
	titleBoost float64

	mu       sync.RWMutex
	docs     map[int64]*keywordDoc
	postings map[string]map[int64]int
	totalLen int
}

func NewKeywordRanker(tokenizer *analyzer.Tokenizer, extractor port.TextExtractor, k1, b, titleBoost float64) *KeywordRanker {
	return &KeywordRanker{
		tokenizer:  tokenizer,
		extractor:  extractor,
		k1:         k1,
		b:          b,
		titleBoost: titleBoost,
		docs:       make(map[int64]*keywordDoc),
		postings:   make(map[string]map[int64]int),
	}
}

// Put indexes items, replacing any previously indexed item with the same ID.
func (r *KeywordRanker) Put(items ...domain.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		r.removeLocked(item.ID)

		titleTokens := r.tokenizer.Tokenize(item.Title)
		bodyTokens := r.tokenizer.Tokenize(r.extractor.ExtractText(item.Content))
		tokens := make([]string, 0, len(titleTokens)+len(bodyTokens))
		tokens = append(tokens, titleTokens...)
		tokens = append(tokens, bodyTokens...)

		doc := &keywordDoc{
			item:        item,
			tf:          make(map[string]int),
			length:      len(tokens),
			titleTokens: make(map[string]struct{}, len(titleTokens)),
		}
		for _, t := range titleTokens {
			doc.titleTokens[t] = struct{}{}
		}
		for _, t := range tokens {
			doc.tf[t]++
		}
		for term, tf := range doc.tf {
			p, ok := r.postings[term]
			if !ok {
				p = make(map[int64]int)
				r.postings[term] = p
			}
			p[item.ID] = tf
		}

		r.docs[item.ID] = doc
		r.totalLen += doc.length
	}
}

// Remove drops items from the index.
func (r *KeywordRanker) Remove(ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		r.removeLocked(id)
	}
}

func (r *KeywordRanker) removeLocked(id int64) {
	doc, ok := r.docs[id]
	if !ok {
		return
	}
	for term := range doc.tf {
		p := r.postings[term]
		delete(p, id)
		if len(p) == 0 {
			delete(r.postings, term)
		}
	}
	r.totalLen -= doc.length
	delete(r.docs, id)
}

// Len returns the number of indexed items.
func (r *KeywordRanker) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Rank returns up to limit items matching query, best first. A non-positive
// limit returns every match.
func (r *KeywordRanker) Rank(query string, limit int) ([]domain.Item, error) {
	queryTokens := r.tokenizer.Tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.docs) == 0 {
		return nil, nil
	}

	queryTokenSet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		queryTokenSet[t] = struct{}{}
	}

	N := float64(len(r.docs))
	avgDl := float64(r.totalLen) / N
	if avgDl == 0 {
		avgDl = 1
	}

	scores := make(map[int64]float64)
	for _, term := range queryTokens {
		postings := r.postings[term]
		n := float64(len(postings))
		idf := math.Log((N-n+0.5)/(n+0.5) + 1)

		for id, tfInt := range postings {
			dl := float64(r.docs[id].length)
			tf := float64(tfInt)
			scores[id] += idf * (tf * (r.k1 + 1)) / (tf + r.k1*(1-r.b+r.b*dl/avgDl))
		}
	}

	type scored struct {
		id    int64
		score float64
	}
	results := make([]scored, 0, len(scores))
	for id, score := range scores {
		if r.titleBoost > 0 {
			score *= 1 + titleOverlap(r.docs[id].titleTokens, queryTokenSet)*r.titleBoost
		}
		results = append(results, scored{id: id, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	items := make([]domain.Item, len(results))
	for i, res := range results {
		items[i] = r.docs[res.id].item
	}
	return items, nil
}

func titleOverlap(titleTokens, queryTokenSet map[string]struct{}) float64 {
	if len(titleTokens) == 0 || len(queryTokenSet) == 0 {
		return 0
	}
	matches := 0
	for t := range queryTokenSet {
		if _, ok := titleTokens[t]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTokenSet))
}
