package port

import "feedsearch/internal/domain"

// KeywordRanker returns items ordered by keyword relevance, best first.
type KeywordRanker interface {
	Rank(query string, limit int) ([]domain.Item, error)
}
