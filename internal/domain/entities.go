package domain

import "time"

// Item is a feed article as provided by the article store.
type Item struct {
	ID      int64  `json:"_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// VectorRecord is the persisted embedding of one item.
type VectorRecord struct {
	ItemID    int64     `json:"item_id"`
	Embedding []float32 `json:"embedding"`
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
}

// EmbeddingTask is pending work for the embedding queue. It is never persisted.
type EmbeddingTask struct {
	ItemID int64
	Text   string
}

// ScoredItem is a ranked search result.
type ScoredItem struct {
	Item       Item    `json:"item"`
	Similarity float64 `json:"similarity"`
}

// QueueStatus is a point-in-time snapshot of the embedding queue.
type QueueStatus struct {
	QueueLength int  `json:"queue_length"`
	Processing  bool `json:"processing"`
}
