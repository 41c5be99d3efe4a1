package port

import "feedsearch/internal/domain"

// VectorStore persists one embedding record per item.
type VectorStore interface {
	// Put upserts a single record.
	Put(itemID int64, embedding []float32, model string) error

	// PutBatch upserts records in one transaction.
	PutBatch(records []domain.VectorRecord) error

	// Get returns the record for itemID, or nil when absent.
	Get(itemID int64) (*domain.VectorRecord, error)

	// GetBatch returns the subset of records present for itemIDs.
	GetBatch(itemIDs []int64) ([]domain.VectorRecord, error)

	// GetAll returns every stored record.
	GetAll() ([]domain.VectorRecord, error)

	Delete(itemID int64) error

	Clear() error

	Count() (int, error)
}
