package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"feedsearch/internal/domain"
)

// VectorStore keeps one embedding record per item in BoltDB. Every write
// commits (and fsyncs) before returning. Reads are served from an in-memory
// mirror loaded at open; returned embeddings must not be modified.
type VectorStore struct {
	mu      sync.RWMutex
	db      *bbolt.DB
	ownsDB  bool
	records map[int64]domain.VectorRecord
}

type storedVector struct {
	Vector    []float32 `json:"v"`
	Timestamp time.Time `json:"t"`
	Model     string    `json:"m"`
}

// NewVectorStore wraps an open bolt database. The caller keeps ownership of db.
func NewVectorStore(db *bbolt.DB) (*VectorStore, error) {
	if err := createBuckets(db); err != nil {
		return nil, err
	}

	s := &VectorStore{
		db:      db,
		records: make(map[int64]domain.VectorRecord),
	}

	if err := s.loadVectors(); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}

	return s, nil
}

func (s *VectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return nil
			}
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			id := decodeKey(k)
			s.records[id] = domain.VectorRecord{
				ItemID:    id,
				Embedding: stored.Vector,
				Timestamp: stored.Timestamp,
				Model:     stored.Model,
			}
			return nil
		})
	})
}

// Put upserts the embedding for one item.
func (s *VectorStore) Put(itemID int64, embedding []float32, model string) error {
	return s.PutBatch([]domain.VectorRecord{{ItemID: itemID, Embedding: embedding, Model: model}})
}

// PutBatch upserts all records in a single transaction: either every record
// replaces its predecessor or none does. Zero timestamps are set to now.
func (s *VectorStore) PutBatch(records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotInitialized
	}
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	staged := make([]domain.VectorRecord, len(records))

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for i, rec := range records {
			if rec.Timestamp.IsZero() {
				rec.Timestamp = now
			}
			rec.Embedding = append([]float32(nil), rec.Embedding...)
			data, err := json.Marshal(storedVector{
				Vector:    rec.Embedding,
				Timestamp: rec.Timestamp,
				Model:     rec.Model,
			})
			if err != nil {
				return err
			}
			if err := b.Put(encodeKey(rec.ItemID), data); err != nil {
				return err
			}
			staged[i] = rec
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store vectors: %w", err)
	}

	for _, rec := range staged {
		s.records[rec.ItemID] = rec
	}
	return nil
}

// Get returns the record for itemID, or nil if none is stored.
func (s *VectorStore) Get(itemID int64) (*domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	rec, ok := s.records[itemID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// GetBatch returns the records present for itemIDs, in no particular order.
func (s *VectorStore) GetBatch(itemIDs []int64) ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}

	seen := make(map[int64]struct{}, len(itemIDs))
	out := make([]domain.VectorRecord, 0, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if rec, ok := s.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetAll returns every stored record, in no particular order.
func (s *VectorStore) GetAll() ([]domain.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}

	out := make([]domain.VectorRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes the record for itemID. Deleting a missing record is not an error.
func (s *VectorStore) Delete(itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotInitialized
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).Delete(encodeKey(itemID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete vector %d: %w", itemID, err)
	}
	delete(s.records, itemID)
	return nil
}

// Clear removes every record. Schema metadata is kept.
func (s *VectorStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotInitialized
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketVectors)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}
	s.records = make(map[int64]domain.VectorRecord)
	return nil
}

// Count returns the number of stored records.
func (s *VectorStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return 0, ErrNotInitialized
	}
	return len(s.records), nil
}

// Close releases the database if the store opened it. Further calls fail with ErrNotInitialized.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	var err error
	if s.ownsDB {
		err = s.db.Close()
	}
	s.db = nil
	s.records = nil
	return err
}

func encodeKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func decodeKey(k []byte) int64 {
	return int64(binary.BigEndian.Uint64(k))
}
