package store

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")
)

// ErrNotInitialized is returned by every VectorStore operation before Open or after Close.
var ErrNotInitialized = errors.New("vector store not initialized")

// Open opens (or creates) the bolt file at path and loads its vectors.
func Open(path string) (*VectorStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	s, err := NewVectorStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

func createBuckets(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
}
