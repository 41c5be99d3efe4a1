package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

var keySchemaInfo = []byte("schema_info")

// SchemaInfo records which model and dimension the stored vectors were written with.
type SchemaInfo struct {
	Version    int    `json:"version"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// MigrationResult describes the result of a schema check.
type MigrationResult struct {
	NeedsRebuild bool
	ModelChanged bool
	Old          SchemaInfo
	New          SchemaInfo
	Reason       string
}

// GetSchemaInfo returns the stored schema info; a fresh store yields the zero value.
func (s *VectorStore) GetSchemaInfo() (*SchemaInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}

	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchemaInfo)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &info)
	})
	return &info, err
}

// SetSchemaInfo stores the schema info.
func (s *VectorStore) SetSchemaInfo(info SchemaInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrNotInitialized
	}

	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchemaInfo, data)
	})
}

// CheckSchema compares the stored schema with the configured model and dimension.
// A dimension or version change makes existing vectors incomparable and needs a
// rebuild; a model change alone is handled by re-embedding stale records.
func (s *VectorStore) CheckSchema(model string, dimensions int) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		Old: *info,
		New: SchemaInfo{Version: CurrentSchemaVersion, Model: model, Dimensions: dimensions},
	}

	if info.Version == 0 {
		return result, nil
	}

	switch {
	case info.Version != CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("schema version changed from %d to %d", info.Version, CurrentSchemaVersion)
	case info.Dimensions != dimensions:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("embedding dimensions changed from %d to %d", info.Dimensions, dimensions)
	case info.Model != model:
		result.ModelChanged = true
		result.Reason = fmt.Sprintf("embedding model changed from %s to %s", info.Model, model)
	}

	return result, nil
}
