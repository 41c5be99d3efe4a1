package store

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"feedsearch/internal/domain"
)

func openTestStore(t *testing.T) (*VectorStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestPutAndGet(t *testing.T) {
	s, _ := openTestStore(t)

	if err := s.Put(42, []float32{1, 2, 3}, "text-embedding-3-small"); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Get(42)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("expected record, got nil")
	}
	if rec.ItemID != 42 || rec.Model != "text-embedding-3-small" || len(rec.Embedding) != 3 {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}

	missing, err := s.Get(7)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing record, got %+v", missing)
	}
}

func TestPutReplacesInPlace(t *testing.T) {
	s, _ := openTestStore(t)

	if err := s.Put(1, []float32{1, 0}, "old-model"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(1, []float32{0, 1}, "new-model"); err != nil {
		t.Fatal(err)
	}

	count, _ := s.Count()
	if count != 1 {
		t.Errorf("expected 1 record after upsert, got %d", count)
	}
	rec, _ := s.Get(1)
	if rec.Model != "new-model" || rec.Embedding[1] != 1 {
		t.Errorf("expected replaced record, got %+v", rec)
	}
}

func TestPutBatchAndGetBatch(t *testing.T) {
	s, _ := openTestStore(t)

	records := []domain.VectorRecord{
		{ItemID: 1, Embedding: []float32{1, 0}, Model: "m"},
		{ItemID: 2, Embedding: []float32{0, 1}, Model: "m"},
		{ItemID: 3, Embedding: []float32{0.9, 0.1}, Model: "m"},
	}
	if err := s.PutBatch(records); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetBatch([]int64{3, 1, 99, 1})
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]int64, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ItemID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("expected items [1 3], got %v", ids)
	}

	all, err := s.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}
}

func TestPutBatchCopiesInput(t *testing.T) {
	s, _ := openTestStore(t)

	vec := []float32{1, 2}
	if err := s.Put(5, vec, "m"); err != nil {
		t.Fatal(err)
	}
	vec[0] = 100

	rec, _ := s.Get(5)
	if rec.Embedding[0] != 1 {
		t.Errorf("stored embedding changed with caller slice: %v", rec.Embedding)
	}
}

func TestDeleteAndClear(t *testing.T) {
	s, _ := openTestStore(t)

	for i := int64(1); i <= 3; i++ {
		if err := s.Put(i, []float32{float32(i)}, "m"); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Delete(2); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(2); err != nil {
		t.Errorf("deleting a missing record should not fail: %v", err)
	}
	if count, _ := s.Count(); count != 2 {
		t.Errorf("expected 2 records after delete, got %d", count)
	}

	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if count, _ := s.Count(); count != 0 {
		t.Errorf("expected 0 records after clear, got %d", count)
	}
	if err := s.Put(9, []float32{1}, "m"); err != nil {
		t.Errorf("put after clear failed: %v", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(-3, []float32{0.5, 0.25}, "m"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	rec, err := reopened.Get(-3)
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil || rec.Embedding[1] != 0.25 || rec.Model != "m" {
		t.Errorf("expected persisted record, got %+v", rec)
	}
}

func TestNotInitialized(t *testing.T) {
	var zero VectorStore
	if _, err := zero.Count(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from zero store, got %v", err)
	}

	s, _ := openTestStore(t)
	s.Close()

	if err := s.Put(1, []float32{1}, "m"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Put: expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.Get(1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Get: expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.GetAll(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetAll: expected ErrNotInitialized, got %v", err)
	}
	if err := s.Delete(1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Delete: expected ErrNotInitialized, got %v", err)
	}
	if err := s.Clear(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Clear: expected ErrNotInitialized, got %v", err)
	}
}

func TestCheckSchema(t *testing.T) {
	s, _ := openTestStore(t)

	res, err := s.CheckSchema("m1", 1536)
	if err != nil {
		t.Fatal(err)
	}
	if res.NeedsRebuild || res.ModelChanged {
		t.Errorf("fresh store should not need rebuild: %+v", res)
	}

	if err := s.SetSchemaInfo(res.New); err != nil {
		t.Fatal(err)
	}

	res, _ = s.CheckSchema("m2", 1536)
	if res.NeedsRebuild || !res.ModelChanged {
		t.Errorf("expected model change without rebuild, got %+v", res)
	}

	res, _ = s.CheckSchema("m1", 512)
	if !res.NeedsRebuild {
		t.Errorf("expected rebuild on dimension change, got %+v", res)
	}
}
