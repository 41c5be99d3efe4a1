package events

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"feedsearch/internal/adapter/feed"
	"feedsearch/internal/domain"
)

type recordingQueue struct {
	enqueued [][]domain.Item
	err      error
}

func (q *recordingQueue) Enqueue(ctx context.Context, items []domain.Item) (int, error) {
	if q.err != nil {
		return 0, q.err
	}
	q.enqueued = append(q.enqueued, items)
	return len(items), nil
}

type recordingVectors struct {
	deleted []int64
	fail    map[int64]bool
}

func (v *recordingVectors) Delete(itemID int64) error {
	if v.fail[itemID] {
		return errors.New("store closed")
	}
	v.deleted = append(v.deleted, itemID)
	return nil
}

func TestHandleAdded(t *testing.T) {
	queue := &recordingQueue{}
	catalog := feed.NewCatalog()
	s := NewSubscriber(nil, "feed.items.added", "feed.items.deleted", queue, &recordingVectors{}, nil, catalog)

	msg := &nats.Msg{
		Subject: "feed.items.added",
		Data:    []byte(`{"items":[{"_id":1,"title":"One","content":"<p>a</p>"},{"_id":2,"title":"Two","content":"<p>b</p>"}]}`),
	}
	s.handleAdded(context.Background(), msg)

	if len(queue.enqueued) != 1 || len(queue.enqueued[0]) != 2 {
		t.Fatalf("expected one enqueue of 2 items, got %v", queue.enqueued)
	}
	if queue.enqueued[0][1].Title != "Two" {
		t.Errorf("unexpected item %+v", queue.enqueued[0][1])
	}
	if catalog.Len() != 2 {
		t.Errorf("expected catalog to hold 2 items, got %d", catalog.Len())
	}
}

func TestHandleAdded_BadPayload(t *testing.T) {
	queue := &recordingQueue{}
	catalog := feed.NewCatalog()
	s := NewSubscriber(nil, "added", "deleted", queue, &recordingVectors{}, nil, catalog)

	s.handleAdded(context.Background(), &nats.Msg{Subject: "added", Data: []byte(`not json`)})

	if len(queue.enqueued) != 0 || catalog.Len() != 0 {
		t.Error("malformed event should be ignored")
	}
}

func TestHandleAdded_EnqueueErrorKeepsCatalog(t *testing.T) {
	queue := &recordingQueue{err: errors.New("boom")}
	catalog := feed.NewCatalog()
	s := NewSubscriber(nil, "added", "deleted", queue, &recordingVectors{}, nil, catalog)

	s.handleAdded(context.Background(), &nats.Msg{Subject: "added", Data: []byte(`{"items":[{"_id":5,"title":"x","content":"y"}]}`)})

	if _, ok := catalog.Get(5); !ok {
		t.Error("item should stay searchable by keyword even if enqueue fails")
	}
}

func TestHandleDeleted(t *testing.T) {
	vectors := &recordingVectors{fail: map[int64]bool{3: true}}
	catalog := feed.NewCatalog()
	catalog.Put(domain.Item{ID: 1}, domain.Item{ID: 2}, domain.Item{ID: 3})
	s := NewSubscriber(nil, "added", "deleted", &recordingQueue{}, vectors, nil, catalog)

	s.handleDeleted(context.Background(), &nats.Msg{Subject: "deleted", Data: []byte(`{"ids":[1,3]}`)})

	if len(vectors.deleted) != 1 || vectors.deleted[0] != 1 {
		t.Errorf("expected vector 1 deleted, got %v", vectors.deleted)
	}
	if catalog.Len() != 1 {
		t.Errorf("expected 1 item left in catalog, got %d", catalog.Len())
	}
	if _, ok := catalog.Get(2); !ok {
		t.Error("item 2 should remain")
	}
}

func TestStart_RequiresClient(t *testing.T) {
	s := NewSubscriber(nil, "added", "deleted", &recordingQueue{}, &recordingVectors{}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error without a NATS client")
	}
}

func TestDurableName(t *testing.T) {
	cases := map[string]string{
		"feed.items.added": "feedsearch-feed-items-added",
		"feed.items.>":     "feedsearch-feed-items-all",
		"feed.*.deleted":   "feedsearch-feed-any-deleted",
	}
	for subject, want := range cases {
		if got := durableName("feedsearch", subject); got != want {
			t.Errorf("durableName(%q) = %q, want %q", subject, got, want)
		}
	}
}
