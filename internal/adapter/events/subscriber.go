package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"feedsearch/internal/domain"
)

// ItemsAdded is the payload published when the feed reader ingests new items.
type ItemsAdded struct {
	Items []domain.Item `json:"items"`
}

// ItemsDeleted is the payload published when items are removed from the feed reader.
type ItemsDeleted struct {
	IDs []int64 `json:"ids"`
}

type Enqueuer interface {
	Enqueue(ctx context.Context, items []domain.Item) (int, error)
}

type VectorDeleter interface {
	Delete(itemID int64) error
}

// ItemIndex is an in-memory view of items that must follow additions and deletions.
type ItemIndex interface {
	Put(items ...domain.Item)
	Remove(ids ...int64)
}

// Subscriber applies item events to the catalog, the embedding queue and the vector store.
type Subscriber struct {
	client         *Client
	subjectAdded   string
	subjectDeleted string
	queue          Enqueuer
	vectors        VectorDeleter
	indexes        []ItemIndex
	logger         *slog.Logger
	subs           []*nats.Subscription
}

// NewSubscriber creates a subscriber. client may be nil when handlers are driven directly.
func NewSubscriber(client *Client, subjectAdded, subjectDeleted string, queue Enqueuer, vectors VectorDeleter, logger *slog.Logger, indexes ...ItemIndex) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		client:         client,
		subjectAdded:   subjectAdded,
		subjectDeleted: subjectDeleted,
		queue:          queue,
		vectors:        vectors,
		indexes:        indexes,
		logger:         logger,
	}
}

// Start subscribes to the added and deleted subjects.
func (s *Subscriber) Start(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("events: no NATS client")
	}

	subjects := map[string]nats.MsgHandler{
		s.subjectAdded:   func(msg *nats.Msg) { s.handleAdded(ctx, msg) },
		s.subjectDeleted: func(msg *nats.Msg) { s.handleDeleted(ctx, msg) },
	}

	for subject, handler := range subjects {
		sub, err := s.client.Subscribe(subject, handler)
		if err != nil {
			s.Stop()
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
		s.logger.Info("subscribed to item events", "subject", subject)
	}

	return nil
}

// Stop unsubscribes from all subjects.
func (s *Subscriber) Stop() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

func (s *Subscriber) handleAdded(ctx context.Context, msg *nats.Msg) {
	defer s.ack(msg)

	var event ItemsAdded
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Error("failed to parse items added event", "error", err, "subject", msg.Subject)
		return
	}
	if len(event.Items) == 0 {
		return
	}

	for _, idx := range s.indexes {
		idx.Put(event.Items...)
	}

	added, err := s.queue.Enqueue(ctx, event.Items)
	if err != nil {
		s.logger.Error("failed to enqueue items", "error", err, "items", len(event.Items))
		return
	}

	s.logger.Info("items added", "items", len(event.Items), "queued", added)
}

func (s *Subscriber) handleDeleted(ctx context.Context, msg *nats.Msg) {
	defer s.ack(msg)

	var event ItemsDeleted
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		s.logger.Error("failed to parse items deleted event", "error", err, "subject", msg.Subject)
		return
	}

	for _, idx := range s.indexes {
		idx.Remove(event.IDs...)
	}

	removed := 0
	for _, id := range event.IDs {
		if err := s.vectors.Delete(id); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete vector", "error", err, "item_id", id)
			continue
		}
		removed++
	}

	s.logger.Info("items deleted", "items", len(event.IDs), "vectors_removed", removed)
}

func (s *Subscriber) ack(msg *nats.Msg) {
	if msg.Reply != "" {
		_ = msg.Ack()
	}
}
