package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// QueueMetrics counts embedding queue activity on the global OTEL meter.
// A nil *QueueMetrics records nothing.
type QueueMetrics struct {
	enqueued      metric.Int64Counter
	stored        metric.Int64Counter
	batchFailures metric.Int64Counter
}

func NewQueueMetrics() (*QueueMetrics, error) {
	meter := otel.Meter("feedsearch/queue")

	enqueued, err := meter.Int64Counter(
		"feedsearch.queue.enqueued",
		metric.WithDescription("Items added to the embedding queue"),
	)
	if err != nil {
		return nil, err
	}

	stored, err := meter.Int64Counter(
		"feedsearch.embeddings.stored",
		metric.WithDescription("Embeddings persisted by the drain loop"),
	)
	if err != nil {
		return nil, err
	}

	batchFailures, err := meter.Int64Counter(
		"feedsearch.embeddings.batch_failures",
		metric.WithDescription("Batches requeued after a provider or store failure"),
	)
	if err != nil {
		return nil, err
	}

	return &QueueMetrics{
		enqueued:      enqueued,
		stored:        stored,
		batchFailures: batchFailures,
	}, nil
}

func (m *QueueMetrics) recordEnqueued(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.enqueued.Add(ctx, int64(n))
}

func (m *QueueMetrics) recordStored(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.stored.Add(ctx, int64(n))
}

func (m *QueueMetrics) recordBatchFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.batchFailures.Add(ctx, 1)
}
