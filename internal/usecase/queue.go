package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"feedsearch/internal/domain"
	"feedsearch/internal/port"
)

const (
	DefaultBatchSize       = 10
	DefaultInterBatchDelay = 100 * time.Millisecond
)

// QueueOptions configures an EmbeddingQueue.
type QueueOptions struct {
	BatchSize       int
	InterBatchDelay time.Duration
	Logger          *slog.Logger
	Metrics         *QueueMetrics

	// OnProgress, if set, receives per-text progress of the batch in flight.
	OnProgress func(done, total int)
}

// EmbeddingQueue embeds newly ingested items in the background. One instance
// is created per process; at most one drain loop runs at a time and at most
// one embedding request is in flight.
type EmbeddingQueue struct {
	embedder  port.Embedder
	store     port.VectorStore
	extractor port.TextExtractor
	opts      QueueOptions
	logger    *slog.Logger
	metrics   *QueueMetrics

	mu         sync.Mutex
	pending    []domain.EmbeddingTask
	inFlight   map[int64]struct{}
	processing bool
	credential string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEmbeddingQueue creates an empty queue with no credential.
func NewEmbeddingQueue(embedder port.Embedder, store port.VectorStore, extractor port.TextExtractor, opts QueueOptions) *EmbeddingQueue {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.InterBatchDelay < 0 {
		opts.InterBatchDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EmbeddingQueue{
		embedder:  embedder,
		store:     store,
		extractor: extractor,
		opts:      opts,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		inFlight:  make(map[int64]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetCredential replaces the API key used by subsequent provider calls.
// A batch already in flight keeps the key it started with.
func (q *EmbeddingQueue) SetCredential(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.credential = key
}

// Credential returns the API key currently configured.
func (q *EmbeddingQueue) Credential() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.credential
}

// Enqueue queues every item that has content and no vector for the current
// model, then starts a drain if work is pending and none is running, which
// also resumes a queue halted by a failed batch. Items already pending or in
// the batch being embedded are skipped. Without a credential it logs a warning and does nothing. It returns
// the number of tasks added.
func (q *EmbeddingQueue) Enqueue(ctx context.Context, items []domain.Item) (int, error) {
	q.mu.Lock()
	hasCredential := q.credential != ""
	q.mu.Unlock()

	if !hasCredential {
		q.logger.Warn("embedding API key not set, skipping embedding generation", "items", len(items))
		return 0, nil
	}

	model := q.embedder.ModelName()
	tasks := make([]domain.EmbeddingTask, 0, len(items))
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if item.Content == "" {
			continue
		}
		existing, err := q.store.Get(item.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to look up vector for item %d: %w", item.ID, err)
		}
		if existing != nil && existing.Model == model {
			continue
		}
		tasks = append(tasks, domain.EmbeddingTask{
			ItemID: item.ID,
			Text:   q.taskText(item),
		})
	}

	q.mu.Lock()
	queued := make(map[int64]struct{}, len(q.pending)+len(q.inFlight))
	for _, t := range q.pending {
		queued[t.ItemID] = struct{}{}
	}
	for id := range q.inFlight {
		queued[id] = struct{}{}
	}
	added := 0
	for _, t := range tasks {
		if _, dup := queued[t.ItemID]; dup {
			continue
		}
		// A batch may have committed between the lookup above and taking the lock.
		if rec, err := q.store.Get(t.ItemID); err == nil && rec != nil && rec.Model == model {
			continue
		}
		queued[t.ItemID] = struct{}{}
		q.pending = append(q.pending, t)
		added++
	}
	start := len(q.pending) > 0 && !q.processing && q.ctx.Err() == nil
	if start {
		q.processing = true
		q.wg.Add(1)
	}
	q.mu.Unlock()

	if added > 0 {
		q.logger.Info("added items to embedding queue", "added", added)
		q.metrics.recordEnqueued(ctx, added)
	}
	if start {
		go func() {
			defer q.wg.Done()
			q.processQueue()
		}()
	}

	return added, nil
}

func (q *EmbeddingQueue) taskText(item domain.Item) string {
	text := item.Content
	if q.extractor != nil {
		text = q.extractor.ExtractText(item.Content)
	}
	return strings.TrimSpace(item.Title + "\n\n" + text)
}

// processQueue drains pending tasks batch by batch. On a failed batch the
// tasks go back to the front in their original order and the loop stops;
// the next Enqueue restarts it. The processing flag is always cleared on exit.
func (q *EmbeddingQueue) processQueue() {
	runID := uuid.NewString()
	logger := q.logger.With("run", runID)
	ctx := q.ctx

	q.mu.Lock()
	logger.Info("processing embedding tasks", "pending", len(q.pending))
	q.mu.Unlock()

	stored := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 || ctx.Err() != nil {
			q.processing = false
			q.mu.Unlock()
			logger.Info("embedding queue processing complete", "stored", stored)
			return
		}
		n := min(q.opts.BatchSize, len(q.pending))
		batch := make([]domain.EmbeddingTask, n)
		copy(batch, q.pending[:n])
		q.pending = q.pending[n:]
		for _, t := range batch {
			q.inFlight[t.ItemID] = struct{}{}
		}
		credential := q.credential
		q.mu.Unlock()

		err := q.processBatch(ctx, batch, credential)

		q.mu.Lock()
		for _, t := range batch {
			delete(q.inFlight, t.ItemID)
		}
		if err != nil {
			q.pending = append(batch, q.pending...)
			q.processing = false
			remaining := len(q.pending)
			q.mu.Unlock()

			logger.Error("failed to process batch, requeued",
				"batch", len(batch),
				"pending", remaining,
				"error", err,
			)
			q.metrics.recordBatchFailure(ctx)
			return
		}
		q.mu.Unlock()

		stored += len(batch)
		logger.Info("stored embeddings", "count", len(batch))
		q.metrics.recordStored(ctx, len(batch))

		if q.opts.InterBatchDelay > 0 {
			t := time.NewTimer(q.opts.InterBatchDelay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}

func (q *EmbeddingQueue) processBatch(ctx context.Context, batch []domain.EmbeddingTask, credential string) error {
	texts := make([]string, len(batch))
	for i, t := range batch {
		texts[i] = t.Text
	}

	embeddings, err := q.embedder.EmbedBatch(ctx, texts, credential, q.opts.OnProgress)
	if err != nil {
		return err
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(batch))
	}

	model := q.embedder.ModelName()
	records := make([]domain.VectorRecord, len(batch))
	for i, t := range batch {
		records[i] = domain.VectorRecord{
			ItemID:    t.ItemID,
			Embedding: embeddings[i],
			Model:     model,
		}
	}

	return q.store.PutBatch(records)
}

// Status returns a point-in-time snapshot of the queue.
func (q *EmbeddingQueue) Status() domain.QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return domain.QueueStatus{
		QueueLength: len(q.pending),
		Processing:  q.processing,
	}
}

// Clear discards pending tasks. A batch already taken by the drain loop
// finishes on its own; stored vectors are untouched.
func (q *EmbeddingQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
}

// Wait blocks until the running drain loop, if any, exits.
func (q *EmbeddingQueue) Wait() {
	q.wg.Wait()
}

// Close stops the drain loop after its current request and waits for it.
// Pending tasks are kept but no new drain will start.
func (q *EmbeddingQueue) Close() {
	// Cancel under mu so Enqueue cannot start a drain after Wait begins.
	q.mu.Lock()
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
}
