// Package behavior records ask interactions asynchronously so answering
// latency never depends on the metadata store.
package behavior

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// writeTimeout bounds each background persistence attempt.
const writeTimeout = 5 * time.Second

// Store persists behavior rows.
type Store interface {
	RecordQuery(ctx context.Context, b *models.QueryBehavior) error
}

// Recorder queues behavior rows on a bounded channel and persists them from
// a single background worker. Record never blocks: when the queue is full
// the row is dropped and counted.
type Recorder struct {
	store   Store
	queue   chan *models.QueryBehavior
	logger  *zap.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewRecorder creates a recorder with the given queue size and starts its worker.
func NewRecorder(store Store, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:  store,
		queue:  make(chan *models.QueryBehavior, queueSize),
		logger: logger,
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for b := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.RecordQuery(ctx, b); err != nil {
			r.logger.Warn("failed to persist query behavior", zap.String("id", b.ID), zap.Error(err))
		}
		cancel()
	}
}

// Record enqueues one behavior row. The row gets an ID and timestamp if it
// has none. Rows offered to a full queue or a closed recorder are dropped.
func (r *Recorder) Record(b *models.QueryBehavior) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- b:
	default:
		r.dropped++
		r.logger.Warn("behavior queue full, dropping record", zap.String("query", b.Query), zap.Int64("dropped", r.dropped))
	}
}

// Dropped returns how many rows were dropped due to a full queue.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops accepting rows, drains the queue, and waits for the worker.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	close(r.queue)
	r.wg.Wait()
}
