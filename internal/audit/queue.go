package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"pcbuild-service/internal/common/logger"
	"pcbuild-service/internal/common/metrics"
	"pcbuild-service/internal/models"
)

var (
	ErrQueueFull   = errors.New("audit queue is full")
	ErrQueueClosed = errors.New("audit queue is closed")
)

const writeTimeout = 5 * time.Second

// Queue hands records to a single background writer so Record never waits on
// the wrapped sink. Records that do not fit are dropped.
type Queue struct {
	next    Sink
	log     logger.Logger
	records chan models.UnresolvedComponent
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the writer. Close must be called to stop it.
func NewQueue(next Sink, size int, log logger.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	q := &Queue{
		next:    next,
		log:     log.With(map[string]interface{}{"component": "audit-queue"}),
		records: make(chan models.UnresolvedComponent, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) Record(_ context.Context, rec models.UnresolvedComponent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.AuditRecordsDropped.WithLabelValues("closed").Inc()
		return ErrQueueClosed
	}

	select {
	case q.records <- rec:
		return nil
	default:
		metrics.AuditRecordsDropped.WithLabelValues("full").Inc()
		return ErrQueueFull
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for rec := range q.records {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := q.next.Record(ctx, rec)
		cancel()
		if err != nil {
			metrics.AuditRecordsDropped.WithLabelValues("write").Inc()
			q.log.Warn("Failed to write audit record", map[string]interface{}{
				"buildId":  rec.BuildID,
				"category": string(rec.Category),
				"error":    err,
			})
		}
	}
}

// Close drains queued records, stops the writer and closes the wrapped sink
// if it holds resources.
func (q *Queue) Close() error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.records)
	}
	q.mu.Unlock()

	<-q.done
	if c, ok := q.next.(Closer); ok {
		return c.Close()
	}
	return nil
}
