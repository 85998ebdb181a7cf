// Package ingest runs document conversions on a fixed pool of background workers so
// uploads can be acknowledged before their pages exist.
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"docvault/internal/logger"
	"docvault/internal/metrics"
	"docvault/internal/model"
)

var (
	ErrQueueFull = errors.New("ingest queue is full")
	ErrClosed    = errors.New("ingest queue is closed")
)

// Ingester converts one registered document into pages.
type Ingester interface {
	Ingest(ctx context.Context, doc *model.Document) (*model.Document, error)
}

// Options sizes the queue. Zero values fall back to 1 worker, 16 slots and 15 minutes.
type Options struct {
	Workers int
	Size    int
	Timeout time.Duration
}

// Queue is a bounded FIFO of documents waiting for conversion.
type Queue struct {
	ingester Ingester
	timeout  time.Duration
	jobs     chan *model.Document

	mu     sync.RWMutex
	closed bool

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts the workers. Call Close to stop them.
func New(ingester Ingester, opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Size <= 0 {
		opts.Size = 16
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ingester: ingester,
		timeout:  opts.Timeout,
		jobs:     make(chan *model.Document, opts.Size),
		base:     base,
		cancel:   cancel,
	}
	q.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go q.work()
	}
	return q
}

// Submit enqueues doc without blocking.
func (q *Queue) Submit(doc *model.Document) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	select {
	case q.jobs <- doc:
		metrics.IngestQueueDepth.Set(float64(len(q.jobs)))
		return nil
	default:
		return ErrQueueFull
	}
}

// Len is the number of documents waiting for a worker.
func (q *Queue) Len() int { return len(q.jobs) }

// Close stops accepting work and waits for queued jobs to finish. When ctx expires
// first, running conversions are canceled and ctx.Err() is returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for doc := range q.jobs {
		metrics.IngestQueueDepth.Set(float64(len(q.jobs)))
		q.run(doc)
	}
}

func (q *Queue) run(doc *model.Document) {
	ctx, cancel := context.WithTimeout(q.base, q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingest_worker_panic", logger.Fields{"document_id": doc.ID, "panic": r})
		}
	}()
	// failures are logged and recorded by the ingester
	_, _ = q.ingester.Ingest(ctx, doc)
}
