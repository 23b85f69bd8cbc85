package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// OpType represents the type of write operation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// WriteOp is a single fire-and-forget write. The pipeline uses the sink for
// job bookkeeping (progress, warnings) so generation never blocks on a
// store round trip.
type WriteOp struct {
	Collection string
	Document   map[string]any
	DocID      string // For updates/deletes (empty for creates)
	Op         OpType
}

// SinkConfig configures the write sink.
type SinkConfig struct {
	Client    *Client
	QueueSize int // Buffer size (default: 256)
	Logger    *slog.Logger
}

// Sink applies queued writes to the store in order on a single worker
// goroutine. Ordering matters: progress updates for one job must land in
// the sequence they were issued.
type Sink struct {
	client *Client
	logger *slog.Logger

	queue chan WriteOp

	wg       sync.WaitGroup
	stopOnce sync.Once
	closed   chan struct{}
}

// NewSink creates a new write sink.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sink{
		client: cfg.Client,
		logger: cfg.Logger,
		queue:  make(chan WriteOp, cfg.QueueSize),
		closed: make(chan struct{}),
	}
}

// Start begins applying write operations. Run once.
func (s *Sink) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Sink) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.closed:
			// Drain what is already queued, then stop.
			for {
				select {
				case op := <-s.queue:
					s.apply(ctx, op)
				default:
					return
				}
			}
		case op := <-s.queue:
			s.apply(ctx, op)
		}
	}
}

func (s *Sink) apply(ctx context.Context, op WriteOp) {
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	var err error
	switch op.Op {
	case OpCreate:
		_, err = s.client.Create(applyCtx, op.Collection, op.Document)
	case OpUpdate:
		err = s.client.Update(applyCtx, op.Collection, op.DocID, op.Document)
	case OpDelete:
		err = s.client.Delete(applyCtx, op.Collection, op.DocID)
	}
	if err != nil {
		s.logger.Warn("sink write failed",
			"op", string(op.Op),
			"collection", op.Collection,
			"doc_id", op.DocID,
			"error", err)
	}
}

// Send queues a write. Returns ErrSinkClosed after Stop, and drops the op
// with a warning if the queue is full rather than blocking the caller.
func (s *Sink) Send(op WriteOp) error {
	select {
	case <-s.closed:
		return ErrSinkClosed
	default:
	}

	select {
	case s.queue <- op:
		return nil
	default:
		s.logger.Warn("sink queue full, dropping write",
			"op", string(op.Op),
			"collection", op.Collection)
		return nil
	}
}

// Stop drains the queue and shuts down the worker.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		close(s.closed)
		s.wg.Wait()
	})
}
