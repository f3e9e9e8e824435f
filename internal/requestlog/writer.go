// Package requestlog records API calls and internal errors asynchronously
// and prunes them once they age out.
package requestlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"proxygate/internal/models"

	"github.com/cenkalti/backoff/v4"
)

// Store is the persistence the writer needs.
type Store interface {
	AddRequestLog(ctx context.Context, l *models.RequestLog) (int64, error)
	AddErrorLog(ctx context.Context, l *models.ErrorLog) (int64, error)
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	BufferSize  int
	MaxBodySize int
	MaxRetries  int
	// InitialInterval is the first retry delay; later delays grow
	// exponentially.
	InitialInterval time.Duration
	// WriteTimeout bounds each individual insert.
	WriteTimeout time.Duration
}

type entry struct {
	request *models.RequestLog
	err     *models.ErrorLog
}

// Writer persists log entries on a background goroutine so callers never
// wait on storage. When the buffer is full new entries are dropped.
type Writer struct {
	store Store
	opts  WriterOptions

	mu      sync.RWMutex
	closed  bool
	entries chan entry
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	dropped atomic.Int64
	failed  atomic.Int64
}

// NewWriter starts the background worker.
func NewWriter(store Store, opts WriterOptions) *Writer {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = models.DefaultMaxBodySize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Writer{
		store:   store,
		opts:    opts,
		entries: make(chan entry, opts.BufferSize),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	go w.run()
	return w
}

// Record queues a request log. It reports false if the entry was dropped.
func (w *Writer) Record(l models.RequestLog) bool {
	l.Sanitize(w.opts.MaxBodySize)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	return w.enqueue(entry{request: &l})
}

// RecordError queues an error log.
func (w *Writer) RecordError(l models.ErrorLog) {
	l.Sanitize(w.opts.MaxBodySize)
	if l.RequestTime.IsZero() {
		l.RequestTime = time.Now().UTC()
	}
	w.enqueue(entry{err: &l})
}

func (w *Writer) enqueue(e entry) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.entries <- e:
		return true
	default:
		n := w.dropped.Add(1)
		slog.Warn("Log buffer full, dropping entry", "dropped_total", n)
		return false
	}
}

// Dropped returns how many entries were discarded because the buffer was
// full or the writer was closed.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Failed returns how many entries could not be stored after all retries.
func (w *Writer) Failed() int64 { return w.failed.Load() }

// Close stops accepting entries and waits for queued ones to be written.
// If ctx expires first, pending retries are abandoned.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.entries)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		w.cancel()
		return nil
	case <-ctx.Done():
		w.cancel()
		<-w.done
		return fmt.Errorf("request log writer did not drain: %w", ctx.Err())
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for e := range w.entries {
		w.write(e)
	}
}

func (w *Writer) write(e entry) {
	op := func() error {
		ctx, cancel := context.WithTimeout(w.ctx, w.opts.WriteTimeout)
		defer cancel()
		var err error
		if e.request != nil {
			_, err = w.store.AddRequestLog(ctx, e.request)
		} else {
			_, err = w.store.AddErrorLog(ctx, e.err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = w.opts.InitialInterval
	var b backoff.BackOff = backoff.WithMaxRetries(policy, uint64(w.opts.MaxRetries))
	b = backoff.WithContext(b, w.ctx)

	notify := func(err error, next time.Duration) {
		slog.Debug("Retrying log write", "error", err, "backoff", next)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		w.failed.Add(1)
		kind := "request"
		if e.err != nil {
			kind = "error"
		}
		slog.Error("Failed to persist log entry", "kind", kind, "error", err)
	}
}
