package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/hrchat/internal/domain"
)

// Saver is the write half of Adapter.
type Saver interface {
	Save(ctx context.Context, identity string, c domain.Collection) error
}

// Writer persists collection snapshots in the background.
// Snapshots for the same identity coalesce: only the latest one is written.
type Writer struct {
	saver   Saver
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]domain.Collection
	order   []string

	kick    chan struct{}
	flushCh chan chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// NewWriter starts a background writer. timeout bounds each individual save.
func NewWriter(saver Saver, timeout time.Duration, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &Writer{
		saver:   saver,
		logger:  logger,
		timeout: timeout,
		pending: make(map[string]domain.Collection),
		kick:    make(chan struct{}, 1),
		flushCh: make(chan chan struct{}),
		done:    make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// Enqueue schedules a snapshot write. It never blocks on I/O.
// The caller must not mutate c afterwards.
func (w *Writer) Enqueue(identity string, c domain.Collection) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Warn("snapshot enqueued after writer closed, saving inline", "user", identity)
		// The worker may still be draining an older snapshot.
		w.wg.Wait()
		w.save(identity, c)
		return
	}
	if _, queued := w.pending[identity]; !queued {
		w.order = append(w.order, identity)
	}
	w.pending[identity] = c
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// Flush blocks until every snapshot enqueued before the call has been written.
func (w *Writer) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case w.flushCh <- ack:
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes everything still pending and stops the worker.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return nil
}

func (w *Writer) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			w.drain()
			return
		case <-w.kick:
			w.drain()
		case ack := <-w.flushCh:
			w.drain()
			close(ack)
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if len(w.order) == 0 {
			w.mu.Unlock()
			return
		}
		identity := w.order[0]
		w.order = w.order[1:]
		c := w.pending[identity]
		delete(w.pending, identity)
		w.mu.Unlock()

		w.save(identity, c)
	}
}

func (w *Writer) save(identity string, c domain.Collection) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.saver.Save(ctx, identity, c); err != nil {
		w.logger.Error("failed to persist sessions", "user", identity, "sessions", len(c), "error", err)
		return
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		w.logger.Warn("slow session persist", "user", identity, "duration_ms", d.Milliseconds())
	}
}
