package omnilog

import (
	"context"
	"sync"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// queued is one unit of background work. A non-nil sync channel is a drain
// marker: the worker closes it once everything queued before it was dispatched.
type queued struct {
	ctx   context.Context
	entry types.LogEntry
	sync  chan struct{}
}

type submitResult int

const (
	submitted submitResult = iota
	submitDropped
	submitClosed
)

// worker dispatches background entries in submission order on a single goroutine.
type worker struct {
	mu     sync.RWMutex // guards closed and sends on queue
	closed bool
	queue  chan queued
	done   chan struct{}
}

func newWorker(size int, dispatcher *Dispatcher) *worker {
	w := &worker{
		queue: make(chan queued, size),
		done:  make(chan struct{}),
	}
	go w.run(dispatcher)
	return w
}

func (w *worker) run(dispatcher *Dispatcher) {
	defer close(w.done)
	for item := range w.queue {
		if item.sync != nil {
			close(item.sync)
			continue
		}
		dispatcher.Dispatch(item.ctx, item.entry)
	}
}

// submit queues entry without blocking. The caller's context is detached from
// its cancellation so values such as the correlation id survive the return.
func (w *worker) submit(ctx context.Context, entry types.LogEntry) submitResult {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return submitClosed
	}
	select {
	case w.queue <- queued{ctx: context.WithoutCancel(ctx), entry: entry}:
		return submitted
	default:
		return submitDropped
	}
}

// drain waits until every entry submitted before the call has been dispatched.
func (w *worker) drain(ctx context.Context) error {
	marker := make(chan struct{})

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return w.wait(ctx)
	}
	select {
	case w.queue <- queued{sync: marker}:
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop closes the queue; the worker exits after dispatching what is left.
func (w *worker) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
}

func (w *worker) wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
