package buffer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/omnilog/internal/metrics"
	"github.com/wayneeseguin/omnilog/pkg/stores"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// ErrClosed is returned when entries are enqueued on a disposed Controller.
var ErrClosed = errors.New("buffer controller is disposed")

const (
	// DefaultMaxBufferSize is the pending entry count that triggers a flush.
	DefaultMaxBufferSize = 100
	// DefaultFlushInterval is the period of the background flush timer.
	DefaultFlushInterval = 2 * time.Second
)

// FlushHandler delivers a batch of entries, in order.
type FlushHandler func(ctx context.Context, entries []types.LogEntry) error

// Options configures a Controller.
type Options struct {
	// Store persists pending entries. Defaults to an in-memory store.
	Store types.BufferStore
	// MaxBufferSize triggers a flush once this many entries are pending.
	// Values <= 0 use DefaultMaxBufferSize.
	MaxBufferSize int
	// FlushInterval is the timer period. Zero or negative disables the timer.
	FlushInterval time.Duration
	// ClearAfterSuccess keeps a batch persisted until the handler succeeds,
	// and puts it back at the head of the queue when the handler fails.
	ClearAfterSuccess bool
	// ErrorHandler receives errors from flushes nobody waits on
	// (timer and dispose). Optional.
	ErrorHandler func(err error)
	// Metrics records flush counts. Optional.
	Metrics *metrics.Collector
}

type flushCall struct {
	done chan struct{}
	err  error
}

// Controller accumulates entries, persists them through a BufferStore and
// hands them to a FlushHandler in batches.
//
// Lock ordering: flightMu is never held while acquiring mu for longer than a
// field read, and mu is never held while the handler runs.
type Controller struct {
	mu       sync.Mutex // guards buffer, flushing, ready, closed and all store calls
	store    types.BufferStore
	buffer   []types.LogEntry
	flushing []types.LogEntry // in-flight batch, only kept with clearAfterSuccess
	ready    bool
	closed   bool // set by Dispose; rejects enqueues

	flightMu sync.Mutex
	inflight *flushCall
	disposed bool

	maxSize           int
	interval          time.Duration
	clearAfterSuccess bool
	handler           FlushHandler
	onError           func(error)
	metrics           *metrics.Collector

	flushes       atomic.Uint64
	flushedCount  atomic.Uint64
	flushFailures atomic.Uint64

	ticker        *time.Ticker
	stop          chan struct{}
	disposeOnce   sync.Once
	disposeResult chan error
}

// New creates a Controller and starts its flush timer when an interval is set.
func New(opts Options, handler FlushHandler) *Controller {
	c := &Controller{
		store:             opts.Store,
		maxSize:           opts.MaxBufferSize,
		interval:          opts.FlushInterval,
		clearAfterSuccess: opts.ClearAfterSuccess,
		handler:           handler,
		onError:           opts.ErrorHandler,
		metrics:           opts.Metrics,
	}
	if c.store == nil {
		c.store = stores.NewMemoryStore()
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxBufferSize
	}

	if c.interval > 0 {
		c.ticker = time.NewTicker(c.interval)
		c.stop = make(chan struct{})
		go c.run(c.ticker, c.stop)
	}

	return c
}

// Enqueue appends entry to the pending buffer and persists the whole buffer.
// The first call loads any backlog left in the store. When the buffer reaches
// MaxBufferSize a flush runs before Enqueue returns.
func (c *Controller) Enqueue(ctx context.Context, entry types.LogEntry) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.ensureReadyLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	c.buffer = append(c.buffer, entry)
	err := c.persistLocked(ctx)
	pending := len(c.buffer)
	c.mu.Unlock()

	if err != nil {
		return err
	}
	if pending >= c.maxSize {
		return c.Flush(ctx)
	}
	return nil
}

// Flush drains the pending buffer through the handler. If a flush is already
// running, Flush waits for it and returns its result instead of starting another.
// The handler runs with ctx detached from its cancellation; ctx bounds the
// store calls and the wait only.
func (c *Controller) Flush(ctx context.Context) error {
	return c.flush(ctx, false)
}

func (c *Controller) flush(ctx context.Context, fromTimer bool) error {
	c.flightMu.Lock()
	if fromTimer && c.disposed {
		c.flightMu.Unlock()
		return nil
	}
	if call := c.inflight; call != nil {
		c.flightMu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &flushCall{done: make(chan struct{})}
	c.inflight = call
	c.flightMu.Unlock()

	call.err = c.performFlush(ctx)

	c.flightMu.Lock()
	c.inflight = nil
	c.flightMu.Unlock()
	close(call.done)

	return call.err
}

func (c *Controller) performFlush(ctx context.Context) error {
	c.mu.Lock()
	if err := c.ensureReadyLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return nil
	}

	batch := c.buffer
	c.buffer = nil

	if c.clearAfterSuccess {
		c.flushing = batch
	} else if err := c.store.Clear(ctx); err != nil {
		// Nothing was handed out; keep the batch pending.
		c.buffer = batch
		c.mu.Unlock()
		return errors.Wrap(err, "clear buffered entries")
	}
	c.mu.Unlock()

	err := c.invoke(context.WithoutCancel(ctx), batch)
	c.flushes.Add(1)
	c.flushedCount.Add(uint64(len(batch)))
	if err != nil {
		c.flushFailures.Add(1)
	}
	if c.metrics != nil {
		c.metrics.TrackFlush(len(batch), err)
	}

	if !c.clearAfterSuccess {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushing = nil
	if err != nil {
		requeued := make([]types.LogEntry, 0, len(batch)+len(c.buffer))
		requeued = append(requeued, batch...)
		c.buffer = append(requeued, c.buffer...)
	}
	if perr := c.persistLocked(ctx); perr != nil && err == nil {
		err = perr
	}
	return err
}

func (c *Controller) invoke(ctx context.Context, batch []types.LogEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("flush handler panic: %v", r)
		}
	}()
	return c.handler(ctx, batch)
}

// ensureReadyLocked loads the persisted backlog once. Must be called with mu held.
func (c *Controller) ensureReadyLocked(ctx context.Context) error {
	if c.ready {
		return nil
	}
	backlog, err := c.store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load buffered entries")
	}
	if len(backlog) > 0 {
		c.buffer = append(backlog, c.buffer...)
	}
	c.ready = true
	return nil
}

// persistLocked saves everything not yet confirmed delivered. Must be called with mu held.
func (c *Controller) persistLocked(ctx context.Context) error {
	view := c.buffer
	if len(c.flushing) > 0 {
		view = make([]types.LogEntry, 0, len(c.flushing)+len(c.buffer))
		view = append(view, c.flushing...)
		view = append(view, c.buffer...)
	}

	var err error
	if len(view) == 0 {
		err = c.store.Clear(ctx)
	} else {
		err = c.store.Save(ctx, view)
	}
	return errors.Wrap(err, "save buffered entries")
}

// Pending returns the number of entries waiting for the next flush.
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// Stats is a snapshot of a Controller's counters.
type Stats struct {
	Pending       int
	Flushes       uint64
	Flushed       uint64
	FlushFailures uint64
}

// Stats returns the current counters. Only flushes that reached the handler count.
func (c *Controller) Stats() Stats {
	return Stats{
		Pending:       c.Pending(),
		Flushes:       c.flushes.Load(),
		Flushed:       c.flushedCount.Load(),
		FlushFailures: c.flushFailures.Load(),
	}
}

// Dispose stops the flush timer and starts one final flush in the background.
// No timer-triggered flush and no Enqueue succeeds after Dispose returns. The
// returned channel yields the final flush result and is then closed; repeated
// calls return the same channel.
func (c *Controller) Dispose() <-chan error {
	c.disposeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.flightMu.Lock()
		c.disposed = true
		c.flightMu.Unlock()

		if c.ticker != nil {
			c.ticker.Stop()
			close(c.stop)
		}

		result := make(chan error, 1)
		c.disposeResult = result
		go func() {
			err := c.Flush(context.Background())
			// A flush already in flight was joined; entries enqueued while it
			// ran are still pending.
			if c.Pending() > 0 {
				err = multierr.Append(err, c.Flush(context.Background()))
			}
			if err != nil {
				c.reportError(err)
			}
			result <- err
			close(result)
		}()
	})
	return c.disposeResult
}

func (c *Controller) run(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.flush(context.Background(), true); err != nil {
				c.reportError(err)
			}
		}
	}
}

func (c *Controller) reportError(err error) {
	if c.onError != nil {
		c.onError(err)
	}
}
