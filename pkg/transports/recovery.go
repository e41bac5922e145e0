package transports

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// RetryOptions configures a RetryTransport.
type RetryOptions struct {
	MaxRetries        int           // Attempts after the first (default 3)
	RetryDelay        time.Duration // Delay before the first retry (default 100ms)
	BackoffMultiplier float64       // Delay growth per retry (default 2)
	MaxRetryDelay     time.Duration // Upper bound of the delay (default 5s)
}

// DefaultRetryOptions returns the retry settings used for zero fields.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:        3,
		RetryDelay:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxRetryDelay:     5 * time.Second,
	}
}

// RetryTransport retries failed writes with exponential backoff. Retries run
// on the dispatch path, so they delay the log call in sync mode and the
// background queue otherwise.
type RetryTransport struct {
	next    types.Transport
	opts    RetryOptions
	retries atomic.Uint64
	sleep   func(ctx context.Context, d time.Duration) error
}

// Retry wraps next with retries. The wrapper keeps the name of next.
func Retry(next types.Transport, opts RetryOptions) *RetryTransport {
	defaults := DefaultRetryOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.BackoffMultiplier < 1 {
		opts.BackoffMultiplier = defaults.BackoffMultiplier
	}
	if opts.MaxRetryDelay <= 0 {
		opts.MaxRetryDelay = defaults.MaxRetryDelay
	}
	return &RetryTransport{next: next, opts: opts, sleep: sleepContext}
}

// Name implements types.Transport.
func (t *RetryTransport) Name() string {
	return t.next.Name()
}

// Log implements types.Transport. It returns the last error once every
// attempt failed, or the context error if ctx ends while waiting.
func (t *RetryTransport) Log(ctx context.Context, entry types.LogEntry) error {
	err := t.next.Log(ctx, entry)
	delay := t.opts.RetryDelay

	for attempt := 1; err != nil && attempt <= t.opts.MaxRetries; attempt++ {
		if serr := t.sleep(ctx, delay); serr != nil {
			return multierr.Append(err, serr)
		}
		t.retries.Add(1)
		err = t.next.Log(ctx, entry)

		delay = time.Duration(float64(delay) * t.opts.BackoffMultiplier)
		if delay > t.opts.MaxRetryDelay {
			delay = t.opts.MaxRetryDelay
		}
	}
	if err != nil {
		return errors.Wrapf(err, "after %d retries", t.opts.MaxRetries)
	}
	return nil
}

// Retries returns the number of retry attempts made so far.
func (t *RetryTransport) Retries() uint64 {
	return t.retries.Load()
}

// Close closes the wrapped transport.
func (t *RetryTransport) Close() error {
	return closeTransport(t.next)
}

// Unwrap returns the wrapped transport.
func (t *RetryTransport) Unwrap() types.Transport {
	return t.next
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FallbackTransport writes to a secondary transport when the primary fails.
type FallbackTransport struct {
	primary   types.Transport
	secondary types.Transport
	fallbacks atomic.Uint64
}

// Fallback wraps primary so that entries it rejects go to secondary. An
// error is returned only when both fail. The wrapper keeps the name of primary.
func Fallback(primary, secondary types.Transport) *FallbackTransport {
	return &FallbackTransport{primary: primary, secondary: secondary}
}

// Name implements types.Transport.
func (t *FallbackTransport) Name() string {
	return t.primary.Name()
}

// Log implements types.Transport.
func (t *FallbackTransport) Log(ctx context.Context, entry types.LogEntry) error {
	err := t.primary.Log(ctx, entry)
	if err == nil {
		return nil
	}
	t.fallbacks.Add(1)
	if ferr := t.secondary.Log(ctx, entry); ferr != nil {
		return multierr.Append(err, errors.Wrapf(ferr, "fallback %s", t.secondary.Name()))
	}
	return nil
}

// Fallbacks returns the number of entries written to the secondary transport.
func (t *FallbackTransport) Fallbacks() uint64 {
	return t.fallbacks.Load()
}

// Close closes both transports.
func (t *FallbackTransport) Close() error {
	return multierr.Append(closeTransport(t.primary), closeTransport(t.secondary))
}

// Unwrap returns the primary transport.
func (t *FallbackTransport) Unwrap() types.Transport {
	return t.primary
}
