package omnilog

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/internal/metrics"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Dispatcher delivers entries to an ordered list of transports. Each transport
// is invoked in turn and isolated from the others: an error or panic in one is
// reported and the next transport still runs.
type Dispatcher struct {
	transports   []types.Transport
	onError      ErrorHook
	errorHandler ErrorHandler
	metrics      *metrics.Collector
}

// NewDispatcher creates a Dispatcher. Transport failures go to onError when it
// is set, else to errorHandler. collector may be nil.
func NewDispatcher(transports []types.Transport, onError ErrorHook, errorHandler ErrorHandler, collector *metrics.Collector) *Dispatcher {
	if errorHandler == nil {
		errorHandler = getDefaultErrorHandler()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	return &Dispatcher{
		transports:   transports,
		onError:      onError,
		errorHandler: errorHandler,
		metrics:      collector,
	}
}

// Dispatch sends entry to every transport in configured order and waits for
// each before starting the next. Transport failures never reach the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, entry types.LogEntry) {
	d.dispatch(ctx, entry)
}

// DispatchBatch dispatches entries one after another. It returns an error
// wrapping ErrDeliveryFailed when some entry reached no transport; individual
// failures are still reported per transport.
func (d *Dispatcher) DispatchBatch(ctx context.Context, entries []types.LogEntry) error {
	undelivered := 0
	for _, entry := range entries {
		if d.dispatch(ctx, entry) == 0 && len(d.transports) > 0 {
			undelivered++
		}
	}
	if undelivered > 0 {
		return errors.Wrapf(ErrDeliveryFailed, "%d of %d entries", undelivered, len(entries))
	}
	return nil
}

// dispatch returns the number of transports that accepted the entry.
func (d *Dispatcher) dispatch(ctx context.Context, entry types.LogEntry) int {
	delivered := 0
	for _, transport := range d.transports {
		start := time.Now()
		err := d.invoke(ctx, transport, entry)
		d.metrics.TrackDispatch(time.Since(start))

		if err != nil {
			d.metrics.TrackTransportError(transport.Name())
			d.report(err, entry, transport.Name())
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) invoke(ctx context.Context, transport types.Transport, entry types.LogEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("transport panic: %v", r)
		}
	}()
	return transport.Log(ctx, entry)
}

func (d *Dispatcher) report(err error, entry types.LogEntry, name string) {
	if d.onError == nil {
		d.errorHandler(newLogError("dispatch", name, "transport error", err, ErrorLevelMedium))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.errorHandler(newLogError("on_error", name, "error hook panicked",
				errors.Errorf("panic: %v (reporting: %v)", r, err), ErrorLevelHigh))
		}
	}()
	d.onError(err, &entry, name)
}
