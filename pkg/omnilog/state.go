package omnilog

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/omnilog/internal/buffer"
	"github.com/wayneeseguin/omnilog/internal/metrics"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// configState is everything owned by one installed configuration. It is
// created by Configure and retired when the next Configure or Shutdown
// replaces it; loggers created under it remember its generation.
type configState struct {
	cfg        Config
	generation uint64
	dispatcher *Dispatcher
	buffer     *buffer.Controller // nil unless buffering is enabled
	worker     *worker            // nil unless dispatch is in the background
	metrics    *metrics.Collector
}

func newConfigState(cfg Config, generation uint64, collector *metrics.Collector) *configState {
	s := &configState{
		cfg:        cfg,
		generation: generation,
		metrics:    collector,
	}
	s.dispatcher = NewDispatcher(cfg.Transports, cfg.OnError, cfg.ErrorHandler, collector)

	if cfg.bufferingEnabled() {
		s.buffer = buffer.New(buffer.Options{
			Store:             cfg.Buffering.Store,
			MaxBufferSize:     cfg.Buffering.MaxBufferSize,
			FlushInterval:     cfg.Buffering.FlushInterval,
			ClearAfterSuccess: cfg.Buffering.ClearAfterSuccess,
			Metrics:           collector,
			ErrorHandler: func(err error) {
				cfg.ErrorHandler(newLogError("flush", "buffer", "buffered flush failed", err, ErrorLevelMedium))
			},
		}, s.dispatcher.DispatchBatch)
	} else if !cfg.AsyncMode.waits() {
		s.worker = newWorker(cfg.ChannelSize, s.dispatcher)
	}

	return s
}

// route delivers an entry that passed the level filter.
func (s *configState) route(ctx context.Context, entry types.LogEntry) error {
	switch {
	case s.buffer != nil:
		err := s.buffer.Enqueue(ctx, entry)
		if errors.Is(err, buffer.ErrClosed) {
			// Retired between the staleness check and the enqueue
			s.metrics.TrackDropped()
			return nil
		}
		return err

	case s.worker != nil:
		switch s.worker.submit(ctx, entry) {
		case submitDropped:
			s.metrics.TrackDropped()
			s.cfg.ErrorHandler(newLogError("enqueue", "background", "entry dropped", ErrQueueFull, ErrorLevelWarn))
		case submitClosed:
			s.metrics.TrackDropped()
		case submitted:
		}
		return nil

	default:
		s.dispatcher.Dispatch(ctx, entry)
		return nil
	}
}

// flush drains the buffer controller and the background queue.
func (s *configState) flush(ctx context.Context) error {
	var err error
	if s.buffer != nil {
		err = multierr.Append(err, s.buffer.Flush(ctx))
	}
	if s.worker != nil {
		err = multierr.Append(err, s.worker.drain(ctx))
	}
	return err
}

// retire disposes the buffer controller and stops the background worker.
// The returned channel yields once the final flush and the queue drain have
// finished, carrying the final flush error.
func (s *configState) retire() <-chan error {
	var disposed <-chan error
	if s.buffer != nil {
		disposed = s.buffer.Dispose()
	}
	if s.worker != nil {
		s.worker.stop()
	}

	result := make(chan error, 1)
	go func() {
		var err error
		if disposed != nil {
			err = <-disposed
		}
		if s.worker != nil {
			<-s.worker.done
		}
		result <- err
		close(result)
	}()
	return result
}

func (s *configState) buffered() int {
	if s.buffer == nil {
		return 0
	}
	return s.buffer.Pending()
}
