package omnilog

import (
	"time"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Metrics is a snapshot of the pipeline counters of a Manager. Counters cover
// the whole lifetime of the Manager, across reconfigurations.
type Metrics struct {
	EntriesLogged     map[types.Level]uint64 // Entries that passed the filter, by level
	EntriesFiltered   uint64                 // Entries rejected by the level filter
	EntriesDropped    uint64                 // Entries dropped on a full background queue or a retired configuration
	Flushes           uint64                 // Buffer flushes that reached the handler
	FlushedEntries    uint64
	FlushFailures     uint64
	ErrorCount        uint64            // Transport failures
	ErrorsByTransport map[string]uint64 // Transport failures by transport name
	AverageDispatch   time.Duration     // Mean time of one transport call
	MaxDispatch       time.Duration
	BufferedEntries   int    // Entries pending in the active buffer controller
	Generation        uint64 // Configuration generation
}

// Metrics returns a snapshot of the counters.
func (m *Manager) Metrics() Metrics {
	snap := m.metrics.Snapshot()

	out := Metrics{
		EntriesLogged:     snap.EntriesLogged,
		EntriesFiltered:   snap.EntriesFiltered,
		EntriesDropped:    snap.EntriesDropped,
		Flushes:           snap.Flushes,
		FlushedEntries:    snap.FlushedEntries,
		FlushFailures:     snap.FlushFailures,
		ErrorCount:        snap.ErrorCount,
		ErrorsByTransport: snap.ErrorsByTransport,
		AverageDispatch:   snap.AverageDispatch,
		MaxDispatch:       snap.MaxDispatch,
		Generation:        m.generation.Load(),
	}

	m.mu.RLock()
	if m.state != nil {
		out.BufferedEntries = m.state.buffered()
	}
	m.mu.RUnlock()

	return out
}

// ResetMetrics zeroes the counters.
func (m *Manager) ResetMetrics() {
	m.metrics.Reset()
}
