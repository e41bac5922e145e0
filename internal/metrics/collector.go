package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Collector handles metrics collection for the omnilog pipeline.
type Collector struct {
	// Entry counts by level
	entriesByLevel  sync.Map // map[types.Level]*atomic.Uint64
	entriesFiltered uint64
	entriesDropped  uint64

	// Buffering
	flushCount    uint64
	flushedCount  uint64
	flushFailures uint64

	// Transport errors
	errorCount        uint64
	errorsByTransport sync.Map // map[string]*atomic.Uint64

	// Dispatch timing
	dispatchCount     uint64
	totalDispatchTime int64 // nanoseconds
	maxDispatchTime   int64 // nanoseconds
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Metrics is a point-in-time snapshot of the collector.
type Metrics struct {
	EntriesLogged     map[types.Level]uint64 `json:"entries_logged"`
	EntriesFiltered   uint64                 `json:"entries_filtered"`
	EntriesDropped    uint64                 `json:"entries_dropped"`
	Flushes           uint64                 `json:"flushes"`
	FlushedEntries    uint64                 `json:"flushed_entries"`
	FlushFailures     uint64                 `json:"flush_failures"`
	ErrorCount        uint64                 `json:"error_count"`
	ErrorsByTransport map[string]uint64      `json:"errors_by_transport"`
	Dispatches        uint64                 `json:"dispatches"`
	AverageDispatch   time.Duration          `json:"average_dispatch"`
	MaxDispatch       time.Duration          `json:"max_dispatch"`
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() Metrics {
	m := Metrics{
		EntriesLogged:     make(map[types.Level]uint64),
		EntriesFiltered:   atomic.LoadUint64(&c.entriesFiltered),
		EntriesDropped:    atomic.LoadUint64(&c.entriesDropped),
		Flushes:           atomic.LoadUint64(&c.flushCount),
		FlushedEntries:    atomic.LoadUint64(&c.flushedCount),
		FlushFailures:     atomic.LoadUint64(&c.flushFailures),
		ErrorCount:        atomic.LoadUint64(&c.errorCount),
		ErrorsByTransport: make(map[string]uint64),
		Dispatches:        atomic.LoadUint64(&c.dispatchCount),
		MaxDispatch:       time.Duration(atomic.LoadInt64(&c.maxDispatchTime)),
	}

	c.entriesByLevel.Range(func(key, value interface{}) bool {
		if count := value.(*atomic.Uint64).Load(); count > 0 {
			m.EntriesLogged[key.(types.Level)] = count
		}
		return true
	})

	c.errorsByTransport.Range(func(key, value interface{}) bool {
		if count := value.(*atomic.Uint64).Load(); count > 0 {
			m.ErrorsByTransport[key.(string)] = count
		}
		return true
	})

	if m.Dispatches > 0 {
		m.AverageDispatch = time.Duration(atomic.LoadInt64(&c.totalDispatchTime)) / time.Duration(m.Dispatches)
	}

	return m
}

// Reset zeroes all counters.
func (c *Collector) Reset() {
	c.entriesByLevel.Range(func(_, value interface{}) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	})
	c.errorsByTransport.Range(func(_, value interface{}) bool {
		value.(*atomic.Uint64).Store(0)
		return true
	})

	atomic.StoreUint64(&c.entriesFiltered, 0)
	atomic.StoreUint64(&c.entriesDropped, 0)
	atomic.StoreUint64(&c.flushCount, 0)
	atomic.StoreUint64(&c.flushedCount, 0)
	atomic.StoreUint64(&c.flushFailures, 0)
	atomic.StoreUint64(&c.errorCount, 0)
	atomic.StoreUint64(&c.dispatchCount, 0)
	atomic.StoreInt64(&c.totalDispatchTime, 0)
	atomic.StoreInt64(&c.maxDispatchTime, 0)
}

// TrackEntry counts an entry that passed the level filter.
func (c *Collector) TrackEntry(level types.Level) {
	val, _ := c.entriesByLevel.LoadOrStore(level, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// TrackFiltered counts an entry rejected by the level filter.
func (c *Collector) TrackFiltered() {
	atomic.AddUint64(&c.entriesFiltered, 1)
}

// TrackDropped counts an entry that could not be queued for background dispatch.
func (c *Collector) TrackDropped() {
	atomic.AddUint64(&c.entriesDropped, 1)
}

// TrackFlush records a completed flush of n entries.
func (c *Collector) TrackFlush(n int, err error) {
	atomic.AddUint64(&c.flushCount, 1)
	if n > 0 {
		atomic.AddUint64(&c.flushedCount, uint64(n))
	}
	if err != nil {
		atomic.AddUint64(&c.flushFailures, 1)
	}
}

// TrackDispatch records the time spent delivering one entry to one transport.
func (c *Collector) TrackDispatch(duration time.Duration) {
	atomic.AddUint64(&c.dispatchCount, 1)
	atomic.AddInt64(&c.totalDispatchTime, int64(duration))

	for {
		oldMax := atomic.LoadInt64(&c.maxDispatchTime)
		if int64(duration) <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&c.maxDispatchTime, oldMax, int64(duration)) {
			break
		}
	}
}

// TrackTransportError increments the error counter for a transport.
func (c *Collector) TrackTransportError(transport string) {
	atomic.AddUint64(&c.errorCount, 1)

	val, _ := c.errorsByTransport.LoadOrStore(transport, &atomic.Uint64{})
	val.(*atomic.Uint64).Add(1)
}

// EntryCount returns the number of entries logged at level.
func (c *Collector) EntryCount(level types.Level) uint64 {
	if val, ok := c.entriesByLevel.Load(level); ok {
		return val.(*atomic.Uint64).Load()
	}
	return 0
}

// TransportErrors returns the error count for a transport.
func (c *Collector) TransportErrors(transport string) uint64 {
	if val, ok := c.errorsByTransport.Load(transport); ok {
		return val.(*atomic.Uint64).Load()
	}
	return 0
}
