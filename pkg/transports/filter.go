package transports

import (
	"context"
	"hash/fnv"
	"math/rand"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Predicate decides whether an entry is passed to the wrapped transport.
type Predicate func(entry types.LogEntry) bool

// FilteredTransport forwards only the entries accepted by its predicate.
// Rejected entries count as delivered.
type FilteredTransport struct {
	next    types.Transport
	accept  Predicate
	skipped atomic.Uint64
}

// Filter wraps next so that it only receives entries accepted by accept.
// The wrapper keeps the name of next.
func Filter(next types.Transport, accept Predicate) *FilteredTransport {
	return &FilteredTransport{next: next, accept: accept}
}

// MinLevel wraps next so that it only receives entries at level or above.
func MinLevel(next types.Transport, level types.Level) *FilteredTransport {
	return Filter(next, func(entry types.LogEntry) bool {
		return entry.Level >= level
	})
}

// Name implements types.Transport.
func (t *FilteredTransport) Name() string {
	return t.next.Name()
}

// Log implements types.Transport.
func (t *FilteredTransport) Log(ctx context.Context, entry types.LogEntry) error {
	if !t.accept(entry) {
		t.skipped.Add(1)
		return nil
	}
	return t.next.Log(ctx, entry)
}

// Skipped returns the number of entries rejected so far.
func (t *FilteredTransport) Skipped() uint64 {
	return t.skipped.Load()
}

// Close closes the wrapped transport.
func (t *FilteredTransport) Close() error {
	return closeTransport(t.next)
}

// Unwrap returns the wrapped transport.
func (t *FilteredTransport) Unwrap() types.Transport {
	return t.next
}

// All accepts an entry when every predicate does.
func All(predicates ...Predicate) Predicate {
	return func(entry types.LogEntry) bool {
		for _, p := range predicates {
			if !p(entry) {
				return false
			}
		}
		return true
	}
}

// Any accepts an entry when at least one predicate does.
func Any(predicates ...Predicate) Predicate {
	return func(entry types.LogEntry) bool {
		for _, p := range predicates {
			if p(entry) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(entry types.LogEntry) bool {
		return !p(entry)
	}
}

// MessageMatches accepts entries whose message matches pattern.
func MessageMatches(pattern *regexp.Regexp) Predicate {
	return func(entry types.LogEntry) bool {
		return pattern.MatchString(entry.Message)
	}
}

// LoggerIs accepts entries from the named loggers.
func LoggerIs(names ...string) Predicate {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return func(entry types.LogEntry) bool {
		_, ok := set[entry.LoggerName]
		return ok
	}
}

// HasTag accepts entries carrying tag.
func HasTag(tag string) Predicate {
	return func(entry types.LogEntry) bool {
		for _, t := range entry.Tags {
			if t == tag {
				return true
			}
		}
		return false
	}
}

// HasField accepts entries whose meta or context contains key.
func HasField(key string) Predicate {
	return func(entry types.LogEntry) bool {
		if _, ok := entry.Meta[key]; ok {
			return true
		}
		_, ok := entry.Context[key]
		return ok
	}
}

// SampleEvery accepts every nth entry, starting with the first.
// n <= 1 accepts everything.
func SampleEvery(n uint64) Predicate {
	if n <= 1 {
		return func(types.LogEntry) bool { return true }
	}
	var counter atomic.Uint64
	return func(types.LogEntry) bool {
		return (counter.Add(1)-1)%n == 0
	}
}

// SampleRandom accepts each entry with probability rate (0..1).
func SampleRandom(rate float64) Predicate {
	return SampleRandomWithSource(rate, rand.NewSource(rand.Int63()))
}

// SampleRandomWithSource is SampleRandom with a caller-provided source,
// which makes the sampling reproducible.
func SampleRandomWithSource(rate float64, src rand.Source) Predicate {
	var mu sync.Mutex
	rng := rand.New(src) // #nosec G404 - sampling needs no cryptographic randomness
	return func(types.LogEntry) bool {
		switch {
		case rate <= 0:
			return false
		case rate >= 1:
			return true
		}
		mu.Lock()
		defer mu.Unlock()
		return rng.Float64() < rate
	}
}

// SampleConsistent accepts a fixed share (rate) of correlation ids, so all
// entries of one request are either kept or dropped together. Entries without
// a correlation id are sampled by message.
func SampleConsistent(rate float64) Predicate {
	threshold := uint64(rate * float64(1<<32))
	return func(entry types.LogEntry) bool {
		switch {
		case rate <= 0:
			return false
		case rate >= 1:
			return true
		}
		key := entry.CorrelationID
		if key == "" {
			key = entry.Message
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(key))
		return uint64(h.Sum32()) < threshold
	}
}
