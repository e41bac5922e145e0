package formatters

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Formatter renders one entry as a single line, newline included.
type Formatter interface {
	Format(entry types.LogEntry) ([]byte, error)
}

// FormatterFunc adapts a function into a Formatter.
type FormatterFunc func(entry types.LogEntry) ([]byte, error)

// Format calls f(entry).
func (f FormatterFunc) Format(entry types.LogEntry) ([]byte, error) {
	return f(entry)
}

// Factory creates formatter instances
type Factory struct {
	mu         sync.RWMutex
	formatters map[string]FormatterConstructor
}

// FormatterConstructor is a function that creates a formatter
type FormatterConstructor func() (Formatter, error)

// NewFactory creates a new formatter factory with the text, json and console
// formatters registered.
func NewFactory() *Factory {
	f := &Factory{
		formatters: make(map[string]FormatterConstructor),
	}

	f.Register("text", func() (Formatter, error) {
		return NewTextFormatter(), nil
	})
	f.Register("json", func() (Formatter, error) {
		return NewJSONFormatter(), nil
	})
	f.Register("console", func() (Formatter, error) {
		return NewConsoleFormatter(), nil
	})

	return f
}

// Register registers a new formatter constructor
func (f *Factory) Register(name string, constructor FormatterConstructor) error {
	if name == "" {
		return errors.New("formatter name cannot be empty")
	}
	if constructor == nil {
		return errors.New("formatter constructor cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.formatters[name] = constructor
	return nil
}

// Create creates a formatter by name
func (f *Factory) Create(name string) (Formatter, error) {
	f.mu.RLock()
	constructor, exists := f.formatters[name]
	f.mu.RUnlock()

	if !exists {
		return nil, errors.Errorf("formatter %q not registered", name)
	}
	return constructor()
}

// List returns the registered formatter names in sorted order
func (f *Factory) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.formatters))
	for name := range f.formatters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultFactory = NewFactory()

// New creates a formatter from the default factory.
func New(name string) (Formatter, error) {
	return defaultFactory.Create(name)
}
