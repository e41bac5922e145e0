// Package config loads omnilog settings from YAML or TOML files.
//
// A configuration file names transports and the buffer store by URI, so a
// deployment can change where logs go without recompiling:
//
//	level: info
//	async_mode: background
//	env: production
//	overrides:
//	  auth: debug
//	transports:
//	  - console://stdout
//	  - file:///var/log/app.log?max_files=5&rotate_after_bytes=1000000
//	buffering:
//	  enabled: true
//	  max_buffer_size: 100
//	  flush_interval_ms: 2000
//	  store: sqlite:///var/lib/app/buffer.db
//
// OMNILOG_LEVEL, OMNILOG_ENV and OMNILOG_ASYNC_MODE override the file.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/wayneeseguin/omnilog/pkg/omnilog"
	"github.com/wayneeseguin/omnilog/pkg/stores"
	"github.com/wayneeseguin/omnilog/pkg/transports"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Environment variables that take precedence over file values.
const (
	EnvLevel     = "OMNILOG_LEVEL"
	EnvEnv       = "OMNILOG_ENV"
	EnvAsyncMode = "OMNILOG_ASYNC_MODE"
)

// DefaultFlushIntervalMS is used when buffering is enabled without an interval.
const DefaultFlushIntervalMS = 2000

// Format is a configuration file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	default:
		return "yaml"
	}
}

// File is the on-disk configuration.
type File struct {
	Level      string            `yaml:"level" toml:"level"`
	AsyncMode  string            `yaml:"async_mode" toml:"async_mode"`
	Env        string            `yaml:"env" toml:"env"`
	Overrides  map[string]string `yaml:"overrides" toml:"overrides"`
	Transports []string          `yaml:"transports" toml:"transports"`
	Buffering  *Buffering        `yaml:"buffering" toml:"buffering"`
}

// Buffering is the buffering section of a configuration file.
type Buffering struct {
	Enabled           bool   `yaml:"enabled" toml:"enabled"`
	MaxBufferSize     int    `yaml:"max_buffer_size" toml:"max_buffer_size"`
	FlushIntervalMS   *int   `yaml:"flush_interval_ms" toml:"flush_interval_ms"`
	Store             string `yaml:"store" toml:"store"`
	ClearAfterSuccess bool   `yaml:"clear_after_success" toml:"clear_after_success"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Level:      "info",
		AsyncMode:  "background",
		Transports: []string{"console://stdout"},
	}
}

// Load reads a configuration file, detecting the format from its extension
// (.toml is TOML, anything else YAML). An empty path returns the defaults.
// Environment overrides are applied in both cases.
func Load(path string) (File, error) {
	if path == "" {
		f := Default()
		f.applyEnv()
		return f, nil
	}

	// #nosec G304 - the configuration path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(err, "read config file")
	}

	f, err := Parse(data, DetectFormat(path))
	if err != nil {
		return File{}, errors.Wrapf(err, "parse %s", filepath.Base(path))
	}
	return f, nil
}

// Parse decodes data over the defaults and applies environment overrides.
func Parse(data []byte, format Format) (File, error) {
	f := Default()

	switch format {
	case FormatTOML:
		if _, err := toml.Decode(string(data), &f); err != nil {
			return File{}, errors.Wrap(err, "decode TOML")
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return File{}, errors.Wrap(err, "decode YAML")
		}
	}

	f.applyEnv()
	return f, nil
}

// DetectFormat returns the format implied by a file extension.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

func (f *File) applyEnv() {
	if v := os.Getenv(EnvLevel); v != "" {
		f.Level = v
	}
	if v := os.Getenv(EnvEnv); v != "" {
		f.Env = v
	}
	if v := os.Getenv(EnvAsyncMode); v != "" {
		f.AsyncMode = v
	}
}

// BuildOptions supplies the parts of omnilog.Config that cannot come from a file.
type BuildOptions struct {
	OnError      omnilog.ErrorHook
	ErrorHandler omnilog.ErrorHandler

	// ForceBuffering enables buffering even when the file leaves it off
	ForceBuffering bool
}

// Build resolves levels, transports and the store into an omnilog.Config.
// Transports opened before a failure are closed again.
func (f File) Build(opts BuildOptions) (omnilog.Config, error) {
	cfg := omnilog.DefaultConfig()
	cfg.OnError = opts.OnError
	cfg.ErrorHandler = opts.ErrorHandler
	cfg.Env = f.Env

	var err error
	if f.Level != "" {
		if cfg.Level, err = types.ParseLevel(f.Level); err != nil {
			return omnilog.Config{}, errors.Wrap(err, "level")
		}
	}
	if cfg.AsyncMode, err = omnilog.ParseAsyncMode(f.AsyncMode); err != nil {
		return omnilog.Config{}, errors.Wrap(err, "async_mode")
	}

	if len(f.Overrides) > 0 {
		cfg.Overrides = make(map[string]types.Level, len(f.Overrides))
		for name, value := range f.Overrides {
			level, err := types.ParseLevel(value)
			if err != nil {
				return omnilog.Config{}, errors.Wrapf(err, "override for %q", name)
			}
			cfg.Overrides[name] = level
		}
	}

	for _, uri := range f.Transports {
		transport, err := transports.Open(uri)
		if err != nil {
			closeErr := CloseTransports(cfg.Transports)
			return omnilog.Config{}, multierr.Append(errors.Wrapf(err, "transport %q", uri), closeErr)
		}
		cfg.Transports = append(cfg.Transports, transport)
	}
	if len(cfg.Transports) == 0 {
		return omnilog.Config{}, omnilog.ErrNoTransports
	}

	buffering := f.Buffering
	if buffering == nil && opts.ForceBuffering {
		buffering = &Buffering{}
	}
	if buffering != nil && (buffering.Enabled || opts.ForceBuffering) {
		bc, err := buffering.build()
		if err != nil {
			return omnilog.Config{}, multierr.Append(err, CloseTransports(cfg.Transports))
		}
		cfg.Buffering = bc
	}

	return cfg, nil
}

func (b Buffering) build() (*omnilog.BufferingConfig, error) {
	store, err := stores.Open(b.Store)
	if err != nil {
		return nil, errors.Wrap(err, "buffering store")
	}

	interval := DefaultFlushIntervalMS
	if b.FlushIntervalMS != nil {
		interval = *b.FlushIntervalMS
	}
	if interval < 0 {
		return nil, errors.Errorf("buffering flush_interval_ms must not be negative, got %d", interval)
	}

	return &omnilog.BufferingConfig{
		Enabled:           true,
		MaxBufferSize:     b.MaxBufferSize,
		FlushInterval:     time.Duration(interval) * time.Millisecond,
		Store:             store,
		ClearAfterSuccess: b.ClearAfterSuccess,
	}, nil
}

// CloseTransports closes every transport that implements io.Closer.
func CloseTransports(list []types.Transport) error {
	var err error
	for _, t := range list {
		if c, ok := t.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
