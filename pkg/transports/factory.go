package transports

import (
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/wayneeseguin/omnilog/pkg/formatters"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Open creates a transport from a URI:
//
//	console://stdout?pretty=true&level_streams=true
//	console://stderr?format=json
//	file:///var/log/app.log?rotate_after_bytes=1000000&max_files=5&format=json
//	nats://localhost:4222/logs.app?level_subjects=true
//	zap://production
//	syslog://127.0.0.1:514?network=udp&tag=app&facility=local0
//	syslog://
//
// Every scheme accepts name=... to set the transport name, plus
//
//	min_level=warn   deliver only entries at or above a level
//	redact=true      mask DefaultSensitiveKeys and DefaultPatterns
//	retries=3        retry failed writes with backoff
//
// A bare path is treated as a file URI.
func Open(uri string) (types.Transport, error) {
	switch uri {
	case "stdout", "stderr":
		uri = "console://" + uri
	}
	if strings.HasPrefix(uri, "/") || strings.HasPrefix(uri, "./") {
		uri = "file://" + uri
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid transport URI %q", uri)
	}
	query := u.Query()

	var transport types.Transport
	switch strings.ToLower(u.Scheme) {
	case "console":
		transport, err = openConsole(u, query)
	case "file":
		transport, err = openFile(uri, u, query)
	case "nats":
		transport, err = NewNATSFromURI(uri)
	case "zap":
		transport, err = openZap(u, query)
	case "syslog":
		transport, err = openSyslog(u, query)
	default:
		opener, ok := lookupScheme(u.Scheme)
		if !ok {
			return nil, errors.Errorf("unsupported transport scheme %q", u.Scheme)
		}
		transport, err = opener(u)
	}
	if err != nil {
		return nil, err
	}

	wrapped, err := decorate(transport, query)
	if err != nil {
		_ = closeTransport(transport) // Best effort close on error path
		return nil, err
	}
	return wrapped, nil
}

// decorate applies the wrappers shared by every scheme. The level filter is
// outermost and retries wrap the opened transport directly.
func decorate(t types.Transport, query url.Values) (types.Transport, error) {
	if v := query.Get("retries"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid retries %q", v)
		}
		if n > 0 {
			t = Retry(t, RetryOptions{MaxRetries: n})
		}
	}
	if v := query.Get("redact"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid redact %q", v)
		}
		if on {
			t = Redact(t, RedactOptions{Patterns: DefaultPatterns})
		}
	}
	if v := query.Get("min_level"); v != "" {
		level, err := types.ParseLevel(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid min_level")
		}
		t = MinLevel(t, level)
	}
	return t, nil
}

// Opener creates a transport for a registered scheme. The URI query is
// available through u.Query(); the shared parameters (name excepted) are
// applied by Open afterwards.
type Opener func(u *url.URL) (types.Transport, error)

var builtinSchemes = map[string]bool{
	"console": true, "file": true, "nats": true, "zap": true, "syslog": true,
}

var (
	schemesMu sync.RWMutex
	schemes   = make(map[string]Opener)
)

// RegisterScheme makes Open, and therefore configuration files, accept URIs
// with a custom scheme. Built-in schemes cannot be replaced.
func RegisterScheme(scheme string, opener Opener) error {
	scheme = strings.ToLower(scheme)
	if scheme == "" || opener == nil {
		return errors.New("scheme and opener are required")
	}
	if builtinSchemes[scheme] {
		return errors.Errorf("transport scheme %q is built in", scheme)
	}

	schemesMu.Lock()
	defer schemesMu.Unlock()
	if _, exists := schemes[scheme]; exists {
		return errors.Errorf("transport scheme %q already registered", scheme)
	}
	schemes[scheme] = opener
	return nil
}

// UnregisterScheme removes a custom scheme.
func UnregisterScheme(scheme string) {
	schemesMu.Lock()
	defer schemesMu.Unlock()
	delete(schemes, strings.ToLower(scheme))
}

// Schemes returns every scheme Open accepts, sorted.
func Schemes() []string {
	schemesMu.RLock()
	defer schemesMu.RUnlock()

	list := make([]string, 0, len(builtinSchemes)+len(schemes))
	for scheme := range builtinSchemes {
		list = append(list, scheme)
	}
	for scheme := range schemes {
		list = append(list, scheme)
	}
	sort.Strings(list)
	return list
}

func lookupScheme(scheme string) (Opener, bool) {
	schemesMu.RLock()
	defer schemesMu.RUnlock()
	opener, ok := schemes[strings.ToLower(scheme)]
	return opener, ok
}

func openSyslog(u *url.URL, query url.Values) (types.Transport, error) {
	opts := SyslogOptions{
		Name:    query.Get("name"),
		Network: query.Get("network"),
		Address: u.Host,
		Tag:     query.Get("tag"),
	}
	if opts.Address == "" && u.Path != "" {
		opts.Address = u.Path
		if opts.Network == "" {
			opts.Network = "unixgram"
		}
	}
	if v := query.Get("facility"); v != "" {
		facility, err := ParseFacility(v)
		if err != nil {
			return nil, err
		}
		opts.Facility = facility
	}
	if format := query.Get("format"); format != "" {
		f, err := formatters.New(format)
		if err != nil {
			return nil, err
		}
		opts.Formatter = f
	}
	return NewSyslog(opts)
}

func openConsole(u *url.URL, query url.Values) (types.Transport, error) {
	opts := ConsoleOptions{Name: query.Get("name")}

	switch stream := u.Host + strings.Trim(u.Path, "/"); stream {
	case "", "stdout":
		opts.Writer = os.Stdout
	case "stderr":
		opts.Writer = os.Stderr
	default:
		return nil, errors.Errorf("unknown console stream %q", stream)
	}

	opts.PrettyPrint, _ = strconv.ParseBool(query.Get("pretty"))
	opts.UseLevelStreams, _ = strconv.ParseBool(query.Get("level_streams"))

	if format := query.Get("format"); format != "" && format != "console" {
		f, err := formatters.New(format)
		if err != nil {
			return nil, err
		}
		opts.Formatter = f
	}
	return NewConsole(opts), nil
}

func openFile(uri string, u *url.URL, query url.Values) (types.Transport, error) {
	path := u.Host + u.Path
	if path == "" {
		return nil, errors.Errorf("transport URI %q has no path", uri)
	}

	opts := FileOptions{Path: path, Name: query.Get("name")}

	if v := query.Get("rotate_after_bytes"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rotate_after_bytes %q", v)
		}
		opts.RotateAfterBytes = size
	}
	if v := query.Get("max_files"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid max_files %q", v)
		}
		opts.MaxFiles = n
	}
	if format := query.Get("format"); format != "" {
		f, err := formatters.New(format)
		if err != nil {
			return nil, err
		}
		opts.Formatter = f
	}

	return NewFile(opts)
}

func openZap(u *url.URL, query url.Values) (types.Transport, error) {
	var logger *zap.Logger
	var err error

	switch preset := u.Host + strings.Trim(u.Path, "/"); preset {
	case "", "production":
		logger, err = zap.NewProduction()
	case "development":
		logger, err = zap.NewDevelopment()
	case "nop":
		logger = zap.NewNop()
	default:
		return nil, errors.Errorf("unknown zap preset %q", preset)
	}
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger")
	}
	return NewZapNamed(query.Get("name"), logger), nil
}
