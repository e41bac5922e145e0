package transports

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/formatters"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// NATSTransport publishes each entry to a NATS subject.
type NATSTransport struct {
	name          string
	conn          *nats.Conn
	ownsConn      bool
	subject       string
	levelSubjects bool
	formatter     formatters.Formatter

	servers []string
	options []nats.Option
}

// NATSOptions configures a transport over an existing connection.
type NATSOptions struct {
	// Name identifies the transport in error reports (default "nats")
	Name string

	// Subject entries are published to (required)
	Subject string

	// LevelSubjects appends the level to the subject, e.g. "logs.app.error"
	LevelSubjects bool

	// Formatter renders message payloads (default JSON)
	Formatter formatters.Formatter
}

// NewNATS creates a transport publishing over conn. The connection stays
// owned by the caller: Close flushes but does not close it.
func NewNATS(conn *nats.Conn, opts NATSOptions) (*NATSTransport, error) {
	if conn == nil {
		return nil, errors.New("nats transport: connection is required")
	}
	if opts.Subject == "" {
		return nil, errors.New("nats transport: subject is required")
	}
	t := &NATSTransport{
		name:          opts.Name,
		conn:          conn,
		subject:       opts.Subject,
		levelSubjects: opts.LevelSubjects,
		formatter:     opts.Formatter,
	}
	t.applyDefaults()
	return t, nil
}

// NewNATSFromURI creates a NATS transport from URI and connects it:
//
//	nats://[user:pass@]host:port/subject?level_subjects=true&max_reconnect=10&reconnect_wait=2&tls=true&format=json&name=audit
//
// reconnect_wait is in seconds.
func NewNATSFromURI(uri string) (*NATSTransport, error) {
	return NewNATSFromURIWithOptions(uri, true)
}

// NewNATSFromURIWithOptions parses uri and connects only when connect is true.
func NewNATSFromURIWithOptions(uri string, connect bool) (*NATSTransport, error) {
	parsedURL, err := url.Parse(uri)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URI")
	}
	if parsedURL.Scheme != "nats" {
		return nil, errors.Errorf("invalid scheme: %s (expected 'nats')", parsedURL.Scheme)
	}

	t := &NATSTransport{
		subject:  strings.Trim(parsedURL.Path, "/"),
		ownsConn: true,
	}
	if t.subject == "" {
		return nil, errors.Errorf("nats URI %q has no subject", uri)
	}

	query := parsedURL.Query()
	t.name = query.Get("name")

	if v := query.Get("level_subjects"); v != "" {
		t.levelSubjects, _ = strconv.ParseBool(v)
	}

	switch format := query.Get("format"); format {
	case "", "json":
		t.formatter = formatters.NewJSONFormatter()
	default:
		if t.formatter, err = formatters.New(format); err != nil {
			return nil, err
		}
	}

	t.options = []nats.Option{nats.Name("omnilog-nats-transport")}

	if v := query.Get("max_reconnect"); v != "" {
		if maxReconnect, err := strconv.Atoi(v); err == nil {
			t.options = append(t.options, nats.MaxReconnects(maxReconnect))
		}
	}
	if v := query.Get("reconnect_wait"); v != "" {
		if reconnectWait, err := strconv.Atoi(v); err == nil {
			t.options = append(t.options, nats.ReconnectWait(time.Duration(reconnectWait)*time.Second))
		}
	}
	if v := query.Get("tls"); v != "" {
		if tls, _ := strconv.ParseBool(v); tls {
			t.options = append(t.options, nats.Secure())
		}
	}
	if parsedURL.User != nil {
		password, _ := parsedURL.User.Password()
		t.options = append(t.options, nats.UserInfo(parsedURL.User.Username(), password))
	}

	if parsedURL.Host != "" {
		t.servers = append(t.servers, fmt.Sprintf("nats://%s", parsedURL.Host))
	}

	t.applyDefaults()

	if connect {
		if len(t.servers) == 0 {
			return nil, errors.Errorf("nats URI %q has no host", uri)
		}
		conn, err := nats.Connect(strings.Join(t.servers, ","), t.options...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to NATS")
		}
		t.conn = conn
	}

	return t, nil
}

func (t *NATSTransport) applyDefaults() {
	if t.name == "" {
		t.name = "nats"
	}
	if t.formatter == nil {
		t.formatter = formatters.NewJSONFormatter()
	}
}

// Name implements types.Transport.
func (t *NATSTransport) Name() string {
	return t.name
}

// Subject returns the subject entry is published to.
func (t *NATSTransport) Subject(entry types.LogEntry) string {
	if t.levelSubjects {
		return t.subject + "." + entry.Level.String()
	}
	return t.subject
}

// Log implements types.Transport.
func (t *NATSTransport) Log(ctx context.Context, entry types.LogEntry) error {
	if t.conn == nil {
		return errors.New("NATS connection not established")
	}

	data, err := t.formatter.Format(entry)
	if err != nil {
		return errors.Wrap(err, "format entry")
	}
	data = bytes.TrimRight(data, "\n")

	msg := nats.NewMsg(t.Subject(entry))
	msg.Data = data
	if entry.CorrelationID != "" {
		msg.Header.Set("Omnilog-Correlation-Id", entry.CorrelationID)
	}
	msg.Header.Set("Omnilog-Logger", entry.LoggerName)

	if err := t.conn.PublishMsg(msg); err != nil {
		return errors.Wrap(err, "failed to publish")
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (t *NATSTransport) Flush(ctx context.Context) error {
	if t.conn == nil {
		return nil
	}
	return t.conn.FlushWithContext(ctx)
}

// Close flushes pending messages and closes the connection when the
// transport created it.
func (t *NATSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Flush()
	if t.ownsConn {
		t.conn.Close()
	}
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return errors.Wrap(err, "flush NATS connection")
	}
	return nil
}
