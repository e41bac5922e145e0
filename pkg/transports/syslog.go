package transports

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/wayneeseguin/omnilog/pkg/formatters"
	"github.com/wayneeseguin/omnilog/pkg/types"
)

// Syslog facilities.
const (
	FacilityKern   = 0
	FacilityUser   = 1
	FacilityDaemon = 3
	FacilityAuth   = 4
	FacilityLocal0 = 16
)

var facilityNames = map[string]int{
	"kern":   FacilityKern,
	"user":   FacilityUser,
	"daemon": FacilityDaemon,
	"auth":   FacilityAuth,
}

// localSyslogSockets are probed in order when no address is given.
var localSyslogSockets = []string{"/dev/log", "/var/run/syslog", "/var/run/log"}

// ParseFacility converts a facility name ("user", "daemon", "local0" … "local7")
// or number to its code.
func ParseFacility(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if code, ok := facilityNames[s]; ok {
		return code, nil
	}
	if strings.HasPrefix(s, "local") {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "local"))
		if err == nil && n >= 0 && n <= 7 {
			return FacilityLocal0 + n, nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 23 {
		return n, nil
	}
	return 0, errors.Errorf("unknown syslog facility %q", s)
}

// SyslogOptions configures a SyslogTransport.
type SyslogOptions struct {
	// Name identifies the transport in error reports (default "syslog")
	Name string

	// Network and Address of the syslog daemon, e.g. "udp", "127.0.0.1:514".
	// An empty Address probes the local Unix sockets.
	Network string
	Address string

	// Tag prefixes each message (default the program name)
	Tag string

	// Facility code (default FacilityUser)
	Facility int

	// Formatter renders the message part (default unpadded text)
	Formatter formatters.Formatter
}

// SyslogTransport writes entries to a syslog daemon as "<priority>tag: line".
// The priority combines the facility with the severity of the entry level.
type SyslogTransport struct {
	name      string
	network   string
	address   string
	tag       string
	facility  int
	formatter formatters.Formatter

	mu   sync.Mutex
	conn net.Conn
}

// NewSyslog connects to the syslog daemon.
func NewSyslog(opts SyslogOptions) (*SyslogTransport, error) {
	t := &SyslogTransport{
		name:      opts.Name,
		network:   opts.Network,
		address:   opts.Address,
		tag:       opts.Tag,
		facility:  opts.Facility,
		formatter: opts.Formatter,
	}
	if t.name == "" {
		t.name = "syslog"
	}
	if t.tag == "" {
		t.tag = filepath.Base(os.Args[0])
	}
	if t.facility == 0 {
		t.facility = FacilityUser
	}
	if t.formatter == nil {
		t.formatter = &formatters.TextFormatter{}
	}

	if t.address == "" {
		for _, path := range localSyslogSockets {
			if _, err := os.Stat(path); err == nil {
				t.network = "unixgram"
				t.address = path
				break
			}
		}
		if t.address == "" {
			return nil, errors.New("no local syslog socket found")
		}
	}
	if t.network == "" {
		t.network = "udp"
	}

	conn, err := net.Dial(t.network, t.address)
	if err != nil {
		return nil, errors.Wrap(err, "dial syslog")
	}
	t.conn = conn
	return t, nil
}

// Name implements types.Transport.
func (t *SyslogTransport) Name() string {
	return t.name
}

// Priority returns the syslog priority for an entry level.
func (t *SyslogTransport) Priority(level types.Level) int {
	return t.facility*8 + severity(level)
}

func severity(level types.Level) int {
	switch level {
	case types.LevelDebug:
		return 7
	case types.LevelWarn:
		return 4
	case types.LevelError:
		return 3
	default:
		return 6
	}
}

// Log implements types.Transport.
func (t *SyslogTransport) Log(ctx context.Context, entry types.LogEntry) error {
	line, err := t.formatter.Format(entry)
	if err != nil {
		return errors.Wrap(err, "format entry")
	}

	var msg bytes.Buffer
	msg.WriteString("<")
	msg.WriteString(strconv.Itoa(t.Priority(entry.Level)))
	msg.WriteString(">")
	msg.WriteString(t.tag)
	msg.WriteString(": ")
	msg.Write(bytes.TrimSpace(line))
	msg.WriteString("\n")

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return ErrClosed
	}
	if _, err := t.conn.Write(msg.Bytes()); err != nil {
		return errors.Wrap(err, "write syslog")
	}
	return nil
}

// Close closes the connection.
func (t *SyslogTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return errors.Wrap(err, "close syslog connection")
}
