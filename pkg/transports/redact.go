package transports

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

// DefaultReplacement replaces redacted values.
const DefaultReplacement = "[REDACTED]"

// DefaultSensitiveKeys are meta and context keys whose values are always redacted.
var DefaultSensitiveKeys = []string{
	"password", "passwd", "pass", "secret", "token", "auth_token",
	"access_token", "refresh_token", "api_key", "apikey", "authorization",
	"client_secret", "session_token", "private_key", "bearer", "jwt",
	"ssn", "credit_card", "card_number", "cvv", "cvc",
}

// DefaultPatterns match common secrets inside free text.
var DefaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),                               // US SSN
	regexp.MustCompile(`\b4\d{3}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),         // Visa
	regexp.MustCompile(`\b5[1-5]\d{2}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),    // MasterCard
	regexp.MustCompile(`\b3[47]\d{2}[-\s]?\d{6}[-\s]?\d{5}\b`),                // American Express
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),                                // AWS access key
	regexp.MustCompile(`\bghp_[a-zA-Z0-9]{36,40}\b`),                          // GitHub token
	regexp.MustCompile(`\bxoxb-[0-9]{10,13}-[0-9]{10,13}-[a-zA-Z0-9]{24}\b`), // Slack bot token
	regexp.MustCompile(`(?i)(bearer\s+)[a-z0-9._~+/-]+=*`),                    // Authorization header value
}

// RedactOptions configures a Redactor.
type RedactOptions struct {
	// Keys are matched case-insensitively against meta and context keys at
	// any depth (default DefaultSensitiveKeys)
	Keys []string

	// Patterns are replaced in the message, the error message and string
	// values (default none; DefaultPatterns is a ready-made set)
	Patterns []*regexp.Regexp

	// Replacement is written in place of redacted data (default DefaultReplacement)
	Replacement string
}

// Redactor masks sensitive data in entries. It never modifies its input.
type Redactor struct {
	keys        map[string]struct{}
	patterns    []*regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor.
func NewRedactor(opts RedactOptions) *Redactor {
	keys := opts.Keys
	if keys == nil {
		keys = DefaultSensitiveKeys
	}
	r := &Redactor{
		keys:        make(map[string]struct{}, len(keys)),
		patterns:    opts.Patterns,
		replacement: opts.Replacement,
	}
	for _, k := range keys {
		r.keys[strings.ToLower(k)] = struct{}{}
	}
	if r.replacement == "" {
		r.replacement = DefaultReplacement
	}
	return r
}

// Entry returns a redacted copy of entry and whether anything was replaced.
func (r *Redactor) Entry(entry types.LogEntry) (types.LogEntry, bool) {
	out := entry.Clone()
	changed := false

	out.Message, changed = r.text(out.Message, changed)
	if out.Error != nil {
		out.Error.Message, changed = r.text(out.Error.Message, changed)
	}
	if out.Meta != nil {
		out.Meta, changed = r.fields(entry.Meta, changed)
	}
	if out.Context != nil {
		out.Context, changed = r.fields(entry.Context, changed)
	}
	return out, changed
}

func (r *Redactor) text(s string, changed bool) (string, bool) {
	for _, p := range r.patterns {
		if !p.MatchString(s) {
			continue
		}
		changed = true
		if p.NumSubexp() > 0 {
			// Keep the first group, e.g. the "Bearer " prefix
			s = p.ReplaceAllString(s, "${1}"+r.replacement)
		} else {
			s = p.ReplaceAllLiteralString(s, r.replacement)
		}
	}
	return s, changed
}

func (r *Redactor) sensitive(key string) bool {
	_, ok := r.keys[strings.ToLower(key)]
	return ok
}

// fields copies m, redacting sensitive keys and patterns in nested values.
func (r *Redactor) fields(m map[string]interface{}, changed bool) (map[string]interface{}, bool) {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if r.sensitive(k) {
			out[k] = r.replacement
			changed = true
			continue
		}
		out[k], changed = r.value(v, changed)
	}
	return out, changed
}

func (r *Redactor) value(v interface{}, changed bool) (interface{}, bool) {
	switch val := v.(type) {
	case string:
		return r.text(val, changed)
	case map[string]interface{}:
		return r.fields(val, changed)
	case map[string]string:
		generic := make(map[string]interface{}, len(val))
		for k, s := range val {
			generic[k] = s
		}
		return r.fields(generic, changed)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i], changed = r.value(item, changed)
		}
		return out, changed
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i], changed = r.text(item, changed)
		}
		return out, changed
	default:
		return v, changed
	}
}

// RedactingTransport passes redacted copies of entries to the wrapped transport.
type RedactingTransport struct {
	next     types.Transport
	redactor *Redactor
	redacted atomic.Uint64
}

// Redact wraps next so that it only receives redacted entries.
// The wrapper keeps the name of next.
func Redact(next types.Transport, opts RedactOptions) *RedactingTransport {
	return &RedactingTransport{next: next, redactor: NewRedactor(opts)}
}

// Name implements types.Transport.
func (t *RedactingTransport) Name() string {
	return t.next.Name()
}

// Log implements types.Transport.
func (t *RedactingTransport) Log(ctx context.Context, entry types.LogEntry) error {
	clean, changed := t.redactor.Entry(entry)
	if changed {
		t.redacted.Add(1)
	}
	return t.next.Log(ctx, clean)
}

// Redacted returns the number of entries in which something was replaced.
func (t *RedactingTransport) Redacted() uint64 {
	return t.redacted.Load()
}

// Close closes the wrapped transport.
func (t *RedactingTransport) Close() error {
	return closeTransport(t.next)
}

// Unwrap returns the wrapped transport.
func (t *RedactingTransport) Unwrap() types.Transport {
	return t.next
}
