package formatters

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/wayneeseguin/omnilog/pkg/types"
)

func sampleEntry() types.LogEntry {
	return types.LogEntry{
		ID:         "id-1",
		Timestamp:  "2024-05-01T10:00:00.000Z",
		Level:      types.LevelInfo,
		Message:    "user logged in",
		LoggerName: "auth",
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.LogEntry)
		want   string
	}{
		{
			name:   "plain",
			mutate: func(e *types.LogEntry) {},
			want:   "[2024-05-01T10:00:00.000Z] [INFO ] [auth] user logged in\n",
		},
		{
			name: "tags alone add no extra",
			mutate: func(e *types.LogEntry) {
				e.Tags = []string{"security"}
				e.CorrelationID = "c1"
			},
			want: "[2024-05-01T10:00:00.000Z] [INFO ] [auth] user logged in\n",
		},
		{
			name: "meta adds extra with tags and correlation",
			mutate: func(e *types.LogEntry) {
				e.Level = types.LevelError
				e.Meta = map[string]interface{}{"attempt": 3}
				e.Tags = []string{"security"}
				e.CorrelationID = "c1"
			},
			want: `[2024-05-01T10:00:00.000Z] [ERROR] [auth] user logged in {"correlationId":"c1","meta":{"attempt":3},"tags":["security"]}` + "\n",
		},
		{
			name: "empty context is present",
			mutate: func(e *types.LogEntry) {
				e.Level = types.LevelWarn
				e.Context = map[string]interface{}{}
			},
			want: `[2024-05-01T10:00:00.000Z] [WARN ] [auth] user logged in {"context":{}}` + "\n",
		},
		{
			name: "error",
			mutate: func(e *types.LogEntry) {
				e.Error = &types.ErrorInfo{Name: "AuthError", Message: "bad password"}
			},
			want: `[2024-05-01T10:00:00.000Z] [INFO ] [auth] user logged in {"error":{"name":"AuthError","message":"bad password"}}` + "\n",
		},
	}

	f := NewTextFormatter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := sampleEntry()
			tt.mutate(&entry)
			got, err := f.Format(entry)
			if err != nil {
				t.Fatalf("Format: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Format() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestTextFormatterUnpadded(t *testing.T) {
	f := &TextFormatter{}
	got, err := f.Format(sampleEntry())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "[INFO] [auth]") {
		t.Errorf("Format() = %q", got)
	}
}

func TestJSONFormatter(t *testing.T) {
	entry := sampleEntry()
	entry.Tags = []string{}
	entry.Meta = map[string]interface{}{"k": "v"}
	entry.Env = "prod"

	got, err := NewJSONFormatter().Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.HasSuffix(string(got), "}\n") || strings.Count(string(got), "\n") != 1 {
		t.Errorf("not a single JSON line: %q", got)
	}

	var decoded types.LogEntry
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("output is not a LogEntry: %v", err)
	}
	if decoded.Message != entry.Message || decoded.Level != entry.Level || decoded.Env != "prod" {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Tags == nil || decoded.Context != nil {
		t.Errorf("absent/empty distinction lost: tags=%v context=%v", decoded.Tags, decoded.Context)
	}
}

func TestJSONFormatterIndent(t *testing.T) {
	got, err := (&JSONFormatter{Indent: true}).Format(sampleEntry())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "\n  \"message\": \"user logged in\"") {
		t.Errorf("not indented: %s", got)
	}
}

func TestJSONFormatterUnsupportedValues(t *testing.T) {
	cyclic := map[string]interface{}{}
	cyclic["self"] = cyclic

	entry := sampleEntry()
	entry.Meta = map[string]interface{}{
		"loop":     cyclic,
		"callback": func() {},
		"ratio":    math.NaN(),
	}

	got, err := NewJSONFormatter().Format(entry)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	meta := decoded["meta"].(map[string]interface{})
	if meta["callback"] != "[func]" {
		t.Errorf("callback = %v", meta["callback"])
	}
	if meta["ratio"] != "NaN" {
		t.Errorf("ratio = %v", meta["ratio"])
	}
	loop := meta["loop"].(map[string]interface{})
	if loop["self"] != "[circular reference]" {
		t.Errorf("loop = %v", loop)
	}
}

func TestConsoleFormatter(t *testing.T) {
	entry := sampleEntry()
	entry.Level = types.LevelWarn
	entry.Tags = []string{"security"}
	entry.Env = "dev"

	got, err := NewConsoleFormatter().Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	want := `[2024-05-01T10:00:00.000Z] [WARN] [auth] {"env":"dev","message":"user logged in","tags":["security"]}` + "\n"
	if string(got) != want {
		t.Errorf("Format() =\n%q\nwant\n%q", got, want)
	}
}

func TestConsoleFormatterPayload(t *testing.T) {
	f := &ConsoleFormatter{Payload: func(e types.LogEntry) interface{} {
		return e.Message + "!"
	}}
	got, err := f.Format(sampleEntry())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(got), `[auth] "user logged in!"`+"\n") {
		t.Errorf("Format() = %q", got)
	}
}

func TestConsoleFormatterPrettyPrint(t *testing.T) {
	got, err := (&ConsoleFormatter{PrettyPrint: true}).Format(sampleEntry())
	if err != nil {
		t.Fatal(err)
	}
	s := string(got)
	if !strings.Contains(s, `"loggerName": "auth"`) || !strings.Contains(s, `"id": "id-1"`) {
		t.Errorf("pretty payload misses entry fields: %s", s)
	}
	if strings.HasSuffix(s, "\n\n") {
		t.Error("double newline at end of pretty output")
	}
}

func TestConsolePayloadOmitsAbsentFields(t *testing.T) {
	payload := ConsolePayload(sampleEntry())
	if len(payload) != 1 || payload["message"] != "user logged in" {
		t.Errorf("payload = %v", payload)
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory()

	if got := strings.Join(f.List(), ","); got != "console,json,text" {
		t.Errorf("List() = %s", got)
	}

	for _, name := range []string{"text", "json", "console"} {
		formatter, err := f.Create(name)
		if err != nil || formatter == nil {
			t.Errorf("Create(%q) = %v, %v", name, formatter, err)
		}
	}

	if _, err := f.Create("xml"); err == nil {
		t.Error("expected error for unknown formatter")
	}
	if err := f.Register("", func() (Formatter, error) { return nil, nil }); err == nil {
		t.Error("expected error for empty name")
	}
	if err := f.Register("upper", nil); err == nil {
		t.Error("expected error for nil constructor")
	}

	err := f.Register("upper", func() (Formatter, error) {
		return FormatterFunc(func(e types.LogEntry) ([]byte, error) {
			return []byte(strings.ToUpper(e.Message) + "\n"), nil
		}), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	upper, err := f.Create("upper")
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := upper.Format(sampleEntry()); string(got) != "USER LOGGED IN\n" {
		t.Errorf("custom formatter = %q", got)
	}

	if _, err := New("json"); err != nil {
		t.Errorf("New(json): %v", err)
	}
}
