package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&Config{
		Enabled: true,
		Level:   level,
		Output:  path,
		Format:  "json",
	})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l, path
}

func readEvents(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	var events []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]interface{}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("audit line is not JSON: %q", line)
		}
		events = append(events, ev)
	}
	return events
}

func TestLogger_EventsAreStructured(t *testing.T) {
	l, path := newFileLogger(t, "verbose")

	l.SecretDetected("session-1", "openai", true)
	l.RedactionApplied("session-1", 2)
	l.RestorationApplied("session-1", 2)
	l.Failure("store mapping", "session-1", errors.New("redis unreachable"))
	l.SessionCleared("session-1")

	events := readEvents(t, path)
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}

	wantTypes := []string{
		string(EventSecretDetected),
		string(EventSecretRedacted),
		string(EventPlaceholderRestored),
		string(EventProcessingFailed),
		string(EventSessionCleared),
	}
	for i, want := range wantTypes {
		if events[i]["type"] != want {
			t.Errorf("event %d type = %v, want %s", i, events[i]["type"], want)
		}
		if events[i]["session_id"] != "session-1" {
			t.Errorf("event %d missing session_id", i)
		}
	}

	if events[0]["pattern"] != "openai" {
		t.Errorf("detection event pattern = %v, want openai", events[0]["pattern"])
	}
	if events[0]["redacted"] != true {
		t.Errorf("detection event redacted = %v, want true", events[0]["redacted"])
	}
}

func TestLogger_NeverLogsSecretValues(t *testing.T) {
	l, path := newFileLogger(t, "verbose")

	secret := "sk-abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUV"
	l.SecretDetected("session-1", "openai", true)
	l.RedactionApplied("session-1", 1)
	l.RequestProcessed("session-1", 1.5)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading audit log: %v", err)
	}
	if strings.Contains(string(data), secret) {
		t.Fatal("audit log contains the secret value")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	testCases := []struct {
		level      string
		wantEvents int
	}{
		// detection + redaction only
		{level: "minimal", wantEvents: 2},
		// plus request event, still without session_cleared
		{level: "standard", wantEvents: 3},
		// everything
		{level: "verbose", wantEvents: 4},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			l, path := newFileLogger(t, tc.level)

			l.SecretDetected("session-1", "openai", true)
			l.RedactionApplied("session-1", 1)
			l.RequestProcessed("session-1", 0.4)
			l.SessionCleared("session-1")

			events := readEvents(t, path)
			if len(events) != tc.wantEvents {
				t.Errorf("level %s logged %d events, want %d", tc.level, len(events), tc.wantEvents)
			}
		})
	}
}

func TestLogger_Disabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&Config{Enabled: false, Level: "verbose", Output: path, Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	defer l.Close()

	l.SecretDetected("session-1", "openai", true)

	data, _ := os.ReadFile(path)
	if len(strings.TrimSpace(string(data))) != 0 {
		t.Errorf("disabled logger wrote events: %q", data)
	}

	l.Enable()
	l.SecretDetected("session-1", "openai", true)
	if events := readEvents(t, path); len(events) != 1 {
		t.Errorf("got %d events after Enable(), want 1", len(events))
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()

	// Must not panic and must not write anywhere.
	l.SecretDetected("session-1", "openai", true)
	l.Failure("op", "session-1", errors.New("boom"))
	if err := l.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
