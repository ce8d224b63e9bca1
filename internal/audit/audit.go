// Package audit emits structured audit events for the redaction pipeline.
// Events describe what happened to a session (detections, replacements,
// restorations, failures) and never include secret values or the originals
// behind placeholders.
package audit

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// EventType represents the type of audit event
type EventType string

const (
	EventSecretDetected      EventType = "secret_detected"
	EventSecretRedacted      EventType = "secret_redacted"
	EventPlaceholderRestored EventType = "placeholder_restored"
	EventRequestProcessed    EventType = "request_processed"
	EventResponseProcessed   EventType = "response_processed"
	EventStreamProcessed     EventType = "stream_processed"
	EventProcessingFailed    EventType = "processing_failed"
	EventSessionCleared      EventType = "session_cleared"
)

// Config holds audit logger configuration
type Config struct {
	Enabled bool `yaml:"enabled"`

	// Level controls what events are logged:
	// "minimal"  - only detections, replacements and restorations
	// "standard" - minimal plus request/response/stream events
	// "verbose"  - everything
	Level string `yaml:"level"`

	// Output is "stdout", "stderr", or a file path.
	Output string `yaml:"output"`

	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// DefaultConfig returns the default audit configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Level:   "standard",
		Output:  "stdout",
		Format:  "json",
	}
}

// Logger writes audit events.
type Logger struct {
	mu      sync.RWMutex
	config  *Config
	log     zerolog.Logger
	output  io.Writer
	enabled bool
}

// NewLogger creates an audit logger from config.
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{
		config:  cfg,
		enabled: cfg.Enabled,
	}
	if err := l.setupOutput(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	return &Logger{
		config: &Config{},
		log:    zerolog.Nop(),
	}
}

func (l *Logger) setupOutput() error {
	var output io.Writer

	switch l.config.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(l.config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open audit output: %w", err)
		}
		output = f
	}
	l.output = output

	if l.config.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output}
	}
	l.log = zerolog.New(output).With().Timestamp().Str("component", "audit").Logger()
	return nil
}

func (l *Logger) shouldLog(t EventType) bool {
	switch l.config.Level {
	case "minimal":
		return t == EventSecretDetected ||
			t == EventSecretRedacted ||
			t == EventPlaceholderRestored
	case "standard":
		return t != EventSessionCleared
	default:
		return true
	}
}

func (l *Logger) event(t EventType) (*zerolog.Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.enabled || !l.shouldLog(t) {
		return nil, false
	}
	return l.log.Info().Str("type", string(t)), true
}

// SecretDetected records one detection: which pattern fired for which
// session and whether the match was actually replaced.
func (l *Logger) SecretDetected(sessionID, patternKey string, redacted bool) {
	if e, ok := l.event(EventSecretDetected); ok {
		e.Str("session_id", sessionID).
			Str("pattern", patternKey).
			Bool("redacted", redacted).
			Send()
	}
}

// RedactionApplied records how many placeholders replaced secrets in one
// request.
func (l *Logger) RedactionApplied(sessionID string, count int) {
	if e, ok := l.event(EventSecretRedacted); ok {
		e.Str("session_id", sessionID).Int("count", count).Send()
	}
}

// RestorationApplied records how many mapping entries were available when
// restoring one response.
func (l *Logger) RestorationApplied(sessionID string, count int) {
	if e, ok := l.event(EventPlaceholderRestored); ok {
		e.Str("session_id", sessionID).Int("count", count).Send()
	}
}

// RequestProcessed records a completed request pass.
func (l *Logger) RequestProcessed(sessionID string, durationMs float64) {
	if e, ok := l.event(EventRequestProcessed); ok {
		e.Str("session_id", sessionID).Float64("duration_ms", durationMs).Send()
	}
}

// ResponseProcessed records a completed response pass.
func (l *Logger) ResponseProcessed(sessionID string, durationMs float64) {
	if e, ok := l.event(EventResponseProcessed); ok {
		e.Str("session_id", sessionID).Float64("duration_ms", durationMs).Send()
	}
}

// StreamProcessed records a completed streaming restoration.
func (l *Logger) StreamProcessed(sessionID string, chunks int) {
	if e, ok := l.event(EventStreamProcessed); ok {
		e.Str("session_id", sessionID).Int("chunks", chunks).Send()
	}
}

// Failure records an internal processing failure. The error summary must
// never contain secret material; component errors only carry operation
// context and session ids.
func (l *Logger) Failure(op, sessionID string, err error) {
	if e, ok := l.event(EventProcessingFailed); ok {
		e.Str("session_id", sessionID).Str("op", op).Str("error", err.Error()).Send()
	}
}

// SessionCleared records an explicit session removal.
func (l *Logger) SessionCleared(sessionID string) {
	if e, ok := l.event(EventSessionCleared); ok {
		e.Str("session_id", sessionID).Send()
	}
}

// Enable enables audit logging
func (l *Logger) Enable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = true
}

// Disable disables audit logging
func (l *Logger) Disable() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = false
}

// Close closes the logger output if it owns a file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.output.(io.Closer); ok {
		if l.output != os.Stdout && l.output != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}
