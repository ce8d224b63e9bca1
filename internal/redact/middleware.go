// Package redact is the orchestration layer: it composes the detector,
// session store and stream restorer into the three operations a gateway
// invokes, applies policy gating, and implements the fail-safe error
// contract.
package redact

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/llm-secret-redactor/internal/audit"
	"github.com/hfi/llm-secret-redactor/internal/config"
	"github.com/hfi/llm-secret-redactor/internal/detector"
	"github.com/hfi/llm-secret-redactor/internal/metrics"
	"github.com/hfi/llm-secret-redactor/internal/pattern"
	"github.com/hfi/llm-secret-redactor/internal/session"
)

// Metrics is a snapshot of middleware counters.
type Metrics struct {
	RequestCount     int64            `json:"request_count"`
	RedactedCount    int64            `json:"redacted_count"`
	RestoredCount    int64            `json:"restored_count"`
	ErrorCount       int64            `json:"error_count"`
	AvgLatencyMs     float64          `json:"avg_latency_ms"`
	PatternsDetected map[string]int64 `json:"patterns_detected"`
	SessionStats     session.Stats    `json:"session_stats"`
}

// Middleware coordinates secret redaction across a request/response cycle.
// It is safe for concurrent use.
type Middleware struct {
	cfg      *config.Config
	detector *detector.Detector
	store    session.Store
	audit    *audit.Logger
	log      zerolog.Logger

	mu               sync.Mutex
	requestCount     int64
	redactedCount    int64
	restoredCount    int64
	errorCount       int64
	totalLatencyMs   float64
	patternsDetected map[string]int64
}

// New creates a middleware over the given registry and store.
func New(cfg *config.Config, registry *pattern.Registry, store session.Store, auditLog *audit.Logger, log zerolog.Logger) *Middleware {
	if auditLog == nil {
		auditLog = audit.NewNopLogger()
	}
	return &Middleware{
		cfg:              cfg,
		detector:         detector.New(registry),
		store:            store,
		audit:            auditLog,
		log:              log,
		patternsDetected: make(map[string]int64),
	}
}

// Detector returns the underlying detector.
func (m *Middleware) Detector() *detector.Detector {
	return m.detector
}

// RegisterPattern adds a custom secret pattern at runtime. Redaction for
// it is governed by the policy entry under the same key; without one the
// pattern is detected but treated as disabled.
func (m *Middleware) RegisterPattern(key, name, expr string, keywords []string, prefix string, minEntropy float64, allowShort bool) error {
	return m.detector.Registry().Register(key, name, expr, keywords, prefix, minEntropy, allowShort)
}

// failure applies the fail-safe contract: count the error, log a summary
// (session id only, never content), and either swallow the failure or
// surface it.
func (m *Middleware) failure(op, sessionID, content string, err error) (string, error) {
	m.mu.Lock()
	m.errorCount++
	m.mu.Unlock()
	metrics.ErrorsTotal.Inc()

	m.log.Error().Err(err).Str("session_id", sessionID).Str("op", op).Msg("redaction processing failed")
	m.audit.Failure(op, sessionID, err)

	if m.cfg.Redaction.FailSafe {
		return content, nil
	}
	return content, fmt.Errorf("%s: %w", op, err)
}

// finish accumulates latency bookkeeping shared by the process
// entry points and flags detections that blew the soft time budget.
func (m *Middleware) finish(direction, sessionID string, start time.Time) {
	elapsed := time.Since(start)
	elapsedMs := float64(elapsed.Microseconds()) / 1000.0

	m.mu.Lock()
	m.totalLatencyMs += elapsedMs
	m.mu.Unlock()
	metrics.RecordDuration(direction, elapsed.Seconds())

	if budget := m.cfg.Redaction.MaxDetectionTimeMs; budget > 0 && elapsedMs > float64(budget) {
		m.log.Warn().
			Str("session_id", sessionID).
			Str("direction", direction).
			Float64("elapsed_ms", elapsedMs).
			Int("budget_ms", budget).
			Msg("slow redaction")
	}
}

// ProcessRequest detects and redacts secrets in outbound request text.
// It returns the original text unchanged when policy gating skips the
// session, the content exceeds the length cap, or an internal failure is
// absorbed by fail-safe.
func (m *Middleware) ProcessRequest(ctx context.Context, sessionID, content string) (string, error) {
	start := time.Now()
	m.mu.Lock()
	m.requestCount++
	m.mu.Unlock()
	metrics.RequestsTotal.Inc()
	defer func() {
		m.finish("request", sessionID, start)
		m.audit.RequestProcessed(sessionID, float64(time.Since(start).Microseconds())/1000.0)
	}()

	if !m.cfg.Redaction.ShouldProcess(sessionID) {
		return content, nil
	}
	if max := m.cfg.Redaction.MaxTextLength; max > 0 && len(content) > max {
		m.log.Warn().Str("session_id", sessionID).Int("length", len(content)).Msg("content exceeds length cap, skipping redaction")
		metrics.SkippedOverLengthTotal.Inc()
		return content, nil
	}

	detected := m.detector.Detect(content)
	if len(detected) == 0 {
		return content, nil
	}

	redacted := content
	active := make(map[string]string)

	// Detections arrive ordered by descending start offset, so in-place
	// replacement never shifts pending spans.
	for _, s := range detected {
		if !m.cfg.Redaction.PatternEnabled(s.PatternKey) {
			continue
		}

		m.mu.Lock()
		m.patternsDetected[s.PatternKey]++
		m.mu.Unlock()
		metrics.RecordSecretDetected(s.PatternKey)

		if m.cfg.Redaction.PatternLogOnly(s.PatternKey) {
			m.audit.SecretDetected(sessionID, s.PatternKey, false)
			continue
		}

		redacted = redacted[:s.Start] + s.Placeholder + redacted[s.End:]
		active[s.Placeholder] = s.Value
		m.audit.SecretDetected(sessionID, s.PatternKey, true)
	}

	if len(active) == 0 {
		return content, nil
	}
	if err := m.store.StoreMapping(ctx, sessionID, active); err != nil {
		return m.failure("store mapping", sessionID, content, err)
	}

	m.mu.Lock()
	m.redactedCount += int64(len(active))
	m.mu.Unlock()
	metrics.SecretsRedactedTotal.Add(float64(len(active)))
	m.audit.RedactionApplied(sessionID, len(active))

	return redacted, nil
}

// ProcessResponse restores placeholders in a complete response text. A
// session with no stored mapping passes through unchanged; that is the
// normal case for conversations that never carried a secret.
func (m *Middleware) ProcessResponse(ctx context.Context, sessionID, content string) (string, error) {
	start := time.Now()
	defer func() {
		m.finish("response", sessionID, start)
		m.audit.ResponseProcessed(sessionID, float64(time.Since(start).Microseconds())/1000.0)
	}()

	if !m.cfg.Redaction.ShouldProcess(sessionID) {
		return content, nil
	}

	mapping, ok, err := m.store.GetMapping(ctx, sessionID)
	if err != nil {
		return m.failure("get mapping", sessionID, content, err)
	}
	if !ok || len(mapping) == 0 {
		return content, nil
	}

	restored := m.detector.Restore(content, mapping)

	m.mu.Lock()
	m.restoredCount += int64(len(mapping))
	m.mu.Unlock()
	metrics.PlaceholdersRestoredTotal.Add(float64(len(mapping)))
	m.audit.RestorationApplied(sessionID, len(mapping))

	return restored, nil
}

// ProcessStreamingResponse restores placeholders across an incremental
// chunk stream. The returned channel preserves chunk order and closes
// after the input closes and the buffered tail has been flushed. With no
// stored mapping chunks pass through without buffering.
func (m *Middleware) ProcessStreamingResponse(ctx context.Context, sessionID string, in <-chan string) (<-chan string, error) {
	mapping, ok, err := m.store.GetMapping(ctx, sessionID)
	if err != nil {
		if _, ferr := m.failure("get mapping", sessionID, "", err); ferr != nil {
			return nil, ferr
		}
		mapping, ok = nil, false
	}

	out := make(chan string)

	emit := func(s string) bool {
		if s == "" {
			return true
		}
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)

		if !ok || len(mapping) == 0 {
			for {
				select {
				case chunk, open := <-in:
					if !open {
						return
					}
					if !emit(chunk) {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}

		restorer := NewStreamRestorer(m.detector, mapping)
		chunks := 0
		restoredAny := false
		for {
			select {
			case chunk, open := <-in:
				if !open {
					if !emit(restorer.Flush()) {
						return
					}
					if restoredAny {
						m.mu.Lock()
						m.restoredCount += int64(len(mapping))
						m.mu.Unlock()
						metrics.PlaceholdersRestoredTotal.Add(float64(len(mapping)))
					}
					m.audit.StreamProcessed(sessionID, chunks)
					return
				}
				chunks++
				restoredAny = true
				metrics.StreamingChunksTotal.Inc()
				if !emit(restorer.Feed(chunk)) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// ClearSession drops the session's mapping unconditionally.
func (m *Middleware) ClearSession(ctx context.Context, sessionID string) error {
	if err := m.store.ClearSession(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	m.audit.SessionCleared(sessionID)
	return nil
}

// GetMetrics returns a snapshot of middleware counters plus current
// session store statistics.
func (m *Middleware) GetMetrics(ctx context.Context) Metrics {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("session stats unavailable")
	}
	metrics.SessionCount.Set(float64(stats.SessionCount))

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := Metrics{
		RequestCount:     m.requestCount,
		RedactedCount:    m.redactedCount,
		RestoredCount:    m.restoredCount,
		ErrorCount:       m.errorCount,
		PatternsDetected: make(map[string]int64, len(m.patternsDetected)),
		SessionStats:     stats,
	}
	if m.requestCount > 0 {
		snapshot.AvgLatencyMs = m.totalLatencyMs / float64(m.requestCount)
	}
	for k, v := range m.patternsDetected {
		snapshot.PatternsDetected[k] = v
	}
	return snapshot
}

// ResetMetrics zeroes the middleware counters.
func (m *Middleware) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.redactedCount = 0
	m.restoredCount = 0
	m.errorCount = 0
	m.totalLatencyMs = 0
	m.patternsDetected = make(map[string]int64)
}
