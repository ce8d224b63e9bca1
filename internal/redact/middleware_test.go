package redact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/llm-secret-redactor/internal/audit"
	"github.com/hfi/llm-secret-redactor/internal/config"
	"github.com/hfi/llm-secret-redactor/internal/pattern"
	"github.com/hfi/llm-secret-redactor/internal/session"
)

const testOpenAIKey = "sk-abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUV"

func newTestMiddleware(cfg *config.Config) (*Middleware, *session.MemoryStore) {
	store := session.NewMemoryStore(100, 100, 30*time.Minute)
	mw := New(cfg, pattern.NewRegistry(), store, audit.NewNopLogger(), zerolog.Nop())
	return mw, store
}

// failStore returns the given error from every operation.
type failStore struct {
	err error
}

func (f *failStore) StoreMapping(context.Context, string, map[string]string) error {
	return f.err
}

func (f *failStore) GetMapping(context.Context, string) (map[string]string, bool, error) {
	return nil, false, f.err
}

func (f *failStore) ClearSession(context.Context, string) error { return f.err }
func (f *failStore) Stats(context.Context) (session.Stats, error) {
	return session.Stats{}, f.err
}
func (f *failStore) Close() error { return nil }

func TestMiddleware_RequestResponseRoundTrip(t *testing.T) {
	mw, _ := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	request := "please call the API with " + testOpenAIKey + " and report back"
	redacted, err := mw.ProcessRequest(ctx, "session-1", request)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if strings.Contains(redacted, testOpenAIKey) {
		t.Fatal("redacted request still contains the secret")
	}
	if !strings.Contains(redacted, "<OPENAI_KEY_REDACTED_") {
		t.Fatalf("redacted request missing placeholder: %q", redacted)
	}

	// The model echoes the placeholder back.
	response := "sure, I used " + strings.TrimSpace(strings.TrimPrefix(redacted, "please call the API with")) + " as instructed"
	restored, err := mw.ProcessResponse(ctx, "session-1", response)
	if err != nil {
		t.Fatalf("ProcessResponse() error: %v", err)
	}
	if !strings.Contains(restored, testOpenAIKey) {
		t.Errorf("restored response missing original secret: %q", restored)
	}
	if strings.Contains(restored, "_REDACTED_") {
		t.Errorf("restored response still contains placeholder: %q", restored)
	}
}

func TestMiddleware_NoSecretsPassthrough(t *testing.T) {
	mw, store := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	content := "a perfectly ordinary prompt"
	got, err := mw.ProcessRequest(ctx, "session-1", content)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if got != content {
		t.Errorf("ProcessRequest() = %q, want unchanged", got)
	}

	stats, _ := store.Stats(ctx)
	if stats.SessionCount != 0 {
		t.Errorf("SessionCount = %d, want 0 for secret-free request", stats.SessionCount)
	}
}

func TestMiddleware_RolloutZeroSkipsEverything(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redaction.RolloutPercentage = 0
	mw, store := newTestMiddleware(cfg)
	ctx := context.Background()

	content := "my key is " + testOpenAIKey
	got, err := mw.ProcessRequest(ctx, "session-1", content)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if got != content {
		t.Errorf("ProcessRequest() modified content with rollout 0")
	}

	stats, _ := store.Stats(ctx)
	if stats.SessionCount != 0 {
		t.Errorf("store touched with rollout 0: %d sessions", stats.SessionCount)
	}

	response := "echo " + content
	if got, _ := mw.ProcessResponse(ctx, "session-1", response); got != response {
		t.Errorf("ProcessResponse() modified content with rollout 0")
	}
}

func TestMiddleware_DisabledEntirely(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redaction.Enabled = false
	mw, _ := newTestMiddleware(cfg)

	content := "my key is " + testOpenAIKey
	got, err := mw.ProcessRequest(context.Background(), "session-1", content)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if got != content {
		t.Error("ProcessRequest() modified content while disabled")
	}
}

func TestMiddleware_LogOnlyPattern(t *testing.T) {
	// aws_secret defaults to log-only: detected and counted, never replaced.
	mw, store := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	content := "aws secret: wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"
	got, err := mw.ProcessRequest(ctx, "session-1", content)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if got != content {
		t.Errorf("log-only pattern was replaced:\n got %q", got)
	}

	m := mw.GetMetrics(ctx)
	if m.PatternsDetected["aws_secret"] != 1 {
		t.Errorf("PatternsDetected[aws_secret] = %d, want 1", m.PatternsDetected["aws_secret"])
	}
	if m.RedactedCount != 0 {
		t.Errorf("RedactedCount = %d, want 0", m.RedactedCount)
	}

	stats, _ := store.Stats(ctx)
	if stats.SessionCount != 0 {
		t.Errorf("log-only detection stored a mapping")
	}
}

func TestMiddleware_DisabledPattern(t *testing.T) {
	// hex_secret is disabled by default: not replaced, not counted.
	mw, _ := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	content := "secret: aabbccddeeff00112233aabbccddeeff"
	got, err := mw.ProcessRequest(ctx, "session-1", content)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if got != content {
		t.Errorf("disabled pattern was replaced:\n got %q", got)
	}

	m := mw.GetMetrics(ctx)
	if m.PatternsDetected["hex_secret"] != 0 {
		t.Errorf("PatternsDetected[hex_secret] = %d, want 0", m.PatternsDetected["hex_secret"])
	}
}

func TestMiddleware_MaxTextLengthSkip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redaction.MaxTextLength = 40
	mw, _ := newTestMiddleware(cfg)

	content := "here is a key " + testOpenAIKey + " inside an oversized body"
	got, err := mw.ProcessRequest(context.Background(), "session-1", content)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if got != content {
		t.Error("oversized content was modified, want skip")
	}
}

func TestMiddleware_FailSafe(t *testing.T) {
	testCases := []struct {
		name     string
		failSafe bool
		wantErr  bool
	}{
		{name: "fail safe absorbs store errors", failSafe: true, wantErr: false},
		{name: "fail safe off surfaces store errors", failSafe: false, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Redaction.FailSafe = tc.failSafe
			store := &failStore{err: errors.New("redis unreachable")}
			mw := New(cfg, pattern.NewRegistry(), store, audit.NewNopLogger(), zerolog.Nop())

			content := "my key is " + testOpenAIKey
			got, err := mw.ProcessRequest(context.Background(), "session-1", content)
			if tc.wantErr {
				if err == nil {
					t.Fatal("ProcessRequest() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ProcessRequest() error: %v", err)
			}
			if got != content {
				t.Errorf("fail-safe must return original content, got %q", got)
			}

			m := mw.GetMetrics(context.Background())
			if m.ErrorCount != 1 {
				t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
			}
		})
	}
}

func TestMiddleware_ResponseWithoutMapping(t *testing.T) {
	mw, _ := newTestMiddleware(config.DefaultConfig())

	response := "no session state here <OPENAI_KEY_REDACTED_abcd>"
	got, err := mw.ProcessResponse(context.Background(), "fresh-session", response)
	if err != nil {
		t.Fatalf("ProcessResponse() error: %v", err)
	}
	if got != response {
		t.Errorf("ProcessResponse() = %q, want passthrough", got)
	}
}

func TestMiddleware_StreamingRestore(t *testing.T) {
	mw, _ := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	request := "use " + testOpenAIKey + " for the call"
	redacted, err := mw.ProcessRequest(ctx, "session-1", request)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}

	// Stream the redacted text back in small chunks, as a provider would.
	in := make(chan string)
	out, err := mw.ProcessStreamingResponse(ctx, "session-1", in)
	if err != nil {
		t.Fatalf("ProcessStreamingResponse() error: %v", err)
	}

	go func() {
		defer close(in)
		runes := []rune(redacted)
		for i := 0; i < len(runes); i += 4 {
			end := i + 4
			if end > len(runes) {
				end = len(runes)
			}
			in <- string(runes[i:end])
		}
	}()

	var got strings.Builder
	for chunk := range out {
		got.WriteString(chunk)
	}

	if got.String() != request {
		t.Errorf("streaming restore mismatch:\n got %q\nwant %q", got.String(), request)
	}
}

func TestMiddleware_StreamingWithoutMapping(t *testing.T) {
	mw, _ := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	in := make(chan string)
	out, err := mw.ProcessStreamingResponse(ctx, "fresh-session", in)
	if err != nil {
		t.Fatalf("ProcessStreamingResponse() error: %v", err)
	}

	chunks := []string{"plain ", "stream ", "content"}
	go func() {
		defer close(in)
		for _, c := range chunks {
			in <- c
		}
	}()

	var got strings.Builder
	for chunk := range out {
		got.WriteString(chunk)
	}
	if got.String() != "plain stream content" {
		t.Errorf("passthrough stream = %q", got.String())
	}
}

func TestMiddleware_ClearSession(t *testing.T) {
	mw, _ := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	redacted, err := mw.ProcessRequest(ctx, "session-1", "key: "+testOpenAIKey)
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if err := mw.ClearSession(ctx, "session-1"); err != nil {
		t.Fatalf("ClearSession() error: %v", err)
	}

	// With the mapping gone the placeholder cannot be restored.
	got, err := mw.ProcessResponse(ctx, "session-1", redacted)
	if err != nil {
		t.Fatalf("ProcessResponse() error: %v", err)
	}
	if got != redacted {
		t.Errorf("ProcessResponse() after clear = %q, want passthrough", got)
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	mw, _ := newTestMiddleware(config.DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sessionID := fmt.Sprintf("session-%d", i)
		if _, err := mw.ProcessRequest(ctx, sessionID, "key: "+testOpenAIKey); err != nil {
			t.Fatalf("ProcessRequest() error: %v", err)
		}
	}

	m := mw.GetMetrics(ctx)
	if m.RequestCount != 3 {
		t.Errorf("RequestCount = %d, want 3", m.RequestCount)
	}
	if m.RedactedCount != 3 {
		t.Errorf("RedactedCount = %d, want 3", m.RedactedCount)
	}
	if m.PatternsDetected["openai"] != 3 {
		t.Errorf("PatternsDetected[openai] = %d, want 3", m.PatternsDetected["openai"])
	}
	if m.SessionStats.SessionCount != 3 {
		t.Errorf("SessionStats.SessionCount = %d, want 3", m.SessionStats.SessionCount)
	}
	if m.AvgLatencyMs < 0 {
		t.Errorf("AvgLatencyMs = %f, want >= 0", m.AvgLatencyMs)
	}

	mw.ResetMetrics()
	m = mw.GetMetrics(ctx)
	if m.RequestCount != 0 || m.RedactedCount != 0 || len(m.PatternsDetected) != 0 {
		t.Errorf("metrics not reset: %+v", m)
	}
}

func TestMiddleware_RegisterPattern(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redaction.Patterns["internal_token"] = config.PatternPolicy{Enabled: true}
	mw, _ := newTestMiddleware(cfg)
	ctx := context.Background()

	err := mw.RegisterPattern("internal_token", "Internal Token", `\b(itk-[a-z0-9]{20})\b`, []string{"itk-"}, "", 0, false)
	if err != nil {
		t.Fatalf("RegisterPattern() error: %v", err)
	}

	got, err := mw.ProcessRequest(ctx, "session-1", "deploy with itk-abcdefghij0123456789")
	if err != nil {
		t.Fatalf("ProcessRequest() error: %v", err)
	}
	if !strings.Contains(got, "<INTERNAL_TOKEN_REDACTED_") {
		t.Errorf("custom pattern not redacted: %q", got)
	}
}
