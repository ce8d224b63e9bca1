package protocol

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestSSEParser_ReadEvent(t *testing.T) {
	input := "event: message\ndata: hello\n\ndata: world\n\n: a comment\ndata: after comment\n\n"
	p := NewSSEParser(strings.NewReader(input))

	eventType, data, err := p.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error: %v", err)
	}
	if eventType != "message" {
		t.Errorf("eventType = %q, want message", eventType)
	}
	if string(data) != "hello" {
		t.Errorf("data = %q, want hello", data)
	}

	_, data, err = p.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error: %v", err)
	}
	if string(data) != "world" {
		t.Errorf("data = %q, want world", data)
	}

	_, data, err = p.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error: %v", err)
	}
	if string(data) != "after comment" {
		t.Errorf("data = %q, want after comment", data)
	}

	if _, _, err = p.ReadEvent(); err != io.EOF {
		t.Errorf("ReadEvent() at end = %v, want io.EOF", err)
	}
}

func TestSSEParser_MultilineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	p := NewSSEParser(strings.NewReader(input))

	_, data, err := p.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error: %v", err)
	}
	if string(data) != "line one\nline two" {
		t.Errorf("data = %q, want joined lines", data)
	}
}

func TestSSEWriter_WriteEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)

	if err := w.WriteEvent("message", []byte("hello")); err != nil {
		t.Fatalf("WriteEvent() error: %v", err)
	}
	want := "event: message\ndata: hello\n\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := w.WriteEvent("", []byte("bare")); err != nil {
		t.Fatalf("WriteEvent() error: %v", err)
	}
	if buf.String() != "data: bare\n\n" {
		t.Errorf("output = %q, want data-only event", buf.String())
	}
}

func TestSSE_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewSSEWriter(&buf)

	payloads := []string{"first", "second", "third"}
	for _, p := range payloads {
		if err := w.WriteEvent("", []byte(p)); err != nil {
			t.Fatalf("WriteEvent() error: %v", err)
		}
	}

	p := NewSSEParser(&buf)
	for i, want := range payloads {
		_, data, err := p.ReadEvent()
		if err != nil {
			t.Fatalf("ReadEvent() %d error: %v", i, err)
		}
		if string(data) != want {
			t.Errorf("event %d = %q, want %q", i, data, want)
		}
	}
}

func TestParseStreamChunk(t *testing.T) {
	raw := `{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4","choices":[{"index":0,"delta":{"content":"hello"},"finish_reason":null}]}`

	chunk, err := ParseStreamChunk([]byte(raw))
	if err != nil {
		t.Fatalf("ParseStreamChunk() error: %v", err)
	}
	if chunk.IsDone {
		t.Error("IsDone = true for content chunk")
	}
	if chunk.Delta != "hello" {
		t.Errorf("Delta = %q, want hello", chunk.Delta)
	}
	if chunk.Metadata["id"] != "chatcmpl-1" {
		t.Errorf("Metadata[id] = %v, want chatcmpl-1", chunk.Metadata["id"])
	}
	if chunk.Metadata["model"] != "gpt-4" {
		t.Errorf("Metadata[model] = %v, want gpt-4", chunk.Metadata["model"])
	}
}

func TestParseStreamChunk_Done(t *testing.T) {
	chunk, err := ParseStreamChunk([]byte("[DONE]"))
	if err != nil {
		t.Fatalf("ParseStreamChunk() error: %v", err)
	}
	if !chunk.IsDone {
		t.Error("IsDone = false for [DONE]")
	}
}

func TestParseStreamChunk_Invalid(t *testing.T) {
	if _, err := ParseStreamChunk([]byte("not json at all")); err == nil {
		t.Error("ParseStreamChunk() error = nil for invalid payload")
	}
}

func TestSerializeStreamChunk(t *testing.T) {
	chunk := &StreamChunk{
		Delta:        "restored text",
		FinishReason: "stop",
		Metadata: map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion.chunk",
			"created": int64(1700000000),
			"model":   "gpt-4",
		},
	}

	payload, err := SerializeStreamChunk(chunk)
	if err != nil {
		t.Fatalf("SerializeStreamChunk() error: %v", err)
	}

	var decoded openAIStreamChunk
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal serialized chunk: %v", err)
	}
	if decoded.ID != "chatcmpl-1" {
		t.Errorf("ID = %q, want chatcmpl-1", decoded.ID)
	}
	if decoded.Created != 1700000000 {
		t.Errorf("Created = %d, want 1700000000", decoded.Created)
	}
	if len(decoded.Choices) != 1 || decoded.Choices[0].Delta.Content != "restored text" {
		t.Errorf("choices = %+v", decoded.Choices)
	}
	if decoded.Choices[0].FinishReason == nil || *decoded.Choices[0].FinishReason != "stop" {
		t.Error("finish_reason not preserved")
	}
}

func TestSerializeStreamChunk_Done(t *testing.T) {
	payload, err := SerializeStreamChunk(&StreamChunk{IsDone: true})
	if err != nil {
		t.Fatalf("SerializeStreamChunk() error: %v", err)
	}
	if string(payload) != "[DONE]" {
		t.Errorf("payload = %q, want [DONE]", payload)
	}
}

func TestStreamChunk_RoundTrip(t *testing.T) {
	raw := `{"id":"chatcmpl-9","object":"chat.completion.chunk","created":1700000001,"model":"gpt-4","choices":[{"index":0,"delta":{"content":"chunk text"},"finish_reason":null}]}`

	chunk, err := ParseStreamChunk([]byte(raw))
	if err != nil {
		t.Fatalf("ParseStreamChunk() error: %v", err)
	}
	payload, err := SerializeStreamChunk(chunk)
	if err != nil {
		t.Fatalf("SerializeStreamChunk() error: %v", err)
	}
	again, err := ParseStreamChunk(payload)
	if err != nil {
		t.Fatalf("ParseStreamChunk() of serialized form error: %v", err)
	}
	if again.Delta != chunk.Delta {
		t.Errorf("Delta = %q after round trip, want %q", again.Delta, chunk.Delta)
	}
	if again.Metadata["id"] != chunk.Metadata["id"] {
		t.Errorf("Metadata[id] = %v after round trip, want %v", again.Metadata["id"], chunk.Metadata["id"])
	}
}
