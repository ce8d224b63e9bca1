package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StreamChunk is the decoded form of one streaming event's content.
type StreamChunk struct {
	// Data is the raw event payload.
	Data []byte
	// Delta is the incremental text content, if any.
	Delta string
	// Role carries the role when present in this chunk.
	Role string
	// FinishReason is set on the final content chunk.
	FinishReason string
	// IsDone marks the [DONE] terminator.
	IsDone bool
	// Metadata preserves chunk fields that must survive re-serialization.
	Metadata map[string]interface{}
}

// OpenAI streaming wire structures. The same shape is used by many
// OpenAI-compatible providers.
type openAIStreamChunk struct {
	ID      string               `json:"id"`
	Object  string               `json:"object"`
	Created int64                `json:"created"`
	Model   string               `json:"model"`
	Choices []openAIStreamChoice `json:"choices"`
}

type openAIStreamChoice struct {
	Index        int               `json:"index"`
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason *string           `json:"finish_reason"`
}

type openAIStreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ParseStreamChunk parses one OpenAI streaming event payload.
func ParseStreamChunk(data []byte) (*StreamChunk, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("[DONE]")) {
		return &StreamChunk{Data: data, IsDone: true}, nil
	}

	var chunk openAIStreamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("parse stream chunk: %w", err)
	}

	result := &StreamChunk{
		Data: data,
		Metadata: map[string]interface{}{
			"id":      chunk.ID,
			"object":  chunk.Object,
			"created": chunk.Created,
			"model":   chunk.Model,
		},
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		result.Delta = choice.Delta.Content
		result.Role = choice.Delta.Role
		if choice.FinishReason != nil {
			result.FinishReason = *choice.FinishReason
		}
	}

	return result, nil
}

// SerializeStreamChunk converts a chunk back to its wire payload.
func SerializeStreamChunk(chunk *StreamChunk) ([]byte, error) {
	if chunk.IsDone {
		return []byte("[DONE]"), nil
	}

	streamChunk := openAIStreamChunk{
		Choices: []openAIStreamChoice{
			{
				Index: 0,
				Delta: openAIStreamDelta{
					Role:    chunk.Role,
					Content: chunk.Delta,
				},
			},
		},
	}

	if id, ok := chunk.Metadata["id"].(string); ok {
		streamChunk.ID = id
	}
	if object, ok := chunk.Metadata["object"].(string); ok {
		streamChunk.Object = object
	}
	if created, ok := chunk.Metadata["created"].(int64); ok {
		streamChunk.Created = created
	}
	if model, ok := chunk.Metadata["model"].(string); ok {
		streamChunk.Model = model
	}

	if chunk.FinishReason != "" {
		streamChunk.Choices[0].FinishReason = &chunk.FinishReason
	}

	return json.Marshal(&streamChunk)
}
