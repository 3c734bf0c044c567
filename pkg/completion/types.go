package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	chunkObject      = "chat.completion.chunk"
	completionObject = "chat.completion"
	toolCallType     = "function"
)

// Finish reasons emitted on the terminal chunk of a round.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// Request is the OpenAI-style body accepted by the completion endpoint.
type Request struct {
	Messages    []RequestMessage `json:"messages"`
	Model       string           `json:"model,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stream      *bool            `json:"stream,omitempty"`
	UseTools    *bool            `json:"use_tools,omitempty"`
}

// Streaming reports whether the caller asked for SSE. Absent means true.
func (r Request) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// RequestMessage is a single caller-supplied message.
type RequestMessage struct {
	Role       string            `json:"role"`
	Content    MessageContent    `json:"content"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	ToolCalls  []ToolCallPayload `json:"tool_calls,omitempty"`
}

// ToolCallPayload is the wire shape of a tool call, used both in request
// history and in streamed deltas.
type ToolCallPayload struct {
	Index    int             `json:"index"`
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function FunctionPayload `json:"function"`
}

// FunctionPayload carries the function name and raw JSON arguments.
type FunctionPayload struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// MessageContent normalizes string vs array payloads.
type MessageContent []MessageContentPart

// MessageContentPart is a single text segment.
type MessageContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Text collapses all text parts into a single string.
func (c MessageContent) Text() string {
	if len(c) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range c {
		if part.Type == "text" && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// UnmarshalJSON accepts a string, an array of parts, or null.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	switch data[0] {
	case '[':
		var parts []MessageContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = MessageContent(parts)
		return nil
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = MessageContent{{Type: "text", Text: text}}
		return nil
	}
	return fmt.Errorf("unsupported message content: %s", string(data))
}

// MarshalJSON writes the content back as a plain string.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(c.Text())
}

// TextContent builds a single-part content value.
func TextContent(text string) MessageContent {
	return MessageContent{{Type: "text", Text: text}}
}

// Chunk is an OpenAI-compatible chat.completion.chunk record.
type Chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is the single choice carried by every chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental payload of a chunk. ToolCalls holds cumulative
// values, not increments.
type Delta struct {
	Content   string            `json:"content,omitempty"`
	ToolCalls []ToolCallPayload `json:"tool_calls,omitempty"`
}

// Empty reports whether the delta carries nothing.
func (d Delta) Empty() bool {
	return d.Content == "" && len(d.ToolCalls) == 0
}

// Completion is the non-streaming chat.completion response.
type Completion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
}

// CompletionChoice wraps the final assistant message.
type CompletionChoice struct {
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// CompletionMessage is the assistant message of a non-streaming response.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
