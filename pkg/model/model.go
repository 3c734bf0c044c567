package model

import (
	"context"
	"errors"
)

// ErrNoProvider reports a provider name that has no registered implementation.
var ErrNoProvider = errors.New("model: unknown provider")

// Provider opens streaming completions against an upstream LLM API. Every
// call opens a fresh stream; streams are never restarted.
type Provider interface {
	Name() string
	OpenStream(ctx context.Context, conv *Conversation, cfg StreamConfig) (Stream, error)
}

// Stream yields provider chunks in arrival order. Next blocks until a chunk
// is available or the upstream ends; Err reports why iteration stopped.
type Stream interface {
	Next() bool
	Current() Chunk
	Err() error
	Close() error
}

// StreamConfig carries the per-round request options.
type StreamConfig struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	Tools       []ToolSpec
	// Verbose asks the provider for intermediate metadata (usage, citations)
	// alongside content deltas.
	Verbose bool
}

// ToolSpec describes a callable function advertised to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Chunk is one provider-native increment normalised across providers.
type Chunk struct {
	Content   string
	ToolCalls []ToolCallDelta
	Citations []string
	Usage     *TokenUsage
}

// Empty reports whether the chunk carries nothing the caller would see.
func (c Chunk) Empty() bool {
	return c.Content == "" && len(c.ToolCalls) == 0
}

// ToolCallDelta is a partial tool call. Providers fill ID on every delta
// they can attribute; an empty ID means the provider never supplied one.
type ToolCallDelta struct {
	ID        string
	Name      string
	Arguments string
}
