package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) OpenStream(_ context.Context, _ *Conversation, _ StreamConfig) (Stream, error) {
	return nil, errors.New("stub")
}

func TestRegistryOpen(t *testing.T) {
	r := NewRegistry()
	r.Register("xAI", func(cfg ProviderConfig) (Provider, error) {
		return stubProvider{name: "xai:" + cfg.BaseURL}, nil
	})
	require.Equal(t, []string{"xai"}, r.Names())

	p, err := r.Open(ProviderConfig{Name: " XAI ", BaseURL: "u"})
	require.NoError(t, err)
	require.Equal(t, "xai:u", p.Name())

	r.Register("anthropic", func(ProviderConfig) (Provider, error) { return stubProvider{name: "anthropic"}, nil })
	require.Equal(t, []string{"anthropic", "xai"}, r.Names())

	_, err = r.Open(ProviderConfig{Name: "missing"})
	require.ErrorIs(t, err, ErrNoProvider)
	require.ErrorContains(t, err, `"missing" (known: anthropic, xai)`)
}

func TestConversationAppendIsolation(t *testing.T) {
	calls := []ToolCall{{ID: "c1", Name: "web_search", Arguments: "{}"}}
	conv := NewConversation(Message{Role: "USER", Content: "hi"})
	conv.Append(Message{Role: RoleAssistant, ToolCalls: calls})
	calls[0].ID = "mutated"

	msgs := conv.Messages()
	require.Equal(t, RoleUser, msgs[0].Role)
	require.Equal(t, "c1", msgs[1].ToolCalls[0].ID)

	msgs[1].ToolCalls[0].ID = "again"
	_, ok := conv.ResolveToolCall("c1")
	require.True(t, ok)
	_, ok = conv.ResolveToolCall("")
	require.False(t, ok)
	require.Equal(t, 2, conv.Len())
}

func TestNormalizeRole(t *testing.T) {
	require.Equal(t, RoleSystem, NormalizeRole(" System "))
	require.Equal(t, RoleTool, NormalizeRole("tool"))
	require.Equal(t, RoleUser, NormalizeRole("developer"))
}

func TestNewToolCallID(t *testing.T) {
	id := NewToolCallID()
	require.True(t, strings.HasPrefix(id, "call_"))
	require.NotContains(t, id, "-")
	require.NotEqual(t, id, NewToolCallID())
}

func TestTokenUsageAdd(t *testing.T) {
	var u TokenUsage
	u.Add(&TokenUsage{InputTokens: 1, OutputTokens: 2, TotalTokens: 3})
	u.Add(nil)
	require.Equal(t, 3, u.TotalTokens)
	require.True(t, Chunk{}.Empty())
	require.False(t, Chunk{Content: "x"}.Empty())
}
