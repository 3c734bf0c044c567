package completion

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cexll/grokrelay/pkg/model"
)

func TestAccumulatorContentOnly(t *testing.T) {
	acc := NewAccumulator()
	d := acc.Observe(contentChunk("Hel"))
	require.Equal(t, "Hel", d.Content)
	require.Nil(t, d.ToolCalls)
	acc.Observe(contentChunk("lo"))

	require.Equal(t, "Hello", acc.Content())
	require.Equal(t, FinishStop, acc.FinishReason())
	require.Nil(t, acc.ToolCalls())
}

func TestAccumulatorConcatenatesArgumentsByID(t *testing.T) {
	acc := NewAccumulator()
	acc.Observe(toolChunk("c1", "web_search", `{"query":`))
	d := acc.Observe(toolChunk("c1", "", `"go"}`))

	require.Len(t, d.ToolCalls, 1)
	require.Equal(t, 0, d.ToolCalls[0].Index)
	require.Equal(t, "c1", d.ToolCalls[0].ID)
	require.Equal(t, "function", d.ToolCalls[0].Type)
	require.Equal(t, "web_search", d.ToolCalls[0].Function.Name)
	require.Equal(t, `{"query":"go"}`, d.ToolCalls[0].Function.Arguments)

	calls := acc.ToolCalls()
	require.Equal(t, []model.ToolCall{{ID: "c1", Name: "web_search", Arguments: `{"query":"go"}`}}, calls)
	require.Equal(t, FinishToolCalls, acc.FinishReason())
}

func TestAccumulatorIndexStableUnderInterleaving(t *testing.T) {
	acc := NewAccumulator()
	acc.Observe(toolChunk("a", "web_search", `{"q":`))
	acc.Observe(toolChunk("b", "x_search", `{"q":`))
	acc.Observe(toolChunk("a", "", `"1"}`))
	d := acc.Observe(toolChunk("b", "", `"2"}`))

	require.Len(t, d.ToolCalls, 2)
	require.Equal(t, "a", d.ToolCalls[0].ID)
	require.Equal(t, 0, d.ToolCalls[0].Index)
	require.Equal(t, `{"q":"1"}`, d.ToolCalls[0].Function.Arguments)
	require.Equal(t, "b", d.ToolCalls[1].ID)
	require.Equal(t, 1, d.ToolCalls[1].Index)
	require.Equal(t, `{"q":"2"}`, d.ToolCalls[1].Function.Arguments)
}

func TestAccumulatorNameIncrementsAppend(t *testing.T) {
	acc := NewAccumulator()
	acc.Observe(toolChunk("c1", "web_", ""))
	acc.Observe(toolChunk("c1", "search", "{}"))
	require.Equal(t, "web_search", acc.ToolCalls()[0].Name)
}

func TestAccumulatorEmptyIDAlwaysOpensFragment(t *testing.T) {
	acc := NewAccumulator()
	n := 0
	acc.newID = func() string {
		n++
		return fmt.Sprintf("call_synth%d", n)
	}
	acc.Observe(toolChunk("", "web_search", `{"a":1}`))
	acc.Observe(toolChunk("", "web_search", `{"b":2}`))

	calls := acc.ToolCalls()
	require.Len(t, calls, 2)
	require.Equal(t, "call_synth1", calls[0].ID)
	require.Equal(t, "call_synth2", calls[1].ID)
	require.Equal(t, `{"b":2}`, calls[1].Arguments)
}

func TestSynthesizedCallIDShape(t *testing.T) {
	id := model.NewToolCallID()
	require.True(t, strings.HasPrefix(id, "call_"))
	require.Len(t, id, len("call_")+32)
	require.NotContains(t, id, "-")
}

func TestAccumulatorCitationsAndUsage(t *testing.T) {
	acc := NewAccumulator()
	d := acc.Observe(model.Chunk{Citations: []string{"https://x.ai"}})
	require.True(t, d.Empty())
	acc.Observe(model.Chunk{Usage: &model.TokenUsage{InputTokens: 3, OutputTokens: 4}})

	require.Equal(t, []string{"https://x.ai"}, acc.Citations())
	require.Equal(t, 4, acc.Usage().OutputTokens)
}

func TestToWireChunkFinishReason(t *testing.T) {
	c := ToWireChunk("chatcmpl-x", 42, "grok-4", Delta{Content: "hi"}, "")
	require.Equal(t, "chat.completion.chunk", c.Object)
	require.Len(t, c.Choices, 1)
	require.Nil(t, c.Choices[0].FinishReason)

	c = ToWireChunk("chatcmpl-x", 42, "grok-4", Delta{}, FinishStop)
	require.NotNil(t, c.Choices[0].FinishReason)
	require.Equal(t, "stop", *c.Choices[0].FinishReason)
	require.Equal(t, int64(42), c.Created)
}

func TestNewRequestIDShape(t *testing.T) {
	id := NewRequestID()
	require.True(t, strings.HasPrefix(id, "chatcmpl-"))
	suffix := strings.TrimPrefix(id, "chatcmpl-")
	require.Len(t, suffix, 29)
	for _, r := range suffix {
		require.True(t, strings.ContainsRune(requestIDChars, r), "unexpected rune %q", r)
	}
	require.NotEqual(t, id, NewRequestID())
}

func TestBuildConversation(t *testing.T) {
	_, err := BuildConversation(nil)
	require.ErrorIs(t, err, ErrNoMessages)

	_, err = BuildConversation([]RequestMessage{{Role: "tool", Content: TextContent("x")}})
	require.ErrorIs(t, err, ErrInvalidMessage)

	conv, err := BuildConversation([]RequestMessage{
		{Role: "system", Content: TextContent("be brief")},
		{Role: "assistant", ToolCalls: []ToolCallPayload{{ID: "c1", Function: FunctionPayload{Name: "web_search", Arguments: "{}"}}}},
		{Role: "tool", ToolCallID: "c1", Content: TextContent("result")},
		{Role: "weird", Content: TextContent("hi")},
	})
	require.NoError(t, err)
	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	require.Equal(t, model.RoleUser, msgs[3].Role)
	call, ok := conv.ResolveToolCall(msgs[2].ToolCallID)
	require.True(t, ok)
	require.Equal(t, "web_search", call.Name)
}
