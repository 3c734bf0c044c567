package model

import (
	"strings"

	"github.com/google/uuid"
)

// Role names accepted in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one immutable entry of a conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a completed tool invocation requested by the assistant.
// Arguments is the raw JSON text assembled from the stream.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Conversation is the provider-neutral, append-only message history of one
// completion request.
type Conversation struct {
	messages []Message
}

// NewConversation copies msgs into a fresh conversation.
func NewConversation(msgs ...Message) *Conversation {
	c := &Conversation{}
	for _, msg := range msgs {
		c.Append(msg)
	}
	return c
}

// Append adds a message. The stored value is a copy.
func (c *Conversation) Append(msg Message) {
	msg.Role = NormalizeRole(msg.Role)
	msg.ToolCalls = cloneToolCalls(msg.ToolCalls)
	c.messages = append(c.messages, msg)
}

// Messages returns a snapshot of the history.
func (c *Conversation) Messages() []Message {
	if c == nil {
		return nil
	}
	out := make([]Message, len(c.messages))
	for i, msg := range c.messages {
		msg.ToolCalls = cloneToolCalls(msg.ToolCalls)
		out[i] = msg
	}
	return out
}

// Len reports the number of messages.
func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.messages)
}

// ResolveToolCall finds the assistant tool call a tool message refers to.
func (c *Conversation) ResolveToolCall(id string) (ToolCall, bool) {
	if c == nil || id == "" {
		return ToolCall{}, false
	}
	for i := len(c.messages) - 1; i >= 0; i-- {
		for _, call := range c.messages[i].ToolCalls {
			if call.ID == id {
				return call, true
			}
		}
	}
	return ToolCall{}, false
}

// NormalizeRole lowercases role and folds unknown values to user.
func NormalizeRole(role string) string {
	switch trimmed := strings.ToLower(strings.TrimSpace(role)); trimmed {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return trimmed
	default:
		return RoleUser
	}
}

func cloneToolCalls(calls []ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	copy(out, calls)
	return out
}

// NewToolCallID returns an id for a tool call the provider left unnamed.
func NewToolCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
