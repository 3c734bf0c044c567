package completion

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/cexll/grokrelay/pkg/model"
)

const (
	requestIDPrefix = "chatcmpl-"
	requestIDLength = 29
	requestIDChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	// ErrNoMessages rejects requests without any message.
	ErrNoMessages = errors.New("completion: messages are required")
	// ErrInvalidMessage rejects a message the provider could not accept.
	ErrInvalidMessage = errors.New("completion: invalid message")
)

// BuildConversation translates caller messages into a provider-neutral
// conversation, preserving role, content and tool linkage.
func BuildConversation(msgs []RequestMessage) (*model.Conversation, error) {
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}
	conv := model.NewConversation()
	for idx, msg := range msgs {
		converted := model.Message{
			Role:    model.NormalizeRole(msg.Role),
			Content: msg.Content.Text(),
		}
		switch converted.Role {
		case model.RoleTool:
			if msg.ToolCallID == "" {
				return nil, fmt.Errorf("%w: messages[%d]: tool message missing tool_call_id", ErrInvalidMessage, idx)
			}
			converted.ToolCallID = msg.ToolCallID
			converted.Name = msg.Name
		case model.RoleAssistant:
			for _, call := range msg.ToolCalls {
				converted.ToolCalls = append(converted.ToolCalls, model.ToolCall{
					ID:        call.ID,
					Name:      call.Function.Name,
					Arguments: call.Function.Arguments,
				})
			}
		}
		conv.Append(converted)
	}
	return conv, nil
}

// NewRequestID returns a chatcmpl- prefixed id with a fixed-length random
// alphanumeric suffix.
func NewRequestID() string {
	buf := make([]byte, requestIDLength)
	limit := big.NewInt(int64(len(requestIDChars)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(fmt.Sprintf("completion: read random: %v", err))
		}
		buf[i] = requestIDChars[n.Int64()]
	}
	return requestIDPrefix + string(buf)
}
