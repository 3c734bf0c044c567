package openai

import (
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"

	modelpkg "github.com/cexll/grokrelay/pkg/model"
)

func convertMessages(conv *modelpkg.Conversation) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	messages := conv.Messages()
	if len(messages) == 0 {
		return []openaisdk.ChatCompletionMessageParamUnion{buildUserMessage("")}, nil
	}
	params := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for idx, msg := range messages {
		switch msg.Role {
		case modelpkg.RoleSystem:
			params = append(params, buildSystemMessage(msg.Content))
		case modelpkg.RoleAssistant:
			union, err := buildAssistantMessage(msg)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", idx, err)
			}
			params = append(params, union)
		case modelpkg.RoleTool:
			if strings.TrimSpace(msg.ToolCallID) == "" {
				return nil, fmt.Errorf("messages[%d]: tool message missing tool_call_id", idx)
			}
			params = append(params, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			params = append(params, buildUserMessage(msg.Content))
		}
	}
	return params, nil
}

func buildSystemMessage(content string) openaisdk.ChatCompletionMessageParamUnion {
	msg := openaisdk.ChatCompletionSystemMessageParam{}
	msg.Content.OfString = openaisdk.String(content)
	return openaisdk.ChatCompletionMessageParamUnion{OfSystem: &msg}
}

func buildUserMessage(content string) openaisdk.ChatCompletionMessageParamUnion {
	msg := openaisdk.ChatCompletionUserMessageParam{}
	msg.Content.OfString = openaisdk.String(content)
	return openaisdk.ChatCompletionMessageParamUnion{OfUser: &msg}
}

func buildAssistantMessage(msg modelpkg.Message) (openaisdk.ChatCompletionMessageParamUnion, error) {
	asst := openaisdk.ChatCompletionAssistantMessageParam{}
	if msg.Content != "" || len(msg.ToolCalls) == 0 {
		asst.Content.OfString = openaisdk.String(msg.Content)
	}
	if len(msg.ToolCalls) > 0 {
		calls, err := convertToolCalls(msg.ToolCalls)
		if err != nil {
			return openaisdk.ChatCompletionMessageParamUnion{}, err
		}
		asst.ToolCalls = calls
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
}

func convertToolCalls(calls []modelpkg.ToolCall) ([]openaisdk.ChatCompletionMessageToolCallUnionParam, error) {
	out := make([]openaisdk.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for idx, call := range calls {
		name := strings.TrimSpace(call.Name)
		if name == "" {
			return nil, fmt.Errorf("tool_calls[%d]: missing name", idx)
		}
		args := call.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		out = append(out, openaisdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
				ID: call.ID,
				Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      name,
					Arguments: args,
				},
			},
		})
	}
	return out, nil
}

func convertTools(specs []modelpkg.ToolSpec) []openaisdk.ChatCompletionToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		def := openaisdk.FunctionDefinitionParam{Name: spec.Name}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			def.Description = openaisdk.String(desc)
		}
		if len(spec.Parameters) > 0 {
			def.Parameters = openaisdk.FunctionParameters(spec.Parameters)
		}
		out = append(out, openaisdk.ChatCompletionToolUnionParam{
			OfFunction: &openaisdk.ChatCompletionFunctionToolParam{Function: def},
		})
	}
	return out
}

func buildParams(conv *modelpkg.Conversation, cfg modelpkg.StreamConfig) (openaisdk.ChatCompletionNewParams, error) {
	messages, err := convertMessages(conv)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}
	params := openaisdk.ChatCompletionNewParams{
		Messages: messages,
		Model:    openaisdk.ChatModel(cfg.Model),
	}
	if cfg.MaxTokens > 0 {
		params.MaxTokens = openaisdk.Int(int64(cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		params.Temperature = openaisdk.Float(*cfg.Temperature)
	}
	if tools := convertTools(cfg.Tools); len(tools) > 0 {
		params.Tools = tools
	}
	if cfg.Verbose {
		params.StreamOptions = openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: openaisdk.Bool(true),
		}
	}
	return params, nil
}
