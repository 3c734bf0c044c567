package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	modelpkg "github.com/cexll/grokrelay/pkg/model"
)

func buildParams(conv *modelpkg.Conversation, cfg modelpkg.StreamConfig) (anthropicsdk.MessageNewParams, error) {
	system, messages := convertMessages(conv.Messages())
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*cfg.Temperature)
	}
	tools, err := convertTools(cfg.Tools)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

// convertMessages splits system text out and folds consecutive messages of
// the same API role into one, since the Messages API requires alternation.
// Tool results travel as user tool_result blocks.
func convertMessages(messages []modelpkg.Message) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam) {
	var system []anthropicsdk.TextBlockParam
	out := make([]anthropicsdk.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == modelpkg.RoleSystem {
			if strings.TrimSpace(msg.Content) != "" {
				system = append(system, anthropicsdk.TextBlockParam{Text: msg.Content})
			}
			continue
		}
		role := anthropicsdk.MessageParamRoleUser
		if msg.Role == modelpkg.RoleAssistant {
			role = anthropicsdk.MessageParamRoleAssistant
		}
		blocks := buildContentBlocks(msg)
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = append(out[n-1].Content, blocks...)
			continue
		}
		out = append(out, anthropicsdk.MessageParam{Role: role, Content: blocks})
	}
	if len(out) == 0 {
		out = append(out, anthropicsdk.MessageParam{
			Role:    anthropicsdk.MessageParamRoleUser,
			Content: []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(".")},
		})
	}
	return system, out
}

func buildContentBlocks(msg modelpkg.Message) []anthropicsdk.ContentBlockParamUnion {
	switch msg.Role {
	case modelpkg.RoleTool:
		result := anthropicsdk.ToolResultBlockParam{
			ToolUseID: msg.ToolCallID,
			Content: []anthropicsdk.ToolResultBlockParamContentUnion{
				{OfText: &anthropicsdk.TextBlockParam{Text: nonEmpty(msg.Content)}},
			},
		}
		if strings.HasPrefix(msg.Content, "Tool execution error: ") {
			result.IsError = anthropicsdk.Bool(true)
		}
		return []anthropicsdk.ContentBlockParamUnion{{OfToolResult: &result}}
	case modelpkg.RoleAssistant:
		var blocks []anthropicsdk.ContentBlockParamUnion
		if msg.Content != "" {
			blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
		}
		for _, call := range msg.ToolCalls {
			if strings.TrimSpace(call.ID) == "" || strings.TrimSpace(call.Name) == "" {
				continue
			}
			blocks = append(blocks, anthropicsdk.NewToolUseBlock(call.ID, decodeInput(call.Arguments), call.Name))
		}
		if len(blocks) == 0 {
			blocks = append(blocks, anthropicsdk.NewTextBlock("."))
		}
		return blocks
	default:
		return []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(nonEmpty(msg.Content))}
	}
}

// decodeInput turns raw argument text into a tool_use input object. Text
// that is not a JSON object becomes an empty object.
func decodeInput(raw string) map[string]any {
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil || input == nil {
		return map[string]any{}
	}
	return input
}

func convertTools(specs []modelpkg.ToolSpec) ([]anthropicsdk.ToolUnionParam, error) {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		schema, err := convertSchema(spec.Parameters)
		if err != nil {
			return nil, fmt.Errorf("convert parameters for %s: %w", spec.Name, err)
		}
		tool := anthropicsdk.ToolParam{Name: spec.Name, InputSchema: schema}
		if desc := strings.TrimSpace(spec.Description); desc != "" {
			tool.Description = anthropicsdk.String(desc)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}

func convertSchema(params map[string]any) (anthropicsdk.ToolInputSchemaParam, error) {
	if len(params) == 0 {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, fmt.Errorf("marshal schema: %w", err)
	}
	var schema anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, fmt.Errorf("unmarshal schema: %w", err)
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema, nil
}

// The Messages API rejects empty text blocks.
func nonEmpty(s string) string {
	if s == "" {
		return "."
	}
	return s
}
