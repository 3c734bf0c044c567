package tool

import "context"

// Tool is a capability the model can invoke by name.
type Tool interface {
	Name() string
	Description() string
	Schema() *JSONSchema
	Execute(ctx context.Context, params map[string]interface{}) (*ToolResult, error)
}

// ToolResult is the outcome of a tool execution. Output is the text handed
// back to the model; Data keeps the structured form for callers that want it.
type ToolResult struct {
	Success bool        `json:"success"`
	Output  string      `json:"output"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONSchema describes tool parameters in the subset of JSON Schema that the
// upstream function-calling APIs accept.
type JSONSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

// Map renders the schema as the generic object providers embed in requests.
func (s *JSONSchema) Map() map[string]interface{} {
	if s == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	out := map[string]interface{}{"type": s.Type}
	if out["type"] == "" {
		out["type"] = "object"
	}
	props := map[string]interface{}{}
	for k, v := range s.Properties {
		props[k] = v
	}
	out["properties"] = props
	if len(s.Required) > 0 {
		out["required"] = append([]string(nil), s.Required...)
	}
	return out
}
