package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cexll/grokrelay/pkg/model"
)

// Validator checks params against a tool schema before execution.
type Validator interface {
	Validate(params map[string]interface{}, schema *JSONSchema) error
}

// Registry keeps tools by name. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	validator Validator
}

// NewRegistry returns an empty registry using DefaultValidator.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}, validator: DefaultValidator{}}
}

// Register adds tool. Names must be unique.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return errors.New("tool name is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	return tool, nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// SetValidator replaces the validator; nil disables validation.
func (r *Registry) SetValidator(v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validator = v
}

// Specs describes every registered tool for a provider request.
func (r *Registry) Specs() []model.ToolSpec {
	tools := r.List()
	specs := make([]model.ToolSpec, 0, len(tools))
	for _, tool := range tools {
		specs = append(specs, model.ToolSpec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema().Map(),
		})
	}
	return specs
}

// Execute validates params and runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) (*ToolResult, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	validator := r.validator
	r.mu.RUnlock()
	if schema := tool.Schema(); schema != nil && validator != nil {
		if err := validator.Validate(params, schema); err != nil {
			return nil, fmt.Errorf("tool %s validation failed: %w", name, err)
		}
	}
	return tool.Execute(ctx, params)
}
