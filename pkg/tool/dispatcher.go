package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cexll/grokrelay/pkg/model"
)

// Result texts handed back to the model when a call cannot produce output.
const (
	InvalidArgumentsResult = "Invalid arguments provided."
	UnknownToolResult      = "Unknown tool."
	executionErrorPrefix   = "Tool execution error: "
)

// Dispatcher executes completed tool calls against a registry and always
// yields text suitable for a tool message.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher wraps registry. A nil logger falls back to slog.Default.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Specs advertises the registered capabilities of known kinds.
func (d *Dispatcher) Specs() []model.ToolSpec {
	all := d.registry.Specs()
	out := all[:0]
	for _, spec := range all {
		if KindOf(spec.Name) != KindUnknown {
			out = append(out, spec)
		}
	}
	return out
}

// Execute parses rawArguments and runs the named capability. Failures are
// encoded in the returned text and never surface as errors.
func (d *Dispatcher) Execute(ctx context.Context, name, rawArguments string) string {
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(rawArguments), &params); err != nil || params == nil {
		d.logger.Warn("tool arguments rejected", "tool", name, "error", err)
		return InvalidArgumentsResult
	}
	if KindOf(name) == KindUnknown {
		d.logger.Warn("unknown tool requested", "tool", name)
		return UnknownToolResult
	}
	if _, err := d.registry.Get(name); err != nil {
		d.logger.Warn("tool not registered", "tool", name)
		return UnknownToolResult
	}

	started := time.Now()
	res, err := d.registry.Execute(ctx, name, params)
	if err != nil {
		d.logger.Warn("tool failed", "tool", name, "duration", time.Since(started), "error", err)
		return executionErrorPrefix + err.Error()
	}
	d.logger.Debug("tool completed", "tool", name, "duration", time.Since(started))
	return renderResult(res)
}

// renderResult prefers the textual output; structured data without text is
// marshalled to JSON.
func renderResult(res *ToolResult) string {
	if res == nil {
		return ""
	}
	if res.Output != "" || res.Data == nil {
		return res.Output
	}
	if text, ok := res.Data.(string); ok {
		return text
	}
	raw, err := json.Marshal(res.Data)
	if err != nil {
		return fmt.Sprintf("%v", res.Data)
	}
	return string(raw)
}
