package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/grokrelay/pkg/model"
	"github.com/cexll/grokrelay/pkg/telemetry"
)

// ErrTooManyRounds stops a request whose tool loop exceeded the configured
// round limit.
var ErrTooManyRounds = errors.New("completion: round limit exceeded")

// ToolExecutor runs a completed tool call and always returns text for the
// tool message; failures are encoded in the text.
type ToolExecutor interface {
	Specs() []model.ToolSpec
	Execute(ctx context.Context, name, rawArguments string) string
}

// Defaults fill request fields the caller omitted.
type Defaults struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	UseTools    bool
}

// Orchestrator drives the multi-round streaming protocol for a request.
// A single Orchestrator serves concurrent requests; all per-request state
// lives in Run.
type Orchestrator struct {
	provider  model.Provider
	tools     ToolExecutor
	defaults  func() Defaults
	maxRounds int
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDefaults sets the source of request defaults. It is consulted once
// per request so defaults can change at runtime.
func WithDefaults(fn func() Defaults) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.defaults = fn
		}
	}
}

// WithMaxRounds bounds the number of provider rounds per request. Zero
// means unbounded.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRounds = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator wires a provider and tool executor.
func NewOrchestrator(provider model.Provider, tools ToolExecutor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider: provider,
		tools:    tools,
		defaults: func() Defaults { return Defaults{UseTools: true} },
		logger:   slog.Default(),
		now:      time.Now,
		newID:    NewRequestID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

type state int

const (
	stateBuildingConversation state = iota
	stateStreamingRound
	stateDispatchingTools
	stateDone
)

func (s state) String() string {
	switch s {
	case stateBuildingConversation:
		return "building_conversation"
	case stateStreamingRound:
		return "streaming_round"
	case stateDispatchingTools:
		return "dispatching_tools"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// run is the state owned by a single request.
type run struct {
	id      string
	created int64
	model   string
	cfg     model.StreamConfig
	conv    *model.Conversation
	rounds  int
	pending []model.ToolCall
}

// Run executes req, writing chunks to out. Tool and argument failures are
// folded into the conversation; provider failures end the run with an
// error and without the sentinel.
func (o *Orchestrator) Run(ctx context.Context, req Request, out Emitter) error {
	if o.provider == nil {
		return errors.New("completion: provider is nil")
	}
	if out == nil {
		return errors.New("completion: emitter is nil")
	}
	r := &run{}
	st := stateBuildingConversation
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch st {
		case stateBuildingConversation:
			conv, err := BuildConversation(req.Messages)
			if err != nil {
				return err
			}
			r.conv = conv
			r.id = o.newID()
			r.created = o.now().Unix()
			r.model, r.cfg = o.streamConfig(req)
			st = stateStreamingRound

		case stateStreamingRound:
			if o.maxRounds > 0 && r.rounds >= o.maxRounds {
				return fmt.Errorf("%w (%d)", ErrTooManyRounds, o.maxRounds)
			}
			r.rounds++
			acc, err := o.streamRound(ctx, r, out)
			if err != nil {
				return err
			}
			if acc.FinishReason() == FinishStop {
				st = stateDone
				continue
			}
			if content := acc.Content(); content != "" {
				r.conv.Append(model.Message{Role: model.RoleAssistant, Content: content})
			}
			r.pending = acc.ToolCalls()
			r.conv.Append(model.Message{Role: model.RoleAssistant, ToolCalls: r.pending})
			st = stateDispatchingTools

		case stateDispatchingTools:
			for _, call := range r.pending {
				if err := ctx.Err(); err != nil {
					return err
				}
				result := o.dispatch(ctx, r, call)
				r.conv.Append(model.Message{
					Role:       model.RoleTool,
					Content:    result,
					ToolCallID: call.ID,
					Name:       call.Name,
				})
			}
			r.pending = nil
			st = stateStreamingRound

		case stateDone:
			o.logger.Debug("completion finished", "request_id", r.id, "rounds", r.rounds)
			return out.Done()

		default:
			return fmt.Errorf("completion: invalid state %s", st)
		}
	}
}

func (o *Orchestrator) streamConfig(req Request) (string, model.StreamConfig) {
	def := o.defaults()
	cfg := model.StreamConfig{
		Model:       strings.TrimSpace(req.Model),
		Temperature: def.Temperature,
		MaxTokens:   def.MaxTokens,
		Verbose:     true,
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if req.Temperature != nil {
		t := *req.Temperature
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = req.MaxTokens
	}
	useTools := def.UseTools
	if req.UseTools != nil {
		useTools = *req.UseTools
	}
	if useTools && o.tools != nil {
		cfg.Tools = o.tools.Specs()
	}
	return cfg.Model, cfg
}

// streamRound opens one provider stream and forwards every chunk until the
// provider is exhausted, then emits the round's terminal chunk.
func (o *Orchestrator) streamRound(ctx context.Context, r *run, out Emitter) (_ *Accumulator, err error) {
	ctx, span := telemetry.StartSpan(ctx, "completion.round",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", o.provider.Name()),
			attribute.String("llm.model", r.model),
			attribute.Int("completion.round", r.rounds),
			attribute.Int("completion.messages", r.conv.Len()),
		),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	stream, err := o.provider.OpenStream(ctx, r.conv, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("completion: open provider stream: %w", err)
	}
	defer stream.Close()

	acc := NewAccumulator()
	for stream.Next() {
		delta := acc.Observe(stream.Current())
		if delta.Empty() {
			continue
		}
		if err := out.Emit(ToWireChunk(r.id, r.created, r.model, delta, "")); err != nil {
			return nil, fmt.Errorf("completion: emit chunk: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("completion: read provider stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reason := acc.FinishReason()
	if err := out.Emit(ToWireChunk(r.id, r.created, r.model, Delta{}, reason)); err != nil {
		return nil, fmt.Errorf("completion: emit terminal chunk: %w", err)
	}
	span.SetAttributes(attribute.String("completion.finish_reason", reason))
	if usage := acc.Usage(); usage != (model.TokenUsage{}) {
		span.SetAttributes(
			attribute.Int("llm.usage.input_tokens", usage.InputTokens),
			attribute.Int("llm.usage.output_tokens", usage.OutputTokens),
			attribute.Int("llm.usage.total_tokens", usage.TotalTokens),
		)
		o.logger.Debug("round usage",
			"request_id", r.id,
			"round", r.rounds,
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"total_tokens", usage.TotalTokens,
		)
	}
	if citations := acc.Citations(); len(citations) > 0 {
		o.logger.Debug("round citations", "request_id", r.id, "round", r.rounds, "citations", citations)
	}
	return acc, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, r *run, call model.ToolCall) string {
	ctx, span := telemetry.StartSpan(ctx, "completion.tool",
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		),
	)
	defer span.End()

	if o.tools == nil {
		return "Unknown tool."
	}
	started := time.Now()
	result := o.tools.Execute(ctx, call.Name, call.Arguments)
	o.logger.Info("tool dispatched",
		"request_id", r.id,
		"tool", call.Name,
		"call_id", call.ID,
		"duration", time.Since(started),
	)
	return result
}
