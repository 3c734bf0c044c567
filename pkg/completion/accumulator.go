package completion

import (
	"strings"

	"github.com/cexll/grokrelay/pkg/model"
)

// fragment is a tool call being assembled within one round.
type fragment struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// Accumulator tracks content and tool-call fragments for a single streaming
// round. It is not safe for concurrent use; every round gets a fresh one.
type Accumulator struct {
	content   strings.Builder
	fragments []*fragment
	citations []string
	usage     model.TokenUsage
	newID     func() string
}

// NewAccumulator returns an empty round accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{newID: model.NewToolCallID}
}

// Observe folds chunk into the round state and returns the delta to forward.
// When chunk carries tool-call fragments the delta holds the cumulative
// snapshot of every fragment seen so far, in first-seen order.
func (a *Accumulator) Observe(chunk model.Chunk) Delta {
	var delta Delta
	if chunk.Content != "" {
		a.content.WriteString(chunk.Content)
		delta.Content = chunk.Content
	}
	if len(chunk.Citations) > 0 {
		a.citations = append(a.citations, chunk.Citations...)
	}
	a.usage.Add(chunk.Usage)
	if len(chunk.ToolCalls) == 0 {
		return delta
	}
	for _, part := range chunk.ToolCalls {
		frag := a.lookup(part.ID)
		frag.name.WriteString(part.Name)
		frag.args.WriteString(part.Arguments)
	}
	delta.ToolCalls = a.snapshot()
	return delta
}

// lookup finds the fragment for id by value equality. An empty id is never
// looked up: it always opens a new fragment under a synthesized id.
func (a *Accumulator) lookup(id string) *fragment {
	if id != "" {
		for _, frag := range a.fragments {
			if frag.id == id {
				return frag
			}
		}
	} else {
		id = a.newID()
	}
	frag := &fragment{id: id}
	a.fragments = append(a.fragments, frag)
	return frag
}

func (a *Accumulator) snapshot() []ToolCallPayload {
	out := make([]ToolCallPayload, len(a.fragments))
	for i, frag := range a.fragments {
		out[i] = ToolCallPayload{
			Index: i,
			ID:    frag.id,
			Type:  toolCallType,
			Function: FunctionPayload{
				Name:      frag.name.String(),
				Arguments: frag.args.String(),
			},
		}
	}
	return out
}

// Content returns the text streamed so far this round.
func (a *Accumulator) Content() string {
	return a.content.String()
}

// ToolCalls returns the completed records in first-seen order.
func (a *Accumulator) ToolCalls() []model.ToolCall {
	if len(a.fragments) == 0 {
		return nil
	}
	out := make([]model.ToolCall, len(a.fragments))
	for i, frag := range a.fragments {
		out[i] = model.ToolCall{
			ID:        frag.id,
			Name:      frag.name.String(),
			Arguments: frag.args.String(),
		}
	}
	return out
}

// FinishReason is tool_calls when at least one fragment was seen, else stop.
func (a *Accumulator) FinishReason() string {
	if len(a.fragments) > 0 {
		return FinishToolCalls
	}
	return FinishStop
}

// Citations returns source references reported alongside the round. They
// are kept for logging only and never reach the wire format.
func (a *Accumulator) Citations() []string {
	return append([]string(nil), a.citations...)
}

// Usage returns token accounting reported during the round.
func (a *Accumulator) Usage() model.TokenUsage {
	return a.usage
}
