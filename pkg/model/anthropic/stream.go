package anthropic

import (
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	modelpkg "github.com/cexll/grokrelay/pkg/model"
)

// toolBlock tracks a tool_use content block by its index in the message.
type toolBlock struct {
	id      string
	hasArgs bool
}

// stream adapts Messages API events to model chunks. Events that carry
// nothing for the caller are skipped.
type stream struct {
	sdk     *ssestream.Stream[anthropicsdk.MessageStreamEventUnion]
	current modelpkg.Chunk
	blocks  map[int64]*toolBlock
}

func newStream(sdk *ssestream.Stream[anthropicsdk.MessageStreamEventUnion]) *stream {
	return &stream{sdk: sdk, blocks: map[int64]*toolBlock{}}
}

func (s *stream) Next() bool {
	for s.sdk.Next() {
		chunk, ok := s.convert(s.sdk.Current())
		if ok {
			s.current = chunk
			return true
		}
	}
	return false
}

func (s *stream) Current() modelpkg.Chunk { return s.current }

func (s *stream) Err() error { return s.sdk.Err() }

func (s *stream) Close() error { return s.sdk.Close() }

func (s *stream) convert(event anthropicsdk.MessageStreamEventUnion) (modelpkg.Chunk, bool) {
	switch ev := event.AsAny().(type) {
	case anthropicsdk.MessageStartEvent:
		usage := ev.Message.Usage
		if usage.InputTokens == 0 && usage.CacheReadInputTokens == 0 {
			return modelpkg.Chunk{}, false
		}
		return modelpkg.Chunk{Usage: &modelpkg.TokenUsage{
			InputTokens: int(usage.InputTokens),
			TotalTokens: int(usage.InputTokens),
			CacheTokens: int(usage.CacheReadInputTokens),
		}}, true
	case anthropicsdk.ContentBlockStartEvent:
		if ev.ContentBlock.Type != "tool_use" {
			return modelpkg.Chunk{}, false
		}
		id := ev.ContentBlock.ID
		if id == "" {
			id = modelpkg.NewToolCallID()
		}
		s.blocks[ev.Index] = &toolBlock{id: id}
		return modelpkg.Chunk{ToolCalls: []modelpkg.ToolCallDelta{{ID: id, Name: ev.ContentBlock.Name}}}, true
	case anthropicsdk.ContentBlockDeltaEvent:
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text == "" {
				return modelpkg.Chunk{}, false
			}
			return modelpkg.Chunk{Content: ev.Delta.Text}, true
		case "input_json_delta":
			block, ok := s.blocks[ev.Index]
			if !ok || ev.Delta.PartialJSON == "" {
				return modelpkg.Chunk{}, false
			}
			block.hasArgs = true
			return modelpkg.Chunk{ToolCalls: []modelpkg.ToolCallDelta{{ID: block.id, Arguments: ev.Delta.PartialJSON}}}, true
		}
	case anthropicsdk.ContentBlockStopEvent:
		// A tool_use block without input deltas still needs a JSON object.
		if block, ok := s.blocks[ev.Index]; ok && !block.hasArgs {
			block.hasArgs = true
			return modelpkg.Chunk{ToolCalls: []modelpkg.ToolCallDelta{{ID: block.id, Arguments: "{}"}}}, true
		}
	case anthropicsdk.MessageDeltaEvent:
		if ev.Usage.OutputTokens == 0 {
			return modelpkg.Chunk{}, false
		}
		return modelpkg.Chunk{Usage: &modelpkg.TokenUsage{
			OutputTokens: int(ev.Usage.OutputTokens),
			TotalTokens:  int(ev.Usage.OutputTokens),
		}}, true
	}
	return modelpkg.Chunk{}, false
}
