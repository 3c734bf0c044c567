package openai

import (
	"encoding/json"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"

	modelpkg "github.com/cexll/grokrelay/pkg/model"
)

// stream adapts the SDK chunk stream to model.Stream. The upstream keys tool
// call fragments by index and names the id only on the first fragment, so
// ids are carried forward per index.
type stream struct {
	sdk     *ssestream.Stream[openaisdk.ChatCompletionChunk]
	current modelpkg.Chunk
	ids     map[int64]string
}

func newStream(sdk *ssestream.Stream[openaisdk.ChatCompletionChunk]) *stream {
	return &stream{sdk: sdk, ids: map[int64]string{}}
}

func (s *stream) Next() bool {
	if !s.sdk.Next() {
		return false
	}
	s.current = s.convert(s.sdk.Current())
	return true
}

func (s *stream) Current() modelpkg.Chunk { return s.current }

func (s *stream) Err() error { return s.sdk.Err() }

func (s *stream) Close() error { return s.sdk.Close() }

func (s *stream) convert(chunk openaisdk.ChatCompletionChunk) modelpkg.Chunk {
	var out modelpkg.Chunk
	if len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		out.Content = delta.Content
		for _, tc := range delta.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, modelpkg.ToolCallDelta{
				ID:        s.resolveID(tc.Index, tc.ID),
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 {
		out.Usage = &modelpkg.TokenUsage{
			InputTokens:  int(chunk.Usage.PromptTokens),
			OutputTokens: int(chunk.Usage.CompletionTokens),
			TotalTokens:  int(chunk.Usage.TotalTokens),
			CacheTokens:  int(chunk.Usage.PromptTokensDetails.CachedTokens),
		}
	}
	if field, ok := chunk.JSON.ExtraFields["citations"]; ok {
		out.Citations = decodeCitations(field.Raw())
	}
	return out
}

func (s *stream) resolveID(index int64, id string) string {
	if id = strings.TrimSpace(id); id != "" {
		s.ids[index] = id
		return id
	}
	if known, ok := s.ids[index]; ok {
		return known
	}
	id = modelpkg.NewToolCallID()
	s.ids[index] = id
	return id
}

func decodeCitations(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}
	var plain []string
	if err := json.Unmarshal([]byte(raw), &plain); err == nil {
		return plain
	}
	var objects []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(raw), &objects); err != nil {
		return nil
	}
	var urls []string
	for _, obj := range objects {
		if obj.URL != "" {
			urls = append(urls, obj.URL)
		}
	}
	return urls
}
