package completion

import (
	"context"
	"errors"
	"sync"

	"github.com/cexll/grokrelay/pkg/model"
)

// scriptedRound is the upstream output of one provider call.
type scriptedRound struct {
	chunks  []model.Chunk
	err     error // returned by Err after the chunks
	openErr error // returned by OpenStream
}

// fakeProvider replays rounds in order and records every conversation it
// was opened with.
type fakeProvider struct {
	mu      sync.Mutex
	rounds  []scriptedRound
	seen    [][]model.Message
	configs []model.StreamConfig
	closed  int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) OpenStream(_ context.Context, conv *model.Conversation, cfg model.StreamConfig) (model.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, conv.Messages())
	p.configs = append(p.configs, cfg)
	if len(p.rounds) == 0 {
		return nil, errors.New("fake: no more rounds")
	}
	round := p.rounds[0]
	p.rounds = p.rounds[1:]
	if round.openErr != nil {
		return nil, round.openErr
	}
	return &fakeStream{chunks: round.chunks, err: round.err, onClose: p.markClosed}, nil
}

func (p *fakeProvider) markClosed() {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
}

type fakeStream struct {
	chunks  []model.Chunk
	err     error
	cur     model.Chunk
	onClose func()
}

func (s *fakeStream) Next() bool {
	if len(s.chunks) == 0 {
		return false
	}
	s.cur = s.chunks[0]
	s.chunks = s.chunks[1:]
	return true
}

func (s *fakeStream) Current() model.Chunk { return s.cur }
func (s *fakeStream) Err() error           { return s.err }

func (s *fakeStream) Close() error {
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// recorder is an in-memory Emitter.
type recorder struct {
	chunks  []Chunk
	done    int
	failAt  int
	emitErr error
}

func (r *recorder) Emit(c Chunk) error {
	if r.emitErr != nil && len(r.chunks) == r.failAt {
		return r.emitErr
	}
	r.chunks = append(r.chunks, c)
	return nil
}

func (r *recorder) Done() error {
	r.done++
	return nil
}

// fakeTools answers every call with a canned result keyed by name.
type fakeTools struct {
	results map[string]string
	calls   []model.ToolCall
}

func (f *fakeTools) Specs() []model.ToolSpec {
	return []model.ToolSpec{{Name: "web_search", Parameters: map[string]any{"type": "object"}}}
}

func (f *fakeTools) Execute(_ context.Context, name, args string) string {
	f.calls = append(f.calls, model.ToolCall{Name: name, Arguments: args})
	if res, ok := f.results[name]; ok {
		return res
	}
	return "Unknown tool."
}

func userRequest(text string) Request {
	return Request{Messages: []RequestMessage{{Role: "user", Content: TextContent(text)}}}
}

func contentChunk(s string) model.Chunk {
	return model.Chunk{Content: s}
}

func toolChunk(id, name, args string) model.Chunk {
	return model.Chunk{ToolCalls: []model.ToolCallDelta{{ID: id, Name: name, Arguments: args}}}
}
