package completion

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const doneFrame = "data: [DONE]\n\n"

// Emitter receives the wire chunks of one request in order. Done is called
// once after the final round ended with stop.
type Emitter interface {
	Emit(Chunk) error
	Done() error
}

// SSEWriter frames chunks as server-sent events on an HTTP response. Headers
// are written lazily so a failure before the first chunk can still be
// reported with a regular status code.
type SSEWriter struct {
	w       io.Writer
	header  http.Header
	status  func(int)
	flusher http.Flusher
	started bool
}

// NewSSEWriter wraps w. It fails when w cannot flush incrementally.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("completion: response does not support streaming")
	}
	return &SSEWriter{w: w, header: w.Header(), status: w.WriteHeader, flusher: flusher}, nil
}

// Started reports whether any bytes reached the caller.
func (s *SSEWriter) Started() bool {
	return s.started
}

// Emit writes one `data:` frame and flushes it.
func (s *SSEWriter) Emit(chunk Chunk) error {
	body, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("completion: marshal chunk: %w", err)
	}
	return s.write("data: " + string(body) + "\n\n")
}

// Done writes the [DONE] sentinel.
func (s *SSEWriter) Done() error {
	return s.write(doneFrame)
}

func (s *SSEWriter) write(frame string) error {
	if !s.started {
		s.header.Set("Content-Type", "text/event-stream")
		s.header.Set("Cache-Control", "no-cache")
		s.header.Set("Connection", "keep-alive")
		s.status(http.StatusOK)
		s.started = true
	}
	if _, err := io.WriteString(s.w, frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Collector folds a chunk sequence into a single chat.completion response
// for callers that set stream=false.
type Collector struct {
	id      string
	created int64
	model   string
	content strings.Builder
	reason  string
	done    bool
}

// Emit records chunk.
func (c *Collector) Emit(chunk Chunk) error {
	c.id, c.created, c.model = chunk.ID, chunk.Created, chunk.Model
	for _, choice := range chunk.Choices {
		c.content.WriteString(choice.Delta.Content)
		if choice.FinishReason != nil {
			c.reason = *choice.FinishReason
		}
	}
	return nil
}

// Done marks the sequence complete.
func (c *Collector) Done() error {
	c.done = true
	return nil
}

// Completion returns the folded response. It fails if the run never
// reached the sentinel.
func (c *Collector) Completion() (Completion, error) {
	if !c.done {
		return Completion{}, errors.New("completion: stream did not finish")
	}
	return Completion{
		ID:      c.id,
		Object:  completionObject,
		Created: c.created,
		Model:   c.model,
		Choices: []CompletionChoice{{
			Index:        0,
			Message:      CompletionMessage{Role: "assistant", Content: c.content.String()},
			FinishReason: c.reason,
		}},
	}, nil
}
