package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/cexll/grokrelay/pkg/completion"
	"github.com/cexll/grokrelay/pkg/logging"
)

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())
	var req completion.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	if !req.Streaming() {
		var collector completion.Collector
		if err := s.completer.Run(r.Context(), req, &collector); err != nil {
			s.failCompletion(w, r, err)
			return
		}
		out, err := collector.Completion()
		if err != nil {
			s.failCompletion(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	sse, err := completion.NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	err = s.completer.Run(r.Context(), req, sse)
	if err == nil {
		return
	}
	if !sse.Started() {
		s.failCompletion(w, r, err)
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("client disconnected mid-stream")
		return
	}
	logger.Error("completion aborted mid-stream", "error", err)
}

// failCompletion reports a run that failed before any byte reached the
// caller.
func (s *Server) failCompletion(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("client disconnected", "error", err)
	case errors.Is(err, completion.ErrNoMessages), errors.Is(err, completion.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, completion.ErrTooManyRounds):
		logger.Warn("completion round limit reached", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error("completion failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream provider error: "+err.Error())
	}
}
