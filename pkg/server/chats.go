package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cexll/grokrelay/pkg/logging"
	"github.com/cexll/grokrelay/pkg/store"
)

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.chats.List(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Error("list chats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	out := make(map[string]store.Summary, len(summaries))
	for _, sum := range summaries {
		out[sum.ID] = sum
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	doc, err := s.chats.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusOK, map[string]any{"messages": []any{}})
	case err != nil:
		logging.FromContext(r.Context()).Error("load chat failed", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chat")
	default:
		writeJSON(w, http.StatusOK, doc)
	}
}

func (s *Server) handlePutChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "chat too large")
		return
	}
	err = s.chats.Put(r.Context(), id, json.RawMessage(body))
	switch {
	case errors.Is(err, store.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, "chat must be a JSON object")
	case err != nil:
		logging.FromContext(r.Context()).Error("save chat failed", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save chat")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	if err := s.chats.Delete(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Error("delete chat failed", "chat_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func chatID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		writeError(w, http.StatusBadRequest, "invalid chat id")
		return "", false
	}
	return id, true
}
