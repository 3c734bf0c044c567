// Package store persists chat documents as JSON blobs keyed by chat id.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	chatSuffix   = ".json"
	defaultTitle = "Untitled"
)

var (
	// ErrInvalidID rejects chat ids outside [A-Za-z0-9_-]{1,128}.
	ErrInvalidID = errors.New("store: invalid chat id")
	// ErrInvalidDocument rejects documents that are not JSON objects.
	ErrInvalidDocument = errors.New("store: document must be a JSON object")

	chatIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// Summary is the listing entry of one chat.
type Summary struct {
	ID           string    `json:"-"`
	Title        string    `json:"title"`
	LastModified time.Time `json:"last_modified"`
}

// ChatStore reads and writes opaque chat documents. Only the top-level
// "title" field is interpreted, for listings.
type ChatStore struct {
	backend Backend
	logger  *slog.Logger
}

// New wraps backend. A nil logger falls back to slog.Default.
func New(backend Backend, logger *slog.Logger) *ChatStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatStore{backend: backend, logger: logger}
}

// ValidID reports whether id can name a chat.
func ValidID(id string) bool {
	return chatIDPattern.MatchString(id)
}

// Get returns the stored document for id, or ErrNotFound.
func (s *ChatStore) Get(ctx context.Context, id string) (json.RawMessage, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	data, err := s.backend.Read(ctx, id+chatSuffix)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// Put stores doc under id, replacing any previous version.
func (s *ChatStore) Put(ctx context.Context, id string, doc json.RawMessage) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(doc, &probe); err != nil || probe == nil {
		return ErrInvalidDocument
	}
	return s.backend.Write(ctx, id+chatSuffix, doc)
}

// Delete removes the chat. Deleting a missing chat succeeds.
func (s *ChatStore) Delete(ctx context.Context, id string) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	return s.backend.Delete(ctx, id+chatSuffix)
}

// List summarises every stored chat, newest first. Documents that cannot
// be read or decoded are listed as untitled.
func (s *ChatStore) List(ctx context.Context) ([]Summary, error) {
	objects, err := s.backend.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("store: list chats: %w", err)
	}
	var out []Summary
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, chatSuffix) {
			continue
		}
		id := strings.TrimSuffix(obj.Key, chatSuffix)
		if !ValidID(id) {
			continue
		}
		out = append(out, Summary{
			ID:           id,
			Title:        s.title(ctx, obj.Key),
			LastModified: obj.LastModified.UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *ChatStore) title(ctx context.Context, key string) string {
	data, err := s.backend.Read(ctx, key)
	if err != nil {
		s.logger.Warn("chat unreadable", "key", key, "error", err)
		return defaultTitle
	}
	var doc struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("chat undecodable", "key", key, "error", err)
		return defaultTitle
	}
	if strings.TrimSpace(doc.Title) == "" {
		return defaultTitle
	}
	return doc.Title
}
