package store

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) (*ChatStore, *FileBackend) {
	t.Helper()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return New(backend, slog.New(slog.NewTextHandler(io.Discard, nil))), backend
}

func TestChatStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	_, err := s.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)

	doc := json.RawMessage(`{"title":"Go chat","messages":[{"role":"user","content":"hi"}]}`)
	require.NoError(t, s.Put(ctx, "abc", doc))
	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	require.JSONEq(t, string(doc), string(got))

	require.NoError(t, s.Delete(ctx, "abc"))
	require.NoError(t, s.Delete(ctx, "abc"))
	_, err = s.Get(ctx, "abc")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChatStoreValidation(t *testing.T) {
	ctx := context.Background()
	s, _ := newFileStore(t)

	for _, id := range []string{"", "../etc", "a/b", "has space", string(make([]byte, 129))} {
		require.ErrorIs(t, s.Put(ctx, id, json.RawMessage(`{}`)), ErrInvalidID, id)
		_, err := s.Get(ctx, id)
		require.ErrorIs(t, err, ErrInvalidID)
	}
	require.ErrorIs(t, s.Put(ctx, "ok", json.RawMessage(`[1,2]`)), ErrInvalidDocument)
	require.ErrorIs(t, s.Put(ctx, "ok", json.RawMessage(`null`)), ErrInvalidDocument)
	require.ErrorIs(t, s.Put(ctx, "ok", json.RawMessage(`{`)), ErrInvalidDocument)
	require.True(t, ValidID("chat_1-A"))
}

func TestChatStoreList(t *testing.T) {
	ctx := context.Background()
	s, backend := newFileStore(t)

	require.NoError(t, s.Put(ctx, "old", json.RawMessage(`{"title":"First"}`)))
	require.NoError(t, s.Put(ctx, "new", json.RawMessage(`{"messages":[]}`)))
	require.NoError(t, backend.Write(ctx, "notes.txt", []byte("ignored")))
	require.NoError(t, backend.Write(ctx, "broken.json", []byte("{")))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(backend.root, "old.json"), past, past))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	byID := map[string]Summary{}
	for _, sum := range list {
		byID[sum.ID] = sum
	}
	require.Equal(t, "First", byID["old"].Title)
	require.Equal(t, "Untitled", byID["new"].Title)
	require.Equal(t, "Untitled", byID["broken"].Title)
	require.Equal(t, "old", list[len(list)-1].ID)
}

func TestFileBackendRejectsEscape(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	require.Error(t, backend.Write(ctx, "", []byte("x")))
	require.NoError(t, backend.Write(ctx, "../inside.json", []byte("{}")))
	objects, err := backend.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Equal(t, "inside.json", objects[0].Key)

	_, err = NewFileBackend("  ")
	require.Error(t, err)
}

func TestFileBackendHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	backend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	_, err = backend.Read(ctx, "x.json")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, backend.Write(ctx, "x.json", nil), context.Canceled)
}
