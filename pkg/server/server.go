// Package server exposes the relay over HTTP: login, chat storage and the
// OpenAI-compatible streaming completions endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cexll/grokrelay/pkg/completion"
	"github.com/cexll/grokrelay/pkg/store"
)

const maxBodyBytes = 10 << 20

// Authenticator issues and checks bearer tokens.
type Authenticator interface {
	Login(username, password string) (string, error)
	Verify(token string) (string, error)
}

// ChatStore persists chat documents.
type ChatStore interface {
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Put(ctx context.Context, id string, doc json.RawMessage) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]store.Summary, error)
}

// Completer runs one completion request against an emitter.
type Completer interface {
	Run(ctx context.Context, req completion.Request, out completion.Emitter) error
}

// Config holds the HTTP-facing settings.
type Config struct {
	StaticDir   string
	CORSOrigins []string
	// ExposeAPIKey returns APIKey in the login response.
	ExposeAPIKey bool
	APIKey       string
}

// Server routes relay requests.
type Server struct {
	cfg       Config
	auth      Authenticator
	chats     ChatStore
	completer Completer
	logger    *slog.Logger
	now       func() time.Time
	handler   http.Handler
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Server with pre-wired routes.
func New(cfg Config, auth Authenticator, chats ChatStore, completer Completer, opts ...Option) *Server {
	srv := &Server{
		cfg:       cfg,
		auth:      auth,
		chats:     chats,
		completer: completer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(srv)
		}
	}
	srv.handler = srv.accessLog(srv.cors(srv.routes()))
	return srv
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.Handle("GET /verify", s.requireAuth(http.HandlerFunc(s.handleVerify)))
	mux.Handle("GET /chats", s.requireAuth(http.HandlerFunc(s.handleListChats)))
	mux.Handle("GET /chat/{id}", s.requireAuth(http.HandlerFunc(s.handleGetChat)))
	mux.Handle("POST /chat/{id}", s.requireAuth(http.HandlerFunc(s.handlePutChat)))
	mux.Handle("DELETE /chat/{id}", s.requireAuth(http.HandlerFunc(s.handleDeleteChat)))
	mux.Handle("POST /v1/chat/completions", s.requireAuth(http.HandlerFunc(s.handleCompletions)))
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.cfg.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	return mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON payload")
	}
	return nil
}
