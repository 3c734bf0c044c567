package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/cexll/grokrelay/pkg/auth"
	"github.com/cexll/grokrelay/pkg/completion"
	"github.com/cexll/grokrelay/pkg/config"
	"github.com/cexll/grokrelay/pkg/logging"
	"github.com/cexll/grokrelay/pkg/model"
	"github.com/cexll/grokrelay/pkg/model/anthropic"
	"github.com/cexll/grokrelay/pkg/model/openai"
	"github.com/cexll/grokrelay/pkg/server"
	"github.com/cexll/grokrelay/pkg/store"
	"github.com/cexll/grokrelay/pkg/telemetry"
	"github.com/cexll/grokrelay/pkg/tool"
	toolbuiltin "github.com/cexll/grokrelay/pkg/tool/builtin"
)

func serveCommand(ctx context.Context, argv []string, cfgPath string, streams ioStreams) error {
	set := flag.NewFlagSet("serve", flag.ContinueOnError)
	set.SetOutput(streams.err)
	addr := set.String("addr", "", "Listen address, overriding server.addr and GROKRELAY_ADDR.")
	configFlag := set.String("config", cfgPath, "Path to config file.")
	noWatch := set.Bool("no-watch", false, "Do not reload completion defaults when the config file changes.")
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: grokrelay serve [flags]")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
		fmt.Fprintln(streams.err, "\nRoutes:")
		fmt.Fprintln(streams.err, "  POST   /login                Exchange credentials for a token")
		fmt.Fprintln(streams.err, "  GET    /verify               Check a token")
		fmt.Fprintln(streams.err, "  GET    /chats                List stored chats")
		fmt.Fprintln(streams.err, "  GET    /chat/{id}            Load a chat")
		fmt.Fprintln(streams.err, "  POST   /chat/{id}            Save a chat")
		fmt.Fprintln(streams.err, "  DELETE /chat/{id}            Delete a chat")
		fmt.Fprintln(streams.err, "  POST   /v1/chat/completions  Stream a completion via SSE")
		fmt.Fprintln(streams.err, "  GET    /health               Health probe")
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	loader, err := config.NewLoader(*configFlag)
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a := strings.TrimSpace(*addr); a != "" {
		cfg.Server.Addr = a
	}

	logger, logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	live := config.NewLive(cfg.Completion)
	handler, err := buildHandler(ctx, cfg, live, logger)
	if err != nil {
		return err
	}
	if !*noWatch {
		watcher := config.NewWatcher(loader, func(next *config.Config) {
			live.Store(next.Completion)
		}, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("config hot reload disabled", "error", err)
		}
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer listener.Close()
	srv := &http.Server{Handler: handler}
	bound := listener.Addr().String()
	fmt.Fprintf(streams.out, "grokrelay serve listening on http://%s\n", bound)
	logger.Info("relay started", "addr", bound, "provider", cfg.Provider.Name, "store", cfg.Store.Backend)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		logger.Info("relay stopped")
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// providers lists the upstreams the relay can talk to.
func providers() *model.Registry {
	reg := model.NewRegistry()
	reg.Register(config.ProviderXAI, openai.Factory)
	reg.Register(config.ProviderAnthropic, anthropic.Factory)
	return reg
}

func buildHandler(ctx context.Context, cfg *config.Config, live *config.Live, logger *slog.Logger) (http.Handler, error) {
	provider, err := providers().Open(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	tools := tool.NewRegistry()
	err = toolbuiltin.Register(tools, toolbuiltin.Options{
		Search: toolbuiltin.WebSearchOptions{
			MaxResults: cfg.Tools.SearchMaxResults,
			Timeout:    cfg.Tools.SearchTimeout,
		},
		CodeExec: toolbuiltin.CodeExecutionOptions{
			Command: cfg.Tools.CodeCommand,
			Timeout: cfg.Tools.CodeTimeout,
		},
		DisableCode: cfg.Tools.DisableCode,
	})
	if err != nil {
		return nil, err
	}

	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	gate, err := auth.NewGate(auth.Config{
		Username:     cfg.Auth.Username,
		PasswordHash: cfg.Auth.PasswordHash,
		Password:     cfg.Auth.Password,
		Secret:       cfg.Auth.Secret,
		TokenTTL:     cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, err
	}

	orchestrator := completion.NewOrchestrator(provider, tool.NewDispatcher(tools, logger),
		completion.WithDefaults(func() completion.Defaults {
			c := live.Completion()
			return completion.Defaults{
				Model:       c.Model,
				Temperature: c.Temperature,
				MaxTokens:   c.MaxTokens,
				UseTools:    c.ToolsEnabled(),
			}
		}),
		completion.WithMaxRounds(cfg.Completion.MaxRounds),
		completion.WithLogger(logger),
	)

	return server.New(server.Config{
		StaticDir:    cfg.Server.StaticDir,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ExposeAPIKey: cfg.Auth.ExposeAPIKey,
		APIKey:       cfg.Provider.APIKey,
	}, gate, store.New(backend, logger), orchestrator, server.WithLogger(logger)), nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return store.NewS3Backend(ctx, cfg.S3)
	case config.BackendFile:
		return store.NewFileBackend(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
