package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Live holds the completion defaults shared by in-flight requests.
type Live struct {
	current atomic.Pointer[CompletionConfig]
}

// NewLive seeds the holder with c.
func NewLive(c CompletionConfig) *Live {
	l := &Live{}
	l.Store(c)
	return l
}

// Completion returns the current defaults.
func (l *Live) Completion() CompletionConfig {
	if c := l.current.Load(); c != nil {
		return *c
	}
	return Default().Completion
}

// Store replaces the defaults for subsequent requests.
func (l *Live) Store(c CompletionConfig) {
	l.current.Store(&c)
}

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	loader   *Loader
	onChange func(*Config)
	logger   *slog.Logger
	debounce time.Duration
	done     chan struct{}
}

// NewWatcher reports every successfully reloaded config to onChange.
func NewWatcher(loader *Loader, onChange func(*Config), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		loader:   loader,
		onChange: onChange,
		logger:   logger,
		debounce: 250 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

// Start watches the config file's directory until ctx ends. Editors that
// save by rename are handled by watching the directory, not the file.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	dir := filepath.Dir(w.loader.Path())
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return fmt.Errorf("config watcher: watch %s: %w", dir, err)
	}
	go w.run(ctx, fw)
	return nil
}

// Done is closed once the watch loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)
	defer fw.Close()

	target := w.loader.Path()
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Reload()
	if err != nil {
		w.logger.Warn("config reload rejected", "path", w.loader.Path(), "error", err)
		return
	}
	w.logger.Info("config reloaded", "path", w.loader.Path(), "model", cfg.Completion.Model)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
