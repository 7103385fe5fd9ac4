// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/sd-tools/sd-watcher-afk/internal/log"
)

// Holder holds configuration with atomic reloading. Reads are cheap; a
// reload that fails validation keeps the previous configuration.
type Holder struct {
	mu      sync.RWMutex
	current Config
	loader  *Loader
	path    string
	logger  zerolog.Logger

	listenerMu sync.RWMutex
	listeners  []chan<- Config
}

// NewHolder wraps an initial configuration.
func NewHolder(initial Config, loader *Loader, path string) *Holder {
	return &Holder{
		current: initial,
		loader:  loader,
		path:    path,
		logger:  log.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers a channel that receives each successfully reloaded
// configuration. Sends are non-blocking; slow listeners miss updates.
func (h *Holder) Subscribe(ch chan<- Config) {
	h.listenerMu.Lock()
	h.listeners = append(h.listeners, ch)
	h.listenerMu.Unlock()
}

// Reload loads and validates the file again, swapping atomically on success.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		h.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("keeping previous configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.notify(newCfg)

	h.logger.Info().
		Str(log.FieldEvent, "config.reload_success").
		Bool("timeout_changed", old.Timeout != newCfg.Timeout).
		Bool("poll_time_changed", old.PollTime != newCfg.PollTime).
		Msg("configuration reloaded")

	if old.ServerURL != newCfg.ServerURL || old.QueueBackend != newCfg.QueueBackend {
		h.logger.Warn().
			Str(log.FieldEvent, "config.restart_required").
			Msg("server or queue settings changed, restart required to apply them")
	}
	return nil
}

func (h *Holder) notify(cfg Config) {
	h.listenerMu.RLock()
	defer h.listenerMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
		}
	}
}

// Watch reloads whenever the config file is rewritten, until ctx ends.
// It is a no-op when no config file is in use.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files rather than writing in place.
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		return fmt.Errorf("config watch %s: %w", h.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Clean(ev.Name), filepath.Clean(h.path)) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := h.Reload(ctx); err != nil {
				continue // logged in Reload; stale config stays active
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "config.watch_error").
				Msg("config file watcher error")
		}
	}
}
