// SPDX-License-Identifier: MIT

// Package watcher drives AFK detection: it polls the idle provider, runs the
// AFK state machine and reports state as heartbeats.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sd-tools/sd-watcher-afk/internal/event"
	"github.com/sd-tools/sd-watcher-afk/internal/idle"
	"github.com/sd-tools/sd-watcher-afk/internal/log"
	"github.com/sd-tools/sd-watcher-afk/internal/metrics"
)

// Dispatcher is where heartbeats go. Implemented by queue.Dispatcher.
type Dispatcher interface {
	Submit(ctx context.Context, bucketID string, ev event.Event, pulsetime float64) error
}

// Config wires a Watcher.
type Config struct {
	Settings   Settings
	Provider   idle.Provider
	Dispatcher Dispatcher
	BucketID   string
	StatePath  string // optional snapshot file, written via renameio
}

// Watcher owns the poll loop. One instance per process.
type Watcher struct {
	settings   Settings
	provider   idle.Provider
	dispatcher Dispatcher
	bucketID   string
	logger     zerolog.Logger
	now        func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// successor is added to the close-state heartbeat timestamp when leaving AFK
// so the newest event wins server-side ordering.
const successor = time.Millisecond

// New validates the configuration and builds a watcher.
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("watcher: idle provider is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("watcher: dispatcher is required")
	}
	if cfg.BucketID == "" {
		return nil, fmt.Errorf("watcher: bucket id is required")
	}

	w := &Watcher{
		settings:   cfg.Settings,
		provider:   cfg.Provider,
		dispatcher: cfg.Dispatcher,
		bucketID:   cfg.BucketID,
		logger:     log.WithComponent("watcher"),
		now:        time.Now,
	}
	w.snap = Snapshot{BucketID: cfg.BucketID, Provider: cfg.Provider.Name(), StatePath: cfg.StatePath}
	w.restoreSnapshot()
	return w, nil
}

// Run polls until ctx is cancelled or the parent process dies.
func (w *Watcher) Run(ctx context.Context) error {
	settings := w.Settings()
	w.logger.Info().
		Str(log.FieldEvent, "watcher.started").
		Str(log.FieldBucketID, w.bucketID).
		Str(log.FieldProvider, w.provider.Name()).
		Dur(log.FieldTimeout, settings.Timeout).
		Dur(log.FieldPollTime, settings.PollTime).
		Msg("afk watcher started")

	pollTime := settings.PollTime
	ticker := time.NewTicker(pollTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str(log.FieldEvent, "watcher.stopped").Msg("afk watcher stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		if next := w.Settings().PollTime; next != pollTime {
			pollTime = next
			ticker.Reset(pollTime)
		}

		if !parentAlive() {
			w.logger.Info().
				Str(log.FieldEvent, "watcher.orphaned").
				Msg("afk watcher stopped because parent process died")
			return nil
		}

		if err := w.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Warn().
				Err(err).
				Str(log.FieldEvent, "watcher.tick_failed").
				Msg("poll failed, continuing")
		}
	}
}

// Settings returns the active detection settings.
func (w *Watcher) Settings() Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

// UpdateSettings swaps timeout and poll time at runtime, used by config
// reload. Invalid settings are rejected and the old ones kept.
func (w *Watcher) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	old := w.settings
	w.settings = s
	w.mu.Unlock()

	if old != s {
		w.logger.Info().
			Str(log.FieldEvent, "watcher.settings_updated").
			Dur(log.FieldTimeout, s.Timeout).
			Dur(log.FieldPollTime, s.PollTime).
			Msg("detection settings updated")
	}
	return nil
}

// tick performs one poll and advances the state machine.
func (w *Watcher) tick(ctx context.Context) error {
	start := w.now()
	idleFor, err := w.provider.SecondsSinceLastInput(ctx)
	metrics.IncPoll()
	metrics.ObservePoll(w.now().Sub(start))
	if err != nil {
		metrics.IncPollError(w.provider.Name())
		return err
	}

	now := w.now().UTC()
	lastInput := now.Add(-idleFor)
	w.logger.Debug().
		Str(log.FieldEvent, "watcher.polled").
		Float64(log.FieldIdle, idleFor.Seconds()).
		Msg("seconds since last input")

	w.mu.Lock()
	afk := w.snap.AFK
	timeout := w.settings.Timeout
	w.mu.Unlock()

	switch {
	case afk && idleFor < timeout:
		// No longer AFK: close the afk interval at the last input, then open
		// the active state just after it.
		w.logger.Info().Str(log.FieldEvent, "watcher.active").Msg("no longer AFK")
		if err := w.ping(ctx, true, lastInput); err != nil {
			return err
		}
		w.setAFK(false, lastInput, now)
		metrics.RecordTransition(false)
		return w.ping(ctx, false, lastInput.Add(successor))

	case !afk && idleFor >= timeout:
		// Became AFK: close the active interval at the last input, then open
		// the afk state at the current time.
		w.logger.Info().Str(log.FieldEvent, "watcher.afk").Msg("became AFK")
		if err := w.ping(ctx, false, lastInput); err != nil {
			return err
		}
		w.setAFK(true, lastInput, now)
		metrics.RecordTransition(true)
		return w.ping(ctx, true, now)

	case afk:
		w.observe(lastInput, now)
		return w.ping(ctx, true, now)

	default:
		w.observe(lastInput, now)
		return w.ping(ctx, false, lastInput)
	}
}

func (w *Watcher) ping(ctx context.Context, afk bool, ts time.Time) error {
	ev := event.New(ts, event.AFKData(afk))
	return w.dispatcher.Submit(ctx, w.bucketID, ev, w.Settings().Pulsetime())
}
