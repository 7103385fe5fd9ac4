// SPDX-License-Identifier: MIT

package watcher

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/renameio/v2"

	"github.com/sd-tools/sd-watcher-afk/internal/log"
)

// Snapshot is the externally visible watcher state, served by the status API
// and persisted across restarts.
type Snapshot struct {
	AFK         bool      `json:"afk"`
	Since       time.Time `json:"since,omitempty"` // when the current state began
	LastInput   time.Time `json:"last_input,omitempty"`
	LastTick    time.Time `json:"last_tick,omitempty"`
	Transitions int64     `json:"transitions"`
	BucketID    string    `json:"bucket_id"`
	Provider    string    `json:"provider"`

	StatePath string `json:"-"`
}

// Status returns a copy of the current snapshot.
func (w *Watcher) Status() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// setAFK records a state transition and persists it.
func (w *Watcher) setAFK(afk bool, lastInput, now time.Time) {
	w.mu.Lock()
	w.snap.AFK = afk
	w.snap.Since = now
	w.snap.LastInput = lastInput
	w.snap.LastTick = now
	w.snap.Transitions++
	snap := w.snap
	w.mu.Unlock()

	w.persistSnapshot(snap)
}

// observe updates the rolling fields without a state change.
func (w *Watcher) observe(lastInput, now time.Time) {
	w.mu.Lock()
	w.snap.LastInput = lastInput
	w.snap.LastTick = now
	w.mu.Unlock()
}

// persistSnapshot writes the snapshot atomically so a crash never leaves a
// torn state file.
func (w *Watcher) persistSnapshot(snap Snapshot) {
	if snap.StatePath == "" {
		return
	}
	buf, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	if err := renameio.WriteFile(snap.StatePath, buf, 0o644); err != nil {
		w.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "watcher.state_write_failed").
			Str("path", snap.StatePath).
			Msg("could not persist state snapshot")
	}
}

// restoreSnapshot loads the previous snapshot if one exists. Only the AFK
// flag and counters are restored; timestamps start fresh.
func (w *Watcher) restoreSnapshot() {
	if w.snap.StatePath == "" {
		return
	}
	raw, err := os.ReadFile(w.snap.StatePath)
	if err != nil {
		return
	}
	var prev Snapshot
	if err := json.Unmarshal(raw, &prev); err != nil {
		w.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "watcher.state_corrupt").
			Str("path", w.snap.StatePath).
			Msg("ignoring unreadable state snapshot")
		return
	}

	w.mu.Lock()
	w.snap.AFK = prev.AFK
	w.snap.Transitions = prev.Transitions
	w.mu.Unlock()
}
