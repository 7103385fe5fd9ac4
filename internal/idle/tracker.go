// SPDX-License-Identifier: MIT

package idle

import (
	"context"
	"sync"
	"time"
)

// Tracker is a process-internal activity aggregator. Anything that observes
// user activity (an input hook, an IPC endpoint, another watcher) calls
// Touch; the watcher reads the elapsed time since the last touch. It is also
// the Linux fallback when no X idle query is available.
type Tracker struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewTracker returns a tracker whose last activity is initialised to now, so
// a fresh start counts as active.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	t.last = t.now()
	return t
}

func (t *Tracker) Name() string { return SelectorTracker }

// Touch records user activity at the current time.
func (t *Tracker) Touch() {
	t.mu.Lock()
	t.last = t.now()
	t.mu.Unlock()
}

// LastActivity returns the time of the most recent touch.
func (t *Tracker) LastActivity() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Tracker) SecondsSinceLastInput(_ context.Context) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.last), nil
}
