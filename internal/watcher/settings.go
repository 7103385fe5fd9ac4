// SPDX-License-Identifier: MIT

package watcher

import (
	"fmt"
	"time"
)

// Settings are the two durations that define AFK detection.
type Settings struct {
	// Timeout is the idle time after which the user counts as AFK.
	Timeout time.Duration
	// PollTime is how often the idle provider is asked.
	PollTime time.Duration
}

// Validate enforces the watcher invariants.
func (s Settings) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("watcher: timeout must be positive, got %s", s.Timeout)
	}
	if s.PollTime <= 0 {
		return fmt.Errorf("watcher: poll_time must be positive, got %s", s.PollTime)
	}
	if s.Timeout < s.PollTime {
		return fmt.Errorf("watcher: timeout (%s) must be >= poll_time (%s)", s.Timeout, s.PollTime)
	}
	return nil
}

// Pulsetime is the merge window sent with every heartbeat: long enough that
// two consecutive identical heartbeats always overlap server-side.
func (s Settings) Pulsetime() float64 {
	return (s.Timeout + s.PollTime).Seconds()
}
