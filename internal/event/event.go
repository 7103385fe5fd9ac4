// SPDX-License-Identifier: MIT

// Package event defines the activity-watch event model and the AFK status
// payload emitted by the watcher.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status values carried in the "status" field of AFK events.
const (
	StatusAFK    = "afk"
	StatusNotAFK = "not-afk"
)

// BucketType is the event type registered for AFK buckets.
const BucketType = "afkstatus"

// Duration serialises as fractional seconds on the wire, matching the
// activity-watch server API.
type Duration time.Duration

// MarshalJSON renders the duration as a float number of seconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).Seconds())
}

// UnmarshalJSON accepts a float number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Event is a single activity-watch event. The ID is assigned server-side and
// zero for events created by this watcher.
type Event struct {
	ID        int64          `json:"id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  Duration       `json:"duration"`
	Data      map[string]any `json:"data"`
}

// New returns an event with the given timestamp and data and zero duration.
func New(ts time.Time, data map[string]any) Event {
	return Event{Timestamp: ts.UTC(), Data: data}
}

// AFKData builds the canonical AFK payload.
func AFKData(afk bool) map[string]any {
	status := StatusNotAFK
	if afk {
		status = StatusAFK
	}
	return map[string]any{
		"status": status,
		"app":    "afk",
		"title":  "Idle time",
	}
}

// Status extracts the AFK status field, or "" when absent.
func (e Event) Status() string {
	s, _ := e.Data["status"].(string)
	return s
}
