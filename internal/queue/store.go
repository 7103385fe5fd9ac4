// SPDX-License-Identifier: MIT

// Package queue buffers heartbeats while the activity-watch server is
// unreachable and replays them in order once it recovers.
package queue

import (
	"context"
	"time"

	"github.com/sd-tools/sd-watcher-afk/internal/event"
)

// Item is one pending heartbeat request.
type Item struct {
	Seq       uint64      `json:"seq"` // assigned by the store, monotonic per store
	ID        string      `json:"id"`
	BucketID  string      `json:"bucket_id"`
	Event     event.Event `json:"event"`
	Pulsetime float64     `json:"pulsetime"`
	QueuedAt  time.Time   `json:"queued_at"`
}

// Store is a FIFO of pending heartbeats. Implementations are bounded: when
// full, Enqueue evicts the oldest item and reports it so callers can account
// for the loss. Iteration order is enqueue order.
type Store interface {
	// Enqueue appends the item, assigning its Seq. evicted is true when an
	// older item was dropped to make room.
	Enqueue(ctx context.Context, item *Item) (evicted bool, err error)

	// Peek returns the oldest item without removing it, or nil when empty.
	Peek(ctx context.Context) (*Item, error)

	// Ack removes the item with the given sequence number if it is still the
	// head of the queue.
	Ack(ctx context.Context, seq uint64) error

	// Len reports the number of pending items.
	Len(ctx context.Context) (int, error)

	Close() error
}

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)
