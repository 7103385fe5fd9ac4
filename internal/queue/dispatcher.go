// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sd-tools/sd-watcher-afk/internal/client"
	"github.com/sd-tools/sd-watcher-afk/internal/event"
	"github.com/sd-tools/sd-watcher-afk/internal/log"
	"github.com/sd-tools/sd-watcher-afk/internal/metrics"
	"github.com/sd-tools/sd-watcher-afk/internal/resilience"
)

// deferrable reports whether a send failure should park the heartbeat in the
// queue: transient server trouble, an open breaker, or a timeout.
func deferrable(err error) bool {
	return client.Retryable(err) ||
		errors.Is(err, resilience.ErrCircuitOpen) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Sender is the part of the server client the dispatcher needs.
type Sender interface {
	Heartbeat(ctx context.Context, bucketID string, ev event.Event, pulsetime float64) error
}

// Dispatcher forwards heartbeats to the server, falling back to the durable
// store when the server is unreachable. Ordering invariant: once anything is
// queued, new heartbeats are queued too, so replay order equals emit order.
type Dispatcher struct {
	store  Store
	sender Sender
	logger zerolog.Logger

	flushInterval time.Duration
	notify        chan struct{}

	// preflight runs once before the first send, typically to create the
	// bucket. Until it succeeds every heartbeat is queued.
	preflight func(ctx context.Context) error
	ready     atomic.Bool

	lastAccepted atomic.Int64 // unix nanos of the last server-accepted heartbeat
}

// DispatcherOption tunes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFlushInterval overrides how often the backlog is retried.
func WithFlushInterval(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) { dp.flushInterval = d }
}

// WithPreflight registers a function that must succeed once before any
// heartbeat is sent to the server.
func WithPreflight(fn func(ctx context.Context) error) DispatcherOption {
	return func(dp *Dispatcher) { dp.preflight = fn }
}

// NewDispatcher wires a dispatcher to its store and sender.
func NewDispatcher(store Store, sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:         store,
		sender:        sender,
		logger:        log.WithComponent("dispatcher"),
		flushInterval: 10 * time.Second,
		notify:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) ensureReady(ctx context.Context) error {
	if d.ready.Load() || d.preflight == nil {
		return nil
	}
	if err := d.preflight(ctx); err != nil {
		return err
	}
	d.ready.Store(true)
	return nil
}

// Submit hands one heartbeat to the dispatcher. It sends directly while the
// backlog is empty and the preflight has passed; any failure or existing
// backlog routes through the store.
func (d *Dispatcher) Submit(ctx context.Context, bucketID string, ev event.Event, pulsetime float64) error {
	depth, err := d.store.Len(ctx)
	if err != nil {
		return err
	}

	if depth == 0 {
		if err := d.ensureReady(ctx); err != nil {
			if !deferrable(err) {
				return err
			}
			return d.enqueue(ctx, bucketID, ev, pulsetime)
		}
		err := d.sender.Heartbeat(ctx, bucketID, ev, pulsetime)
		if err == nil {
			d.markAccepted()
			return nil
		}
		if !deferrable(err) {
			metrics.IncHeartbeat("error")
			return err
		}
		d.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "dispatch.deferred").
			Str(log.FieldBucketID, bucketID).
			Msg("server unreachable, queueing heartbeat")
	}

	return d.enqueue(ctx, bucketID, ev, pulsetime)
}

func (d *Dispatcher) enqueue(ctx context.Context, bucketID string, ev event.Event, pulsetime float64) error {
	item := &Item{
		ID:        uuid.NewString(),
		BucketID:  bucketID,
		Event:     ev,
		Pulsetime: pulsetime,
		QueuedAt:  time.Now().UTC(),
	}
	evicted, err := d.store.Enqueue(ctx, item)
	if err != nil {
		metrics.IncHeartbeat("error")
		return err
	}
	if evicted {
		metrics.IncQueueDropped()
		metrics.IncHeartbeat("dropped")
	}
	metrics.IncHeartbeat("queued")
	d.updateDepth(ctx)

	// Wake the drain loop.
	select {
	case d.notify <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the backlog until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.notify:
		}
		if err := d.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Debug().
				Err(err).
				Str(log.FieldEvent, "dispatch.drain_interrupted").
				Msg("backlog drain stopped, will retry")
		}
	}
}

// Drain replays queued heartbeats in order until the queue is empty or a
// send fails.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if err := d.ensureReady(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := d.store.Peek(ctx)
		if err != nil {
			return err
		}
		if item == nil {
			d.updateDepth(ctx)
			return nil
		}

		if err := d.sender.Heartbeat(ctx, item.BucketID, item.Event, item.Pulsetime); err != nil {
			if deferrable(err) {
				d.updateDepth(ctx)
				return err
			}
			// Permanent rejection: drop the item rather than wedging the queue.
			d.logger.Error().
				Err(err).
				Str(log.FieldEvent, "dispatch.rejected").
				Str(log.FieldBucketID, item.BucketID).
				Uint64("seq", item.Seq).
				Msg("server rejected queued heartbeat, dropping it")
			metrics.IncHeartbeat("error")
		} else {
			d.markAccepted()
		}

		if err := d.store.Ack(ctx, item.Seq); err != nil {
			return err
		}
		d.updateDepth(ctx)
	}
}

func (d *Dispatcher) markAccepted() {
	d.lastAccepted.Store(time.Now().UnixNano())
	metrics.IncHeartbeat("sent")
	metrics.RecordHeartbeatAccepted()
}

// LastAccepted returns when the server last accepted a heartbeat, or the
// zero time if it never has.
func (d *Dispatcher) LastAccepted() time.Time {
	n := d.lastAccepted.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Depth reports the current backlog size.
func (d *Dispatcher) Depth(ctx context.Context) int {
	n, err := d.store.Len(ctx)
	if err != nil {
		return -1
	}
	return n
}

func (d *Dispatcher) updateDepth(ctx context.Context) {
	if n, err := d.store.Len(ctx); err == nil {
		metrics.SetQueueDepth(n)
	}
}
