// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sd-tools/sd-watcher-afk/internal/client"
	"github.com/sd-tools/sd-watcher-afk/internal/event"
)

// fakeSender records heartbeats and can simulate an unreachable server.
type fakeSender struct {
	mu   sync.Mutex
	down bool
	sent []string // status values in send order
}

func (f *fakeSender) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeSender) Heartbeat(_ context.Context, _ string, ev event.Event, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return &client.APIError{Sentinel: client.ErrUnavailable, Operation: "heartbeat"}
	}
	f.sent = append(f.sent, ev.Status())
	return nil
}

func (f *fakeSender) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func submit(t *testing.T, d *Dispatcher, status string) {
	t.Helper()
	afk := status == event.StatusAFK
	require.NoError(t, d.Submit(t.Context(), "bucket", event.New(time.Now(), event.AFKData(afk)), 305))
}

func TestSubmitSendsDirectlyWhenHealthy(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(NewMemoryStore(16), sender)

	submit(t, d, event.StatusNotAFK)

	assert.Equal(t, []string{event.StatusNotAFK}, sender.statuses())
	assert.Zero(t, d.Depth(t.Context()))
}

func TestSubmitQueuesWhileDown(t *testing.T) {
	sender := &fakeSender{down: true}
	d := NewDispatcher(NewMemoryStore(16), sender)

	submit(t, d, event.StatusNotAFK)
	submit(t, d, event.StatusAFK)

	assert.Empty(t, sender.statuses())
	assert.Equal(t, 2, d.Depth(t.Context()))
}

func TestDrainReplaysInOrder(t *testing.T) {
	sender := &fakeSender{down: true}
	d := NewDispatcher(NewMemoryStore(16), sender)

	submit(t, d, event.StatusNotAFK)
	submit(t, d, event.StatusAFK)
	submit(t, d, event.StatusNotAFK)

	sender.setDown(false)

	// A new heartbeat while a backlog exists must queue behind it.
	submit(t, d, event.StatusAFK)
	require.Equal(t, 4, d.Depth(t.Context()))

	require.NoError(t, d.Drain(t.Context()))

	assert.Equal(t, []string{
		event.StatusNotAFK,
		event.StatusAFK,
		event.StatusNotAFK,
		event.StatusAFK,
	}, sender.statuses())
	assert.Zero(t, d.Depth(t.Context()))
}

func TestDrainStopsOnTransientFailure(t *testing.T) {
	sender := &fakeSender{down: true}
	d := NewDispatcher(NewMemoryStore(16), sender)

	submit(t, d, event.StatusAFK)

	err := d.Drain(t.Context())
	assert.ErrorIs(t, err, client.ErrUnavailable)
	assert.Equal(t, 1, d.Depth(t.Context()), "item must stay queued")
}

func TestDrainDropsPermanentRejections(t *testing.T) {
	rejecting := senderFunc(func(context.Context, string, event.Event, float64) error {
		return &client.APIError{Sentinel: client.ErrBadRequest, Operation: "heartbeat", Status: 400}
	})
	d := NewDispatcher(NewMemoryStore(16), rejecting)

	store := d.store
	_, err := store.Enqueue(t.Context(), testItem("bucket", 0))
	require.NoError(t, err)

	require.NoError(t, d.Drain(t.Context()))
	assert.Zero(t, d.Depth(t.Context()))
}

func TestRunDrainsOnNotify(t *testing.T) {
	sender := &fakeSender{down: true}
	d := NewDispatcher(NewMemoryStore(16), sender, WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	submit(t, d, event.StatusAFK)
	sender.setDown(false)
	submit(t, d, event.StatusNotAFK) // notify wakes the loop

	assert.Eventually(t, func() bool {
		return d.Depth(context.Background()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []string{event.StatusAFK, event.StatusNotAFK}, sender.statuses())
}

func TestPreflightGatesSends(t *testing.T) {
	sender := &fakeSender{}
	var preflightErr error = &client.APIError{Sentinel: client.ErrUnavailable, Operation: "create_bucket"}
	var preflights int
	d := NewDispatcher(NewMemoryStore(16), sender, WithPreflight(func(context.Context) error {
		preflights++
		return preflightErr
	}))

	// While the preflight fails with a transient error, heartbeats queue.
	submit(t, d, event.StatusNotAFK)
	assert.Empty(t, sender.statuses())
	assert.Equal(t, 1, d.Depth(t.Context()))

	// Once it succeeds, the backlog drains and direct sends resume.
	preflightErr = nil
	require.NoError(t, d.Drain(t.Context()))
	submit(t, d, event.StatusAFK)

	assert.Equal(t, []string{event.StatusNotAFK, event.StatusAFK}, sender.statuses())
	assert.Equal(t, 2, preflights, "preflight must not run again after success")
}

// senderFunc adapts a function to the Sender interface.
type senderFunc func(context.Context, string, event.Event, float64) error

func (f senderFunc) Heartbeat(ctx context.Context, bucket string, ev event.Event, pulse float64) error {
	return f(ctx, bucket, ev, pulse)
}
