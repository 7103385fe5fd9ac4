// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sd-tools/sd-watcher-afk/internal/event"
)

func testItem(bucket string, n int) *Item {
	return &Item{
		ID:        fmt.Sprintf("id-%d", n),
		BucketID:  bucket,
		Event:     event.New(time.Now(), event.AFKData(n%2 == 0)),
		Pulsetime: 305,
		QueuedAt:  time.Now().UTC(),
	}
}

// drainSeqs pops everything and returns the observed sequence order.
func drainSeqs(t *testing.T, ctx context.Context, s Store) []uint64 {
	t.Helper()
	var seqs []uint64
	for {
		item, err := s.Peek(ctx)
		require.NoError(t, err)
		if item == nil {
			return seqs
		}
		seqs = append(seqs, item.Seq)
		require.NoError(t, s.Ack(ctx, item.Seq))
	}
}

func runStoreContract(t *testing.T, s Store) {
	ctx := t.Context()

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	head, err := s.Peek(ctx)
	require.NoError(t, err)
	assert.Nil(t, head)

	for i := range 5 {
		evicted, err := s.Enqueue(ctx, testItem("b", i))
		require.NoError(t, err)
		assert.False(t, evicted)
	}

	n, err = s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	seqs := drainSeqs(t, ctx, s)
	require.Len(t, seqs, 5)
	for i := 1; i < len(seqs); i++ {
		assert.Greater(t, seqs[i], seqs[i-1], "FIFO order broken")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, NewMemoryStore(16))
}

func TestBadgerStoreContract(t *testing.T) {
	s, err := OpenBadgerStore(t.TempDir(), 16)
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)
}

func TestRedisStoreContract(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := OpenRedisStore(t.Context(), mr.Addr(), "", 0, 16)
	require.NoError(t, err)
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	ctx := t.Context()
	s := NewMemoryStore(2)

	for i := range 2 {
		_, err := s.Enqueue(ctx, testItem("b", i))
		require.NoError(t, err)
	}
	evicted, err := s.Enqueue(ctx, testItem("b", 2))
	require.NoError(t, err)
	assert.True(t, evicted)

	head, err := s.Peek(ctx)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, uint64(2), head.Seq, "oldest item should be gone")
}

func TestBadgerStoreEvictsOldest(t *testing.T) {
	ctx := t.Context()
	s, err := OpenBadgerStore(t.TempDir(), 3)
	require.NoError(t, err)
	defer s.Close()

	for i := range 5 {
		_, err := s.Enqueue(ctx, testItem("b", i))
		require.NoError(t, err)
	}

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	head, err := s.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), head.Seq)
}

func TestRedisStoreEvictsOldest(t *testing.T) {
	ctx := t.Context()
	mr := miniredis.RunT(t)
	s, err := OpenRedisStore(ctx, mr.Addr(), "", 0, 2)
	require.NoError(t, err)
	defer s.Close()

	for i := range 3 {
		_, err := s.Enqueue(ctx, testItem("b", i))
		require.NoError(t, err)
	}

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBadgerStoreSurvivesRestart(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()

	s, err := OpenBadgerStore(dir, 16)
	require.NoError(t, err)
	for i := range 3 {
		_, err := s.Enqueue(ctx, testItem("b", i))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	s, err = OpenBadgerStore(dir, 16)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// New sequence numbers continue after the persisted ones.
	item := testItem("b", 3)
	_, err = s.Enqueue(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), item.Seq)

	head, err := s.Peek(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head.Seq)
	assert.Equal(t, "b", head.BucketID)
}

func TestBadgerStorePreservesPayload(t *testing.T) {
	ctx := t.Context()
	s, err := OpenBadgerStore(t.TempDir(), 16)
	require.NoError(t, err)
	defer s.Close()

	want := &Item{
		ID:        "hb-1",
		BucketID:  "sd-watcher-afk_host",
		Event:     event.New(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC), event.AFKData(true)),
		Pulsetime: 305,
		QueuedAt:  time.Date(2026, 8, 26, 10, 0, 1, 0, time.UTC),
	}
	_, err = s.Enqueue(ctx, want)
	require.NoError(t, err)

	got, err := s.Peek(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("item changed across the store (-want +got):\n%s", diff)
	}
}

func TestOpenFactorySelectsBackend(t *testing.T) {
	ctx := t.Context()

	s, err := Open(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	_, ok := s.(*MemoryStore)
	assert.True(t, ok)

	s, err = Open(ctx, Options{Backend: BackendBadger, Dir: t.TempDir()})
	require.NoError(t, err)
	_, ok = s.(*BadgerStore)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Backend: "carrier-pigeon"})
	assert.Error(t, err)
}
