// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"sync"
)

// MemoryStore is a bounded in-memory queue. State is lost on restart; it
// exists for tests and for hosts where durability is not wanted.
type MemoryStore struct {
	mu    sync.Mutex
	items []*Item
	next  uint64
	max   int
}

// NewMemoryStore returns a store holding at most maxItems entries.
func NewMemoryStore(maxItems int) *MemoryStore {
	if maxItems <= 0 {
		maxItems = 1024
	}
	return &MemoryStore{max: maxItems, next: 1}
}

func (s *MemoryStore) Enqueue(_ context.Context, item *Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := false
	if len(s.items) >= s.max {
		s.items = s.items[1:]
		evicted = true
	}

	item.Seq = s.next
	s.next++
	s.items = append(s.items, item)
	return evicted, nil
}

func (s *MemoryStore) Peek(_ context.Context) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, nil
	}
	return s.items[0], nil
}

func (s *MemoryStore) Ack(_ context.Context, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) > 0 && s.items[0].Seq == seq {
		s.items = s.items[1:]
	}
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *MemoryStore) Close() error { return nil }
