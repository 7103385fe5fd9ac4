// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "hb:"

// BadgerStore is the default durable queue. Keys are the zero-padded
// sequence number, so badger's lexicographic iteration order is enqueue
// order.
type BadgerStore struct {
	db   *badger.DB
	mu   sync.Mutex
	next uint64
	max  int
}

// OpenBadgerStore opens (or creates) the queue database at path.
func OpenBadgerStore(path string, maxItems int) (*BadgerStore, error) {
	if maxItems <= 0 {
		maxItems = 4096
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("queue: open badger at %s: %w", path, err)
	}

	s := &BadgerStore{db: db, next: 1, max: maxItems}
	if err := s.recoverNextSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// recoverNextSeq resumes the sequence counter after the last persisted item.
func (s *BadgerStore) recoverNextSeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration from just past the prefix lands on the last key.
		it.Seek([]byte(badgerKeyPrefix + "~"))
		if it.ValidForPrefix([]byte(badgerKeyPrefix)) {
			var seq uint64
			if _, err := fmt.Sscanf(string(it.Item().Key()), badgerKeyPrefix+"%020d", &seq); err != nil {
				return fmt.Errorf("queue: malformed key %q: %w", it.Item().Key(), err)
			}
			s.next = seq + 1
		}
		return nil
	})
}

func badgerKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", badgerKeyPrefix, seq))
}

func (s *BadgerStore) Enqueue(ctx context.Context, item *Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	length, err := s.lenLocked()
	if err != nil {
		return false, err
	}

	evicted := false
	err = s.db.Update(func(txn *badger.Txn) error {
		if length >= s.max {
			head, err := headKey(txn)
			if err != nil {
				return err
			}
			if head != nil {
				if err := txn.Delete(head); err != nil {
					return err
				}
				evicted = true
			}
		}

		item.Seq = s.next
		buf, err := json.Marshal(item)
		if err != nil {
			return err
		}
		return txn.Set(badgerKey(item.Seq), buf)
	})
	if err != nil {
		return false, fmt.Errorf("queue: enqueue: %w", err)
	}
	s.next++
	return evicted, nil
}

func headKey(txn *badger.Txn) ([]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek([]byte(badgerKeyPrefix))
	if !it.ValidForPrefix([]byte(badgerKeyPrefix)) {
		return nil, nil
	}
	return it.Item().KeyCopy(nil), nil
}

func (s *BadgerStore) Peek(ctx context.Context) (*Item, error) {
	var out *Item
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek([]byte(badgerKeyPrefix))
		if !it.ValidForPrefix([]byte(badgerKeyPrefix)) {
			return nil
		}
		return it.Item().Value(func(val []byte) error {
			var item Item
			if err := json.Unmarshal(val, &item); err != nil {
				return err
			}
			out = &item
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("queue: peek: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Ack(ctx context.Context, seq uint64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(seq))
	})
	if err != nil {
		return fmt.Errorf("queue: ack %d: %w", seq, err)
	}
	return nil
}

func (s *BadgerStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenLocked()
}

func (s *BadgerStore) lenLocked() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(badgerKeyPrefix)); it.ValidForPrefix([]byte(badgerKeyPrefix)); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("queue: len: %w", err)
	}
	return count, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
