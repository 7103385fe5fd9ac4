// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisListKey = "sd-watcher-afk:queue"
	redisSeqKey  = "sd-watcher-afk:queue:seq"
)

// RedisStore keeps the queue in a redis list. Useful when several hosts
// share one queue consumer or when local disk persistence is not wanted.
type RedisStore struct {
	rdb *redis.Client
	max int
}

// OpenRedisStore connects to redis and verifies the connection.
func OpenRedisStore(ctx context.Context, addr, password string, db, maxItems int) (*RedisStore, error) {
	if maxItems <= 0 {
		maxItems = 4096
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("queue: redis ping %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb, max: maxItems}, nil
}

func (s *RedisStore) Enqueue(ctx context.Context, item *Item) (bool, error) {
	seq, err := s.rdb.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return false, fmt.Errorf("queue: redis seq: %w", err)
	}
	item.Seq = uint64(seq)

	buf, err := json.Marshal(item)
	if err != nil {
		return false, err
	}

	evicted := false
	length, err := s.rdb.RPush(ctx, redisListKey, buf).Result()
	if err != nil {
		return false, fmt.Errorf("queue: redis push: %w", err)
	}
	if length > int64(s.max) {
		if err := s.rdb.LPop(ctx, redisListKey).Err(); err != nil && err != redis.Nil {
			return false, fmt.Errorf("queue: redis evict: %w", err)
		}
		evicted = true
	}
	return evicted, nil
}

func (s *RedisStore) Peek(ctx context.Context) (*Item, error) {
	raw, err := s.rdb.LIndex(ctx, redisListKey, 0).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: redis peek: %w", err)
	}
	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("queue: redis decode: %w", err)
	}
	return &item, nil
}

func (s *RedisStore) Ack(ctx context.Context, seq uint64) error {
	head, err := s.Peek(ctx)
	if err != nil {
		return err
	}
	if head == nil || head.Seq != seq {
		return nil
	}
	if err := s.rdb.LPop(ctx, redisListKey).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("queue: redis ack: %w", err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.LLen(ctx, redisListKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: redis len: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Close() error { return s.rdb.Close() }
