// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"fmt"
	"path/filepath"
)

// Options selects and tunes the queue backend.
type Options struct {
	Backend       string
	Dir           string // data directory, used by the badger backend
	MaxItems      int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open builds the configured store.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendBadger:
		return OpenBadgerStore(filepath.Join(opts.Dir, "queue"), opts.MaxItems)
	case BackendMemory:
		return NewMemoryStore(opts.MaxItems), nil
	case BackendRedis:
		return OpenRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.MaxItems)
	default:
		return nil, fmt.Errorf("queue: unknown backend %q", opts.Backend)
	}
}
