// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"net/url"

	"github.com/sd-tools/sd-watcher-afk/internal/idle"
	"github.com/sd-tools/sd-watcher-afk/internal/queue"
)

// Validate rejects configurations the daemon cannot run with.
func Validate(cfg Config) error {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: server URL %q must be http(s)://host[:port]", cfg.ServerURL)
	}

	if cfg.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.PollTime <= 0 {
		return fmt.Errorf("config: poll_time must be positive, got %s", cfg.PollTime)
	}
	if cfg.Timeout < cfg.PollTime {
		return fmt.Errorf("config: timeout (%s) must be >= poll_time (%s)", cfg.Timeout, cfg.PollTime)
	}

	if cfg.DataDir == "" {
		return fmt.Errorf("config: data directory must be set")
	}

	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("config: listen address %q: %w", cfg.Listen, err)
	}

	switch cfg.QueueBackend {
	case queue.BackendMemory, queue.BackendBadger, queue.BackendRedis:
	default:
		return fmt.Errorf("config: unknown queue backend %q", cfg.QueueBackend)
	}
	if cfg.QueueBackend == queue.BackendRedis && cfg.RedisAddr == "" {
		return fmt.Errorf("config: redis queue backend requires a redis address")
	}

	switch cfg.IdleProvider {
	case idle.SelectorAuto, idle.SelectorSimulated, idle.SelectorXprintidle, idle.SelectorTracker:
	default:
		return fmt.Errorf("config: unknown idle provider %q", cfg.IdleProvider)
	}

	if cfg.ClientRetries < 0 {
		return fmt.Errorf("config: client retries must be >= 0, got %d", cfg.ClientRetries)
	}
	return nil
}
