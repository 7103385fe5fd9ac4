// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AFK_DATA", t.TempDir())

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5600", cfg.ServerURL)
	assert.Equal(t, 300*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Second, cfg.PollTime)
	assert.False(t, cfg.Testing)
	assert.Equal(t, "127.0.0.1:5610", cfg.Listen)
	assert.Equal(t, "badger", cfg.QueueBackend)
	assert.NotEmpty(t, cfg.Hostname)
	assert.Equal(t, "sd-watcher-afk", cfg.ClientName())
	assert.Equal(t, "sd-watcher-afk_"+cfg.Hostname, cfg.BucketID())
}

func TestLoadTestingProfile(t *testing.T) {
	t.Setenv("AFK_DATA", t.TempDir())
	t.Setenv("AFK_TESTING", "true")

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5666", cfg.ServerURL)
	assert.Equal(t, 20*time.Second, cfg.Timeout)
	assert.Equal(t, 1*time.Second, cfg.PollTime)
	assert.Equal(t, "sd-watcher-afk-testing", cfg.ClientName())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("AFK_DATA", t.TempDir())
	path := writeConfigFile(t, `
serverUrl: http://server.local:5600
timeout: 120s
pollTime: 2s
logLevel: debug
queue:
  backend: memory
  maxItems: 64
client:
  retries: 4
  breakerReset: 10s
`)

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://server.local:5600", cfg.ServerURL)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, 2*time.Second, cfg.PollTime)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "memory", cfg.QueueBackend)
	assert.Equal(t, 64, cfg.QueueMax)
	assert.Equal(t, 4, cfg.ClientRetries)
	assert.Equal(t, 10*time.Second, cfg.BreakerReset)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("AFK_DATA", t.TempDir())
	path := writeConfigFile(t, `
serverUrl: http://from-file:5600
timeout: 120s
`)
	t.Setenv("AFK_SERVER_URL", "http://from-env:5600")
	t.Setenv("AFK_TIMEOUT", "90")

	cfg, err := NewLoader(path, "test").Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:5600", cfg.ServerURL)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad server url", map[string]string{"AFK_SERVER_URL": "not-a-url"}},
		{"timeout below poll", map[string]string{"AFK_TIMEOUT": "1", "AFK_POLL_TIME": "5"}},
		{"zero poll time", map[string]string{"AFK_POLL_TIME": "0"}},
		{"bad listen", map[string]string{"AFK_LISTEN": "no-port"}},
		{"unknown queue backend", map[string]string{"AFK_QUEUE_BACKEND": "kafka"}},
		{"unknown idle provider", map[string]string{"AFK_IDLE_PROVIDER": "ouija"}},
		{"redis without addr", map[string]string{"AFK_QUEUE_BACKEND": "redis", "AFK_REDIS_ADDR": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AFK_DATA", t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewLoader("", "test").Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadAutoloadsConfigFromDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AFK_DATA", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("timeout: 42s\n"), 0o600))

	cfg, err := NewLoader("", "test").Load()
	require.NoError(t, err)
	assert.Equal(t, 42*time.Second, cfg.Timeout)
}

func TestParseDuration(t *testing.T) {
	t.Setenv("DUR_SECONDS", "2.5")
	t.Setenv("DUR_GO", "150ms")
	t.Setenv("DUR_BAD", "soon")

	assert.Equal(t, 2500*time.Millisecond, ParseDuration("DUR_SECONDS", time.Second))
	assert.Equal(t, 150*time.Millisecond, ParseDuration("DUR_GO", time.Second))
	assert.Equal(t, time.Second, ParseDuration("DUR_BAD", time.Second))
	assert.Equal(t, time.Second, ParseDuration("DUR_UNSET", time.Second))
}

func TestParseBool(t *testing.T) {
	t.Setenv("B_YES", "yes")
	t.Setenv("B_OFF", "off")
	t.Setenv("B_BAD", "maybe")

	assert.True(t, ParseBool("B_YES", false))
	assert.False(t, ParseBool("B_OFF", true))
	assert.True(t, ParseBool("B_BAD", true))
	assert.False(t, ParseBool("B_UNSET", false))
}

func TestHolderReloadSwapsOnSuccess(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AFK_DATA", dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 60s\n"), 0o600))

	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)

	holder := NewHolder(cfg, loader, path)
	updates := make(chan Config, 1)
	holder.Subscribe(updates)

	require.NoError(t, os.WriteFile(path, []byte("timeout: 90s\n"), 0o600))
	require.NoError(t, holder.Reload(context.Background()))

	assert.Equal(t, 90*time.Second, holder.Get().Timeout)
	select {
	case got := <-updates:
		assert.Equal(t, 90*time.Second, got.Timeout)
	default:
		t.Fatal("expected listener notification")
	}
}

func TestHolderReloadKeepsOldConfigOnFailure(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AFK_DATA", dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 60s\n"), 0o600))

	loader := NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	holder := NewHolder(cfg, loader, path)

	// timeout below poll time fails validation
	require.NoError(t, os.WriteFile(path, []byte("timeout: 1s\npollTime: 5s\n"), 0o600))
	require.Error(t, holder.Reload(context.Background()))
	assert.Equal(t, 60*time.Second, holder.Get().Timeout)
}
