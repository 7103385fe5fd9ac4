// SPDX-License-Identifier: MIT

package health

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sd-tools/sd-watcher-afk/internal/config"
	"github.com/sd-tools/sd-watcher-afk/internal/idle"
	"github.com/sd-tools/sd-watcher-afk/internal/log"
	"github.com/sd-tools/sd-watcher-afk/internal/queue"
)

// PerformStartupChecks validates the environment before the daemon starts
// polling. Failures here are configuration or permission problems that would
// otherwise surface as a crash loop.
func PerformStartupChecks(cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkListenAddr(logger, cfg.Listen); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}
	if err := checkServerURL(logger, cfg.ServerURL); err != nil {
		return fmt.Errorf("server URL check failed: %w", err)
	}

	checkIdleProvider(logger, cfg.IdleProvider)
	checkPersistence(logger, cfg)

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("cannot create data directory %s: %w", path, err)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("data directory is not writable: %s: %w", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("data directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str(log.FieldListen, addr).Msg("listen address is valid")
	return nil
}

func checkServerURL(logger zerolog.Logger, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL scheme must be http or https, got %q", u.Scheme)
	}
	logger.Info().Str(log.FieldServerURL, raw).Msg("server URL is valid")
	return nil
}

func checkIdleProvider(logger zerolog.Logger, provider string) {
	if runtime.GOOS != "linux" {
		return
	}
	if provider != idle.SelectorAuto && provider != idle.SelectorXprintidle {
		return
	}
	if _, err := exec.LookPath("xprintidle"); err != nil {
		logger.Warn().
			Str(log.FieldProvider, provider).
			Msg("xprintidle not found; idle detection falls back to the activity tracker")
	} else {
		logger.Info().Msg("xprintidle available")
	}
}

func checkPersistence(logger zerolog.Logger, cfg config.Config) {
	if cfg.QueueBackend == queue.BackendMemory {
		logger.Warn().
			Str("queue_backend", cfg.QueueBackend).
			Msg("in-memory queue; heartbeats buffered during outages are lost on restart")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; queued heartbeats and state may be lost on reboot")
	}
}
