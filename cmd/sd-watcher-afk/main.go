// SPDX-License-Identifier: MIT

// sd-watcher-afk is a daemon that reports user presence to an
// activity-watch compatible server. It polls the OS for seconds since last
// input, decides AFK state and streams it as heartbeats, buffering them
// locally while the server is unreachable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sd-tools/sd-watcher-afk/internal/api"
	"github.com/sd-tools/sd-watcher-afk/internal/client"
	"github.com/sd-tools/sd-watcher-afk/internal/config"
	"github.com/sd-tools/sd-watcher-afk/internal/event"
	"github.com/sd-tools/sd-watcher-afk/internal/health"
	"github.com/sd-tools/sd-watcher-afk/internal/idle"
	afklog "github.com/sd-tools/sd-watcher-afk/internal/log"
	"github.com/sd-tools/sd-watcher-afk/internal/queue"
	"github.com/sd-tools/sd-watcher-afk/internal/telemetry"
	"github.com/sd-tools/sd-watcher-afk/internal/watcher"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	afklog.Configure(afklog.Config{
		Level:   "info",
		Service: "sd-watcher-afk",
		Version: version,
	})
	logger := afklog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	explicitPath := strings.TrimSpace(*configPath)
	loader := config.NewLoader(explicitPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(afklog.FieldEvent, "config.load_failed").
			Msg("failed to load configuration")
	}

	afklog.Configure(afklog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.ClientName(),
		Version: version,
	})

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(afklog.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str(afklog.FieldEvent, "startup").
		Str("version", version).
		Str("commit", commit).
		Str(afklog.FieldServerURL, cfg.ServerURL).
		Str(afklog.FieldBucketID, cfg.BucketID()).
		Dur(afklog.FieldTimeout, cfg.Timeout).
		Dur(afklog.FieldPollTime, cfg.PollTime).
		Bool("testing", cfg.Testing).
		Msg("starting sd-watcher-afk")

	if err := run(ctx, cfg, loader, explicitPath); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Str(afklog.FieldEvent, "daemon.failed").Msg("daemon exited with error")
	}
	logger.Info().Str(afklog.FieldEvent, "shutdown.complete").Msg("sd-watcher-afk stopped")
}

func run(ctx context.Context, cfg config.Config, loader *config.Loader, explicitPath string) error {
	logger := afklog.WithComponent("daemon")

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    cfg.ClientName(),
		ServiceVersion: cfg.Version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	provider, err := idle.New(cfg.IdleProvider)
	if err != nil {
		return fmt.Errorf("init idle provider: %w", err)
	}

	srvClient := client.New(client.Config{
		BaseURL:          cfg.ServerURL,
		Timeout:          cfg.ClientTimeout,
		Retries:          cfg.ClientRetries,
		Backoff:          cfg.ClientBackoff,
		MaxBackoff:       cfg.ClientMaxBackoff,
		RateLimit:        cfg.ClientRateLimit,
		RateBurst:        cfg.ClientRateBurst,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerReset:     cfg.BreakerReset,
	})

	store, err := queue.Open(ctx, queue.Options{
		Backend:       cfg.QueueBackend,
		Dir:           cfg.DataDir,
		MaxItems:      cfg.QueueMax,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("queue store close failed")
		}
	}()

	bucketID := cfg.BucketID()
	dispatcher := queue.NewDispatcher(store, srvClient,
		queue.WithPreflight(func(ctx context.Context) error {
			return srvClient.CreateBucket(ctx, bucketID, client.Bucket{
				Client:   cfg.ClientName(),
				Type:     event.BucketType,
				Hostname: cfg.Hostname,
			})
		}),
	)

	w, err := watcher.New(watcher.Config{
		Settings: watcher.Settings{
			Timeout:  cfg.Timeout,
			PollTime: cfg.PollTime,
		},
		Provider:   provider,
		Dispatcher: dispatcher,
		BucketID:   bucketID,
		StatePath:  cfg.StatePath(),
	})
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}

	manager := health.NewManager(cfg.Version)
	manager.RegisterChecker(health.NewProviderChecker(provider))
	manager.RegisterChecker(health.NewQueueChecker(
		func() (int, error) { return store.Len(context.Background()) },
		cfg.QueueMax,
	))
	manager.RegisterChecker(health.NewHeartbeatChecker(
		dispatcher.LastAccepted,
		func() time.Duration { return w.Settings().PollTime },
	))

	configFile := explicitPath
	if configFile == "" {
		configFile = filepath.Join(cfg.DataDir, "config.yaml")
		if _, err := os.Stat(configFile); err != nil {
			configFile = ""
		}
	}
	holder := config.NewHolder(cfg, loader, configFile)

	updates := make(chan config.Config, 1)
	holder.Subscribe(updates)

	server := api.New(api.Options{
		Config:       holder,
		Health:       manager,
		Status:       w.Status,
		QueueDepth:   dispatcher.Depth,
		LastAccepted: dispatcher.LastAccepted,
		RateLimit:    120,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// The watcher may stop cleanly (orphaned process); take the rest of the
	// daemon down with it.
	g.Go(func() error {
		defer cancel()
		return w.Run(ctx)
	})
	g.Go(func() error { return dispatcher.Run(ctx) })
	g.Go(func() error {
		err := server.Run(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error { return holder.Watch(ctx) })
	g.Go(func() error { return applyUpdates(ctx, updates, w) })

	return g.Wait()
}

// applyUpdates pushes reloaded settings into the running watcher.
func applyUpdates(ctx context.Context, updates <-chan config.Config, w *watcher.Watcher) error {
	logger := afklog.WithComponent("daemon")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cfg := <-updates:
			afklog.Configure(afklog.Config{
				Level:   cfg.LogLevel,
				Service: cfg.ClientName(),
				Version: cfg.Version,
			})
			if err := w.UpdateSettings(watcher.Settings{
				Timeout:  cfg.Timeout,
				PollTime: cfg.PollTime,
			}); err != nil {
				logger.Warn().
					Err(err).
					Str(afklog.FieldEvent, "config.apply_failed").
					Msg("reloaded settings rejected, keeping previous")
				continue
			}
			logger.Info().
				Str(afklog.FieldEvent, "config.applied").
				Dur(afklog.FieldTimeout, cfg.Timeout).
				Dur(afklog.FieldPollTime, cfg.PollTime).
				Msg("applied reloaded settings")
		}
	}
}
