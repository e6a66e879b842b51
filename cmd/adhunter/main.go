package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bakkerme/adhunter/internal/config"
	"github.com/bakkerme/adhunter/internal/health"
	"github.com/bakkerme/adhunter/internal/observability/otelx"
	"github.com/bakkerme/adhunter/internal/runner/factory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], config.LoadEnv())
	stop()
	os.Exit(code)
}

// run returns the process exit code. Deferred cleanup (seen store, tracing,
// liveness server) completes before it returns.
func run(ctx context.Context, args []string, env config.EnvConfig) int {
	flags := flag.NewFlagSet("adhunter", flag.ContinueOnError)
	configPath := flags.String("config", env.WatchlistPath, "path to watchlist yaml (built-in watchlist when empty)")
	runOnce := flags.Bool("run-once", env.RunOnce, "run a single cycle and exit")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	logger := newLogger(env.Log)
	slog.SetDefault(logger)

	watchlist, err := loadWatchlist(*configPath)
	if err != nil {
		logger.Error("failed to load watchlist", "error", err)
		return 1
	}

	shutdownTracing, err := otelx.Init(ctx, logger, env.OTel)
	if err != nil {
		logger.Error("failed to init tracing", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	f := factory.NewFromEnvConfig(logger, env)
	r, store, err := f.NewRunner(watchlist)
	if err != nil {
		logger.Error("failed to build runner", "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("seen store close failed", "error", err)
		}
	}()

	logger.Info("adhunter starting", "sites", len(watchlist.Sites), "keywords", watchlist.Filter.Keywords, "channel", env.NotifyChannel, "seen_store", env.Seen.Backend)

	if *runOnce {
		if _, err := r.RunOnce(ctx); err != nil {
			logger.Error("run failed", "error", err)
			return 1
		}
		return 0
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := health.NewServer(logger, f.Metrics.Registry)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		addr := fmt.Sprintf(":%d", env.Port)
		if err := server.Run(ctx, addr); err != nil {
			logger.Error("health server stopped", "error", err)
		}
	}()

	code := 0
	if err := r.Run(ctx); err != nil {
		logger.Error("poll loop failed", "error", err)
		code = 1
	}
	cancel()
	<-serverDone
	return code
}

func loadWatchlist(path string) (*config.Watchlist, error) {
	if strings.TrimSpace(path) == "" {
		return config.DefaultWatchlist(), nil
	}
	return config.LoadWatchlist(path)
}

func newLogger(cfg config.LogEnvConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
