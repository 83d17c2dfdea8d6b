package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"

	halo "github.com/halo-intel/halo"
	"github.com/halo-intel/halo/internal/config"
	"github.com/halo-intel/halo/internal/telemetry"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("HALO_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	engine, err := halo.New(halo.WithLogger(logger), halo.WithVersion(version))
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	slog.Info("halo started", "version", version)

	meter := telemetry.Meter("github.com/halo-intel/halo/cmd/halo")
	resolvedCounter, err := meter.Int64Counter("halo.mentions.resolved",
		metric.WithDescription("mentions processed by the batch resolution loop"))
	if err != nil {
		return fmt.Errorf("telemetry: resolved counter: %w", err)
	}
	derivationCounter, err := meter.Int64Counter("halo.derivation.runs",
		metric.WithDescription("nightly derivation passes completed"))
	if err != nil {
		return fmt.Errorf("telemetry: derivation counter: %w", err)
	}

	go resolveLoop(ctx, engine, logger, resolvedCounter, cfg.ResolveBatchSize, cfg.ResolveInterval)
	go deriveLoop(ctx, engine, logger, derivationCounter, cfg.DeriveInterval)

	<-ctx.Done()
	slog.Info("halo shutting down")
	return nil
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveLoop periodically drains the pending-mention queue: Ingest only
// records mentions as PENDING, so this batch sweep is what resolves them.
func resolveLoop(ctx context.Context, engine *halo.Engine, logger *slog.Logger, counter metric.Int64Counter, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, loopTimeout(interval))
			result, err := engine.ResolvePending(opCtx, batchSize)
			cancel()
			if err != nil {
				logger.Warn("resolve loop failed", "error", err)
				continue
			}
			if result.Attempted > 0 {
				counter.Add(ctx, int64(result.Attempted))
				logger.Info("resolve batch complete", "attempted", result.Attempted, "succeeded", result.Succeeded, "failed", result.Failed)
			}
		}
	}
}

// deriveLoop runs the nightly derivation pass on a fixed interval.
func deriveLoop(ctx context.Context, engine *halo.Engine, logger *slog.Logger, counter metric.Int64Counter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx, cancel := context.WithTimeout(ctx, 2*time.Hour)
			report, err := engine.RunNightlyDerivation(opCtx)
			cancel()
			if err != nil {
				logger.Warn("derivation run failed", "error", err)
				continue
			}
			counter.Add(ctx, 1)
			logger.Info("derivation run complete", "rules", report)
		}
	}
}

// loopTimeout keeps each resolve cycle bounded so shutdown cancellation is
// respected promptly.
func loopTimeout(interval time.Duration) time.Duration {
	const max = 5 * time.Minute
	if interval < max {
		return interval
	}
	return max
}
