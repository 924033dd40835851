package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"regime-trader/internal/logger"
	"regime-trader/internal/metrics"
	"regime-trader/internal/pricecache"
	"regime-trader/internal/scheduler"
	"regime-trader/internal/trace"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize system: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		logger.ErrorWithErr(ctx, "Bot exited with error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Starting regime trader",
		"mode", cfg.Mode,
		"data_source", cfg.DataSource,
		"instruments", cfg.Instruments,
		"interval", cfg.Scheduler.Interval,
	)

	rec := metrics.New()
	srv := serveMetrics(ctx, cfg.Metrics.Addr)
	defer srv.Close()

	st, closeStore, err := openStateStore(ctx, cfg)
	defer closeStore()
	if err != nil {
		return err
	}

	data, policy, closeData, err := initializeMarketData(ctx, cfg, retryPolicy(cfg, rec))
	defer closeData()
	if err != nil {
		return err
	}

	cache := pricecache.New(cfg.Ticks.MaxAge)
	src, err := initializeTicks(ctx, cfg, cache, rec)
	if err != nil {
		return fmt.Errorf("start tick source: %w", err)
	}
	if src != nil {
		defer src.Stop(context.WithoutCancel(ctx))
	}

	eng, err := initializeEngine(ctx, cfg, data, policy, cache, st, rec)
	if err != nil {
		return err
	}

	opts, closeSinks, err := initializeSinks(ctx, cfg)
	defer closeSinks()
	if err != nil {
		return err
	}

	return scheduler.New(cfg.Scheduler, eng, opts...).Run(ctx)
}
