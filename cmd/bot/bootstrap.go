package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"regime-trader/internal/broker/brokerobs"
	"regime-trader/internal/broker/zerodha"
	"regime-trader/internal/engine"
	"regime-trader/internal/engine/engineobs"
	"regime-trader/internal/eod"
	"regime-trader/internal/eod/eodobs"
	"regime-trader/internal/events"
	"regime-trader/internal/interfaces"
	"regime-trader/internal/journal"
	"regime-trader/internal/logger"
	"regime-trader/internal/marketdata"
	"regime-trader/internal/metrics"
	"regime-trader/internal/ml"
	"regime-trader/internal/ml/mlobs"
	"regime-trader/internal/paper"
	"regime-trader/internal/pricecache"
	"regime-trader/internal/regime"
	"regime-trader/internal/regime/regimeobs"
	"regime-trader/internal/retry"
	"regime-trader/internal/risk"
	"regime-trader/internal/scheduler"
	"regime-trader/internal/statestore"
	"regime-trader/internal/store"
	"regime-trader/internal/ticks"
	"regime-trader/internal/trace"
	"regime-trader/internal/tradelog"
)

const version = "0.4.0"

// initializeSystem loads .env and initializes the logger and tracer.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

func kiteParams(cfg *store.Config) zerodha.Params {
	return zerodha.Params{
		APIKey:      os.Getenv("KITE_API_KEY"),
		AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		Exchange:    cfg.Exchange,
		Tokens:      cfg.Kite.Tokens,
		QuoteKeys:   cfg.Kite.QuoteKeys,
		EnvFile:     cfg.Kite.EnvFile,
	}
}

// retryPolicy builds the broker policy with retry counters attached.
func retryPolicy(cfg *store.Config, rec *metrics.Recorder) *retry.Policy {
	return &retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff,
		OnRetry: func(op string, kind retry.Kind, _ int) {
			rec.RecordRetry(op, kind.String())
		},
	}
}

// initializeMarketData returns the bar source and the retry policy that
// matches it.
func initializeMarketData(ctx context.Context, cfg *store.Config, base *retry.Policy) (interfaces.MarketData, *retry.Policy, func(), error) {
	switch cfg.DataSource {
	case store.DataKite:
		client := zerodha.NewClient(kiteParams(cfg))
		logger.Info(ctx, "Using Kite historical data", "exchange", cfg.Exchange)
		return brokerobs.Wrap(client), client.Policy(base), func() {}, nil
	case store.DataClickHouse:
		ch, err := marketdata.OpenClickHouse(ctx, cfg.ClickHouse.DSN, cfg.ClickHouse.Table)
		if err != nil {
			return nil, nil, func() {}, err
		}
		logger.Info(ctx, "Using ClickHouse bar store", "table", cfg.ClickHouse.Table)
		return brokerobs.Wrap(ch), base, func() { _ = ch.Close() }, nil
	default:
		logger.Warn(ctx, "Using STATIC synthetic bars")
		return brokerobs.Wrap(zerodha.NewStatic(cfg.StaticBase)), base, func() {}, nil
	}
}

func initializeTicks(ctx context.Context, cfg *store.Config, cache *pricecache.Cache, rec *metrics.Recorder) (interfaces.TickSource, error) {
	var src interfaces.TickSource
	switch cfg.Ticks.Source {
	case store.TicksKite:
		src = zerodha.NewTickerManager(kiteParams(cfg), cache, rec)
	case store.TicksKafka:
		c, err := ticks.NewConsumer(cfg.Ticks.Kafka, cache, rec)
		if err != nil {
			return nil, err
		}
		src = c
	default:
		logger.Warn(ctx, "No tick source configured, exits will price off bar closes")
		return nil, nil
	}
	src = brokerobs.WrapTicks(src)
	if err := src.Subscribe(ctx, cfg.Instruments); err != nil {
		return nil, err
	}
	if err := src.Start(ctx); err != nil {
		return nil, err
	}
	return src, nil
}

// initializeEngine wires the classifier, risk machine and paper
// collaborators around the market data source.
func initializeEngine(ctx context.Context, cfg *store.Config, data interfaces.MarketData, policy *retry.Policy,
	cache *pricecache.Cache, st interfaces.StateStore, rec *metrics.Recorder) (interfaces.Engine, error) {

	rm, err := risk.Load(ctx, cfg.Risk, st, rec)
	if err != nil {
		return nil, fmt.Errorf("load risk state: %w", err)
	}

	cal, err := events.Load(ctx, cfg.Events)
	if err != nil {
		return nil, fmt.Errorf("load event calendar: %w", err)
	}

	scorer := mlobs.Wrap(ml.New(cfg.ML), rec)
	if scorer == nil {
		logger.Info(ctx, "External regime classifier disabled")
	}

	ex := paper.NewExecutor(cfg.Paper.Executor, cache)
	if cfg.Mode == store.ModeLive {
		logger.Warn(ctx, "LIVE mode uses Kite data with paper execution")
	}

	eng := engine.New(cfg.Engine, engine.Deps{
		Regime:     regimeobs.Wrap(regime.NewSet(cfg.Regime, scorer), rec),
		Risk:       rm,
		Treasury:   paper.NewTreasury(cfg.Paper.Treasury, ex),
		Strategist: paper.NewStrategist(cfg.Paper.Lots),
		Executor:   ex,
		Data:       data,
		Quotes:     cache,
		Calendar:   cal,
		Policy:     policy,
	})
	return engineobs.Wrap(eng, rec), nil
}

// initializeSinks returns the trade log, the optional journal and the EOD
// summarizer.
func initializeSinks(ctx context.Context, cfg *store.Config) ([]scheduler.Option, func(), error) {
	tl := tradelog.New(cfg.Log.Dir)
	if n, err := tl.CompressOlder(cfg.Log.RetentionDays, time.Now()); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "Compressed old iteration logs", "files", n)
	}

	opts := []scheduler.Option{
		scheduler.WithSink(tl),
		scheduler.WithEOD(eodobs.Wrap(eod.NewSummarizer(tl))),
	}
	closer := func() {}
	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.PostgresURL)
		if err != nil {
			return nil, closer, err
		}
		opts = append(opts, scheduler.WithSink(j))
		closer = j.Close
	}
	return opts, closer, nil
}

func openStateStore(ctx context.Context, cfg *store.Config) (interfaces.StateStore, func(), error) {
	st, closeFn, err := statestore.Open(ctx, cfg.State)
	if err != nil {
		return nil, closeFn, fmt.Errorf("open state store: %w", err)
	}
	logger.Info(ctx, "State store ready", "backend", cfg.State.Backend)
	return st, closeFn, nil
}

func serveMetrics(ctx context.Context, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info(ctx, "Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server failed", err)
		}
	}()
	return srv
}
