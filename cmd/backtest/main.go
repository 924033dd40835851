// Command backtest replays stored bars through the same decision engine
// the bot runs live, with paper execution and a scratch state store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"regime-trader/internal/backtest"
	"regime-trader/internal/broker/zerodha"
	"regime-trader/internal/engine"
	"regime-trader/internal/events"
	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/marketdata"
	"regime-trader/internal/paper"
	"regime-trader/internal/pricecache"
	"regime-trader/internal/regime"
	"regime-trader/internal/retry"
	"regime-trader/internal/risk"
	"regime-trader/internal/statestore"
	"regime-trader/internal/store"
	"regime-trader/internal/tradelog"
	"regime-trader/internal/types"
)

const dateLayout = "2006-01-02"

var ist = time.FixedZone("IST", 19800)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	from := flag.String("from", "", "first replayed day (YYYY-MM-DD, IST)")
	to := flag.String("to", "", "last replayed day (YYYY-MM-DD, IST)")
	every := flag.Int("every", 1, "run the engine on every n-th bar")
	out := flag.String("out", "backtest", "directory for state and iteration logs")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := run(ctx, *configPath, *from, *to, *every, *out)
	if rep != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Backtest failed", err)
		os.Exit(1)
	}
}

func parseWindow(from, to string) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both -from and -to are required")
	}
	f, err := time.ParseInLocation(dateLayout, from, ist)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -from: %w", err)
	}
	t, err := time.ParseInLocation(dateLayout, to, ist)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -to: %w", err)
	}
	t = t.AddDate(0, 0, 1)
	if !f.Before(t) {
		return time.Time{}, time.Time{}, fmt.Errorf("-from must not be after -to")
	}
	return f, t, nil
}

func source(ctx context.Context, cfg *store.Config) (interfaces.MarketData, func(), error) {
	switch cfg.DataSource {
	case store.DataKite:
		return zerodha.NewClient(zerodha.Params{
			APIKey:      os.Getenv("KITE_API_KEY"),
			AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
			Exchange:    cfg.Exchange,
			Tokens:      cfg.Kite.Tokens,
			QuoteKeys:   cfg.Kite.QuoteKeys,
			EnvFile:     cfg.Kite.EnvFile,
		}), func() {}, nil
	case store.DataClickHouse:
		ch, err := marketdata.OpenClickHouse(ctx, cfg.ClickHouse.DSN, cfg.ClickHouse.Table)
		if err != nil {
			return nil, func() {}, err
		}
		return ch, func() { _ = ch.Close() }, nil
	default:
		return zerodha.NewStatic(cfg.StaticBase), func() {}, nil
	}
}

// preload copies every series the engine reads into memory, including
// the daily lookback before the window.
func preload(ctx context.Context, cfg *store.Config, src interfaces.MarketData, from, to time.Time) (*marketdata.Replay, error) {
	data := marketdata.NewReplay()
	intraFrom := from.AddDate(0, 0, -cfg.Engine.IntradayDays)
	if err := data.Preload(ctx, src, cfg.Instruments, []string{cfg.Engine.IntradayInterval}, intraFrom, to); err != nil {
		return nil, err
	}

	daily := append([]string{}, cfg.Instruments...)
	daily = append(daily, cfg.Engine.Peers...)
	if cfg.Engine.Reference != "" {
		daily = append(daily, cfg.Engine.Reference)
	}
	dailyFrom := from.AddDate(0, 0, -cfg.Engine.DailyDays)
	if err := data.Preload(ctx, src, daily, []string{types.IntervalDay}, dailyFrom, to); err != nil {
		return nil, err
	}
	return data, nil
}

func run(ctx context.Context, configPath, fromStr, toStr string, every int, out string) (*backtest.Report, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	from, to, err := parseWindow(fromStr, toStr)
	if err != nil {
		return nil, err
	}

	src, closeSrc, err := source(ctx, cfg)
	defer closeSrc()
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Preloading bars", "source", cfg.DataSource, "from", from, "to", to)
	data, err := preload(ctx, cfg, src, from, to)
	if err != nil {
		return nil, fmt.Errorf("preload bars: %w", err)
	}

	// Replays start from a clean risk state so runs are repeatable.
	stateDir := filepath.Join(out, "state")
	if err := os.RemoveAll(stateDir); err != nil {
		return nil, err
	}
	st, err := statestore.NewFileStore(stateDir)
	if err != nil {
		return nil, err
	}
	rm, err := risk.Load(ctx, cfg.Risk, st, nil)
	if err != nil {
		return nil, err
	}

	// Scraping is skipped so the replay does not depend on the network.
	evcfg := cfg.Events
	evcfg.URL = ""
	cal, err := events.Load(ctx, evcfg)
	if err != nil {
		return nil, err
	}

	cache := pricecache.New(0)
	ex := paper.NewExecutor(cfg.Paper.Executor, cache)
	eng := engine.New(cfg.Engine, engine.Deps{
		Regime:     regime.NewSet(cfg.Regime, nil),
		Risk:       rm,
		Treasury:   paper.NewTreasury(cfg.Paper.Treasury, ex),
		Strategist: paper.NewStrategist(cfg.Paper.Lots),
		Executor:   ex,
		Data:       data,
		Quotes:     cache,
		Calendar:   cal,
		Policy:     &retry.Policy{MaxAttempts: 1},
	})

	logs := tradelog.New(filepath.Join(out, "logs"))
	replay := backtest.New(backtest.Config{
		Instruments: cfg.Instruments,
		Interval:    cfg.Engine.IntradayInterval,
		From:        from,
		To:          to,
		Every:       every,
	}, eng, data, cache, logs)

	rep, err := replay.Run(ctx)
	if rep != nil {
		logger.Info(ctx, "Backtest finished",
			"iterations", rep.Iterations,
			"entries", rep.Entries,
			"exits", rep.Exits,
			"realized_pnl", rep.RealizedPnL,
			"closed", len(ex.Closed()),
		)
	}
	return rep, err
}
