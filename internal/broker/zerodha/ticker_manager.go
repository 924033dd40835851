package zerodha

import (
	"context"
	"fmt"
	"strings"
	"sync"

	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/metrics"
	"regime-trader/internal/pricecache"
)

const tickSource = "kite"

// TickerManager streams Kite websocket ticks into the price cache. It is
// the cache's only writer while it runs.
type TickerManager struct {
	apiKey      string
	accessToken string
	mapper      *instrumentMapper
	cache       *pricecache.Cache
	rec         *metrics.Recorder

	mu        sync.Mutex
	ticker    *kiteticker.Ticker
	connected bool
	tokens    []uint32
}

var _ interfaces.TickSource = (*TickerManager)(nil)

func NewTickerManager(p Params, cache *pricecache.Cache, rec *metrics.Recorder) *TickerManager {
	return &TickerManager{
		apiKey:      p.APIKey,
		accessToken: p.AccessToken,
		mapper:      newInstrumentMapper(p.Tokens),
		cache:       cache,
		rec:         rec,
	}
}

// Start connects the websocket in the background. The connection closes
// when ctx is done or Stop is called.
func (tm *TickerManager) Start(ctx context.Context) error {
	tm.mu.Lock()
	if tm.ticker != nil {
		tm.mu.Unlock()
		return nil
	}
	tm.ticker = kiteticker.New(tm.apiKey, tm.accessToken)
	t := tm.ticker
	tm.mu.Unlock()

	tm.setupEventHandlers(t)

	go func() {
		logger.Info(ctx, "Starting Zerodha WebSocket ticker")
		t.Serve()
	}()
	go func() {
		<-ctx.Done()
		tm.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

func (tm *TickerManager) Stop(ctx context.Context) {
	tm.mu.Lock()
	t := tm.ticker
	tm.ticker = nil
	tm.connected = false
	tm.mu.Unlock()

	// Stop may fire onClose, which takes the lock.
	if t != nil {
		logger.Info(ctx, "Stopping Zerodha WebSocket ticker")
		t.Stop()
	}
}

// Subscribe records the instruments and subscribes them now if the socket
// is connected, otherwise on the next connect.
func (tm *TickerManager) Subscribe(ctx context.Context, instruments []string) error {
	tokens, missing := tm.mapper.tokensFor(instruments)
	if len(missing) > 0 {
		return fmt.Errorf("no instrument token for %s", strings.Join(missing, ", "))
	}

	tm.mu.Lock()
	tm.tokens = append(tm.tokens, tokens...)
	connected := tm.connected
	tm.mu.Unlock()

	if connected {
		if err := tm.subscribe(tokens); err != nil {
			return err
		}
	}
	logger.Info(ctx, "Subscribed to instruments for live ticks", "instruments", instruments, "connected", connected)
	return nil
}

func (tm *TickerManager) subscribe(tokens []uint32) error {
	tm.mu.Lock()
	t := tm.ticker
	tm.mu.Unlock()
	if t == nil || len(tokens) == 0 {
		return nil
	}
	if err := t.Subscribe(tokens); err != nil {
		return fmt.Errorf("failed to subscribe to instruments: %w", err)
	}
	if err := t.SetMode(kiteticker.ModeFull, tokens); err != nil {
		return fmt.Errorf("failed to set ticker mode: %w", err)
	}
	return nil
}
