package zerodha

import (
	"context"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"
	kiteticker "github.com/zerodha/gokiteconnect/v4/ticker"

	"regime-trader/internal/logger"
	"regime-trader/internal/types"
)

// setupEventHandlers configures all WebSocket event callbacks
func (tm *TickerManager) setupEventHandlers(t *kiteticker.Ticker) {
	t.OnConnect(tm.onConnect)
	t.OnError(tm.onError)
	t.OnClose(tm.onClose)
	t.OnReconnect(tm.onReconnect)
	t.OnNoReconnect(tm.onNoReconnect)
	t.OnTick(tm.onTick)
	t.OnOrderUpdate(tm.onOrderUpdate)
}

// onConnect resubscribes everything, which also covers reconnects.
func (tm *TickerManager) onConnect() {
	ctx := context.Background()
	tm.mu.Lock()
	tm.connected = true
	tokens := append([]uint32(nil), tm.tokens...)
	tm.mu.Unlock()

	logger.Info(ctx, "WebSocket connected successfully", "tokens", len(tokens))
	if err := tm.subscribe(tokens); err != nil {
		logger.ErrorWithErr(ctx, "Resubscribe after connect failed", err)
	}
}

func (tm *TickerManager) onError(err error) {
	logger.ErrorWithErr(context.Background(), "WebSocket error occurred", err)
}

func (tm *TickerManager) onClose(code int, reason string) {
	tm.mu.Lock()
	tm.connected = false
	tm.mu.Unlock()
	logger.Warn(context.Background(), "WebSocket connection closed",
		"code", code,
		"reason", reason,
	)
}

func (tm *TickerManager) onReconnect(attempt int, delay time.Duration) {
	logger.Info(context.Background(), "WebSocket reconnecting",
		"attempt", attempt,
		"delay", delay,
	)
}

func (tm *TickerManager) onNoReconnect(attempt int) {
	logger.Warn(context.Background(), "WebSocket reconnection failed - giving up",
		"attempts", attempt,
	)
}

func (tm *TickerManager) onTick(tick models.Tick) {
	symbol := tm.mapper.getSymbol(tick.InstrumentToken)
	if symbol == "" || tick.LastPrice <= 0 {
		return
	}
	tm.cache.Update(tickToQuote(symbol, tick))
	tm.rec.RecordTick(tickSource, symbol, tick.LastPrice)
}

func (tm *TickerManager) onOrderUpdate(order kiteconnect.Order) {
	logger.Debug(context.Background(), "Order update received",
		"order_id", order.OrderID,
		"status", order.Status,
		"symbol", order.TradingSymbol,
	)
}

// tickToQuote stamps the quote with the exchange time, falling back to the
// last trade time and then to the receive time for index ticks that carry
// neither.
func tickToQuote(symbol string, tick models.Tick) types.Quote {
	ts := tick.Timestamp.Time
	if ts.IsZero() {
		ts = tick.LastTradeTime.Time
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	return types.Quote{
		Instrument: symbol,
		LastPrice:  tick.LastPrice,
		Volume:     float64(tick.VolumeTraded),
		Ts:         ts,
	}
}
