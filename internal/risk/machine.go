// Package risk owns the persisted account risk state: daily/weekly/monthly
// P&L, streak-based sizing, the circuit breaker and slippage alerts. Every
// mutation is written to the state store before the method returns.
package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/creasty/defaults"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/metrics"
	"regime-trader/internal/statestore"
	"regime-trader/internal/types"
)

var _ interfaces.RiskMachine = (*Machine)(nil)

type Config struct {
	StateKey          string  `yaml:"state_key" default:"risk_state" validate:"required"`
	LoserThreshold    int     `yaml:"loser_threshold" default:"3" validate:"gte=1"`
	WinnerThreshold   int     `yaml:"winner_threshold" default:"3" validate:"gte=1"`
	FlatDays          int     `yaml:"flat_days" default:"2" validate:"gte=1"`
	LoserReduction    float64 `yaml:"loser_reduction" default:"0.5" validate:"gt=0,lte=1"`
	WinStreakCap      float64 `yaml:"win_streak_cap" default:"0.8" validate:"gt=0,lte=1"`
	SlippageWarning   float64 `yaml:"slippage_warning" default:"0.005" validate:"gt=0"`
	SlippageCritical  float64 `yaml:"slippage_critical" default:"0.01" validate:"gtfield=SlippageWarning"`
	MaxTradeResults   int     `yaml:"max_trade_results" default:"10" validate:"gte=1"`
	MaxSlippageAlerts int     `yaml:"max_slippage_alerts" default:"50" validate:"gte=1"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

var ist = time.FixedZone("IST", 5*3600+30*60)

// Machine is the only writer of RiskState.
type Machine struct {
	mu    sync.Mutex
	cfg   Config
	store interfaces.StateStore
	state types.RiskState
	rec   *metrics.Recorder
	now   func() time.Time
}

// Load reads the persisted state or starts from defaults when none exists.
// A blob that exists but cannot be decoded is an error; callers treat it as
// fatal at startup.
func Load(ctx context.Context, cfg Config, store interfaces.StateStore, rec *metrics.Recorder) (*Machine, error) {
	m := &Machine{cfg: cfg, store: store, rec: rec, now: time.Now}

	blob, err := store.Load(ctx, cfg.StateKey)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
		logger.Info(ctx, "No persisted risk state, starting fresh", "key", cfg.StateKey)
	case err != nil:
		return nil, fmt.Errorf("risk: load state: %w", err)
	default:
		if err := json.Unmarshal(blob, &m.state); err != nil {
			return nil, fmt.Errorf("risk: decode state %s: %w", cfg.StateKey, err)
		}
		logger.Info(ctx, "Risk state loaded",
			"key", cfg.StateKey,
			"breaker", m.state.CircuitBreakerActive,
			"flat_days", m.state.FlatDaysRemaining,
			"consecutive_losers", m.state.ConsecutiveLosers,
			"drawdown", m.state.Drawdown(),
		)
	}
	m.rec.RecordRisk(m.state.CircuitBreakerActive, m.state.ConsecutiveLosers, m.state.Drawdown())
	return m, nil
}

// persist must be called with mu held.
func (m *Machine) persist(ctx context.Context) error {
	m.state.UpdatedAt = m.now().UTC()
	blob, err := json.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("risk: encode state: %w", err)
	}
	if err := m.store.Save(ctx, m.cfg.StateKey, blob); err != nil {
		return fmt.Errorf("risk: persist state: %w", err)
	}
	m.rec.RecordRisk(m.state.CircuitBreakerActive, m.state.ConsecutiveLosers, m.state.Drawdown())
	return nil
}

// commit persists the mutated state, putting prev back when the save
// fails so memory never runs ahead of the store. Must be called with mu held.
func (m *Machine) commit(ctx context.Context, prev types.RiskState) error {
	if err := m.persist(ctx); err != nil {
		m.state = prev
		return err
	}
	return nil
}

// copyState must be called with mu held.
func (m *Machine) copyState() types.RiskState {
	s := m.state
	s.TradeResults = append([]types.TradeResult(nil), m.state.TradeResults...)
	s.SlippageAlerts = append([]types.SlippageAlert(nil), m.state.SlippageAlerts...)
	return s
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() types.RiskState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.copyState()
}

// ResetDaily starts a new trading day for date (IST). A second call for
// the same date is a no-op and returns false.
//
// On a new date it zeroes daily P&L and slippage, rolls the weekly and
// monthly P&L when their period changed, and takes at most one day off the
// flat-day counter, clearing the breaker when the counter reaches zero.
func (m *Machine) ResetDaily(ctx context.Context, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := date.In(ist)
	key := d.Format("2006-01-02")
	if key == m.state.LastResetDate {
		return false, nil
	}
	prev := m.copyState()

	y, w := d.ISOWeek()
	week := fmt.Sprintf("%04d-W%02d", y, w)
	month := d.Format("2006-01")

	m.state.DailyPnL = 0
	m.state.TotalSlippageToday = 0
	if week != m.state.WeekKey {
		m.state.WeeklyPnL = 0
		m.state.WeekKey = week
	}
	if month != m.state.MonthKey {
		m.state.MonthlyPnL = 0
		m.state.MonthKey = month
	}

	if m.state.FlatDaysRemaining > 0 {
		m.state.FlatDaysRemaining--
		if m.state.FlatDaysRemaining == 0 && m.state.CircuitBreakerActive {
			logger.Risk(ctx, "CIRCUIT_BREAKER_CLEARED", "date", key, "reason", m.state.CircuitBreakerReason)
			m.state.CircuitBreakerActive = false
			m.state.CircuitBreakerReason = ""
		}
	}
	m.state.LastResetDate = key
	if err := m.commit(ctx, prev); err != nil {
		return false, err
	}
	return true, nil
}

// RecordTradeResult books a closed trade.
//
// Parameters:
//   - pnl: realized P&L of the trade; zero counts as a loss
//   - at: fill time, stored in the bounded result history
//
// Returns the streak counters and the actions this result triggered.
func (m *Machine) RecordTradeResult(ctx context.Context, pnl float64, at time.Time) (types.TradeUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.copyState()
	s := &m.state
	s.DailyPnL += pnl
	s.WeeklyPnL += pnl
	s.MonthlyPnL += pnl
	s.CumulativePnL += pnl
	s.HighWatermark = math.Max(s.HighWatermark, s.CumulativePnL)

	s.TradeResults = append(s.TradeResults, types.TradeResult{PnL: pnl, Time: at})
	if over := len(s.TradeResults) - m.cfg.MaxTradeResults; over > 0 {
		s.TradeResults = append([]types.TradeResult(nil), s.TradeResults[over:]...)
	}

	var up types.TradeUpdate
	if pnl > 0 {
		s.ConsecutiveWinners++
		s.ConsecutiveLosers = 0
		s.LosersReductionActive = false
		if s.ConsecutiveWinners >= m.cfg.WinnerThreshold && !s.WinStreakCapActive {
			s.WinStreakCapActive = true
			up.WinCapActivated = true
			logger.Risk(ctx, "WIN_STREAK_CAP", "consecutive_winners", s.ConsecutiveWinners)
		}
	} else {
		s.ConsecutiveLosers++
		s.ConsecutiveWinners = 0
		s.WinStreakCapActive = false
		if s.ConsecutiveLosers >= m.cfg.LoserThreshold {
			if !s.LosersReductionActive {
				s.LosersReductionActive = true
				up.ReductionActivated = true
			}
			if !s.CircuitBreakerActive {
				m.activate(ctx, fmt.Sprintf("%d consecutive losing trades", s.ConsecutiveLosers), m.cfg.FlatDays)
				up.BreakerActivated = true
			}
		}
	}
	up.ConsecutiveLosers = s.ConsecutiveLosers
	up.ConsecutiveWinners = s.ConsecutiveWinners
	if err := m.commit(ctx, prev); err != nil {
		return types.TradeUpdate{}, err
	}
	return up, nil
}

// SizingMultiplier is the loser reduction when active, else the win-streak
// cap when active, else 1.
func (m *Machine) SizingMultiplier() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.state.LosersReductionActive:
		return m.cfg.LoserReduction
	case m.state.WinStreakCapActive:
		return m.cfg.WinStreakCap
	default:
		return 1
	}
}

// ActivateCircuitBreaker halts entries for flatDays days. A flatDays of
// zero or less uses the configured count.
func (m *Machine) ActivateCircuitBreaker(ctx context.Context, reason string, flatDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if flatDays <= 0 {
		flatDays = m.cfg.FlatDays
	}
	prev := m.copyState()
	m.activate(ctx, reason, flatDays)
	return m.commit(ctx, prev)
}

func (m *Machine) activate(ctx context.Context, reason string, flatDays int) {
	m.state.CircuitBreakerActive = true
	m.state.CircuitBreakerReason = reason
	if flatDays > m.state.FlatDaysRemaining {
		m.state.FlatDaysRemaining = flatDays
	}
	logger.Risk(ctx, "CIRCUIT_BREAKER_ACTIVATED",
		"reason", reason,
		"flat_days", m.state.FlatDaysRemaining,
		"drawdown", m.state.Drawdown(),
	)
}

func (m *Machine) IsCircuitBreakerActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CircuitBreakerActive
}

// RecordSlippage compares a fill with its expected price. It returns the
// alert when the relative deviation crosses the warning or critical level,
// nil otherwise. The absolute deviation is always added to today's total.
func (m *Machine) RecordSlippage(ctx context.Context, expected, actual float64, symbol string, at time.Time) (*types.SlippageAlert, error) {
	if expected <= 0 || math.IsNaN(actual) {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.copyState()
	dev := math.Abs(actual-expected) / expected
	m.state.TotalSlippageToday += math.Abs(actual - expected)

	level := types.SlippageNone
	switch {
	case dev >= m.cfg.SlippageCritical:
		level = types.SlippageCritical
	case dev >= m.cfg.SlippageWarning:
		level = types.SlippageWarning
	}

	var alert *types.SlippageAlert
	if level != types.SlippageNone {
		a := types.SlippageAlert{Symbol: symbol, Expected: expected, Actual: actual, Deviation: dev, Level: level, Time: at}
		m.state.SlippageAlerts = append(m.state.SlippageAlerts, a)
		if over := len(m.state.SlippageAlerts) - m.cfg.MaxSlippageAlerts; over > 0 {
			m.state.SlippageAlerts = append([]types.SlippageAlert(nil), m.state.SlippageAlerts[over:]...)
		}
		alert = &a
		logger.Risk(ctx, "SLIPPAGE_"+string(level), "symbol", symbol, "expected", expected, "actual", actual, "deviation", dev)
	}
	if err := m.commit(ctx, prev); err != nil {
		return nil, err
	}
	if alert != nil {
		m.rec.RecordSlippageAlert(string(alert.Level))
	}
	return alert, nil
}
