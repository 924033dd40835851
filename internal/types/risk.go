package types

import "time"

type TradeResult struct {
	PnL  float64   `json:"pnl"`
	Time time.Time `json:"time"`
}

type SlippageLevel string

const (
	SlippageNone     SlippageLevel = ""
	SlippageWarning  SlippageLevel = "WARNING"
	SlippageCritical SlippageLevel = "CRITICAL"
)

type SlippageAlert struct {
	Symbol    string        `json:"symbol"`
	Expected  float64       `json:"expected"`
	Actual    float64       `json:"actual"`
	Deviation float64       `json:"deviation"`
	Level     SlippageLevel `json:"level"`
	Time      time.Time     `json:"time"`
}

// RiskState is the persisted account-level risk state.
type RiskState struct {
	DailyPnL      float64 `json:"daily_pnl"`
	WeeklyPnL     float64 `json:"weekly_pnl"`
	MonthlyPnL    float64 `json:"monthly_pnl"`
	CumulativePnL float64 `json:"cumulative_pnl"`
	HighWatermark float64 `json:"high_watermark"`

	FlatDaysRemaining    int    `json:"flat_days_remaining"`
	CircuitBreakerActive bool   `json:"circuit_breaker_active"`
	CircuitBreakerReason string `json:"circuit_breaker_reason,omitempty"`

	ConsecutiveLosers     int  `json:"consecutive_losers"`
	ConsecutiveWinners    int  `json:"consecutive_winners"`
	LosersReductionActive bool `json:"losers_reduction_active"`
	WinStreakCapActive    bool `json:"win_streak_cap_active"`

	TradeResults       []TradeResult   `json:"trade_results"`
	SlippageAlerts     []SlippageAlert `json:"slippage_alerts"`
	TotalSlippageToday float64         `json:"total_slippage_today"`

	LastResetDate string    `json:"last_reset_date,omitempty"`
	WeekKey       string    `json:"week_key,omitempty"`
	MonthKey      string    `json:"month_key,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Drawdown is the distance of cumulative P&L below its high-watermark.
func (s RiskState) Drawdown() float64 {
	if d := s.HighWatermark - s.CumulativePnL; d > 0 {
		return d
	}
	return 0
}

// TradeUpdate reports the streak counters after a trade result and the
// actions it newly triggered.
type TradeUpdate struct {
	ConsecutiveLosers  int  `json:"consecutive_losers"`
	ConsecutiveWinners int  `json:"consecutive_winners"`
	BreakerActivated   bool `json:"breaker_activated"`
	ReductionActivated bool `json:"reduction_activated"`
	WinCapActivated    bool `json:"win_cap_activated"`
}
