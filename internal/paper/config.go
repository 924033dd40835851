// Package paper holds in-process reference collaborators: a Treasury with
// simple margin and loss-limit rules, an Executor that fills at cached
// prices, and a table-driven Strategist. They let the live and replay hosts
// run end to end without a broker account.
package paper

import (
	"time"

	"github.com/creasty/defaults"
)

var ist = time.FixedZone("IST", 19800)

type TreasuryConfig struct {
	Capital          float64 `yaml:"capital" default:"1000000" validate:"gt=0"`
	MaxOpen          int     `yaml:"max_open" default:"3" validate:"gt=0"`
	MaxLotsPerTrade  int     `yaml:"max_lots_per_trade" default:"5" validate:"gt=0"`
	MarginPerLot     float64 `yaml:"margin_per_lot" default:"120000" validate:"gt=0"`
	HedgedMarginMult float64 `yaml:"hedged_margin_mult" default:"0.35" validate:"gt=0,lte=1"`
	// Loss limits as a fraction of capital.
	DailyLossLimit  float64 `yaml:"daily_loss_limit" default:"0.02" validate:"gt=0,lt=1"`
	WeeklyLossLimit float64 `yaml:"weekly_loss_limit" default:"0.05" validate:"gt=0,lt=1"`
	DailyFlatDays   int     `yaml:"daily_flat_days" default:"1" validate:"gte=1"`
	WeeklyFlatDays  int     `yaml:"weekly_flat_days" default:"2" validate:"gte=1"`
}

type ExecutorConfig struct {
	LotSizes       map[string]int `yaml:"lot_sizes"`
	DefaultLotSize int            `yaml:"default_lot_size" default:"1" validate:"gt=0"`
	SlippageBps    float64        `yaml:"slippage_bps" default:"2" validate:"gte=0"`
	TickSize       float64        `yaml:"tick_size" default:"0.05" validate:"gt=0"`
	// StopPct and TargetPct are moves of the underlying, in percent.
	StopPct   float64 `yaml:"stop_pct" default:"1.0" validate:"gt=0"`
	TargetPct float64 `yaml:"target_pct" default:"1.5" validate:"gt=0"`
	// NeutralBandPct is the move a neutral structure absorbs before losing.
	NeutralBandPct float64 `yaml:"neutral_band_pct" default:"0.5" validate:"gt=0"`
}

type Config struct {
	Treasury TreasuryConfig `yaml:"treasury"`
	Executor ExecutorConfig `yaml:"executor"`
	// Lots is the base size the Strategist proposes.
	Lots int `yaml:"lots" default:"2" validate:"gt=0"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}
