package regime

import (
	"github.com/creasty/defaults"

	"regime-trader/internal/abnormality"
	"regime-trader/internal/dc"
	"regime-trader/internal/indicators"
)

// Thresholds holds every cut-off used by the confluence triggers, the
// decision ladder and the safety gate.
type Thresholds struct {
	// chaos triggers
	VolPercentileHigh float64 `yaml:"vol_percentile_high" default:"75" validate:"gt=0,lte=100"`
	LowVolPercentile  float64 `yaml:"low_vol_percentile" default:"40" validate:"gte=0,lte=100"`
	CorrSpike         float64 `yaml:"corr_spike" default:"0.85" validate:"gt=0,lte=1"`
	CorrSpikeLowVol   float64 `yaml:"corr_spike_low_vol" default:"0.92" validate:"gt=0,lte=1"`
	CorrExtreme       float64 `yaml:"corr_extreme" default:"0.95" validate:"gt=0,lte=1"`
	TrendChaos        float64 `yaml:"trend_chaos" default:"40" validate:"gt=0"`
	BandExpansion     float64 `yaml:"band_expansion" default:"1.5" validate:"gt=0"`
	VolumeSurge       float64 `yaml:"volume_surge" default:"2.0" validate:"gt=0"`

	// range triggers
	TrendWeak          float64 `yaml:"trend_weak" default:"15" validate:"gt=0"`
	BandContraction    float64 `yaml:"band_contraction" default:"0.8" validate:"gt=0"`
	MomentumNeutralLow float64 `yaml:"momentum_neutral_low" default:"40" validate:"gte=0,lte=100"`
	MomentumNeutralHi  float64 `yaml:"momentum_neutral_high" default:"60" validate:"gte=0,lte=100"`
	VolPercentileLow   float64 `yaml:"vol_percentile_low" default:"30" validate:"gte=0,lte=100"`
	RVIVThetaFriendly  float64 `yaml:"rv_iv_theta_friendly" default:"0.8" validate:"gt=0"`
	VolumeLow          float64 `yaml:"volume_low" default:"0.7" validate:"gt=0"`

	// decision ladder
	RangeTrendMax      float64 `yaml:"range_trend_max" default:"20" validate:"gt=0"`
	RangeVolPercentile float64 `yaml:"range_vol_percentile" default:"50" validate:"gte=0,lte=100"`
	MomentumOversold   float64 `yaml:"momentum_oversold" default:"30" validate:"gte=0,lte=100"`
	MomentumOverbought float64 `yaml:"momentum_overbought" default:"70" validate:"gte=0,lte=100"`
	TrendMin           float64 `yaml:"trend_min" default:"25" validate:"gt=0"`
	TrendConfirm       float64 `yaml:"trend_confirm" default:"30" validate:"gt=0"`

	// external classifier
	MLOverride      float64 `yaml:"ml_override" default:"0.7" validate:"gt=0,lte=1"`
	MLChaosOverride float64 `yaml:"ml_chaos_override" default:"0.85" validate:"gt=0,lte=1"`
}

const (
	DayModeCalendar = "calendar"
	DayModeTrading  = "trading"
)

type HysteresisConfig struct {
	// DayMode decides whether weekends and Holidays break a streak.
	DayMode  string   `yaml:"day_mode" default:"calendar" validate:"oneof=calendar trading"`
	Holidays []string `yaml:"holidays" validate:"dive,datetime=2006-01-02"`
	// VetoDays is the streak length that sets the short-vol veto.
	VetoDays int `yaml:"veto_days" default:"2" validate:"gte=1"`
}

type Config struct {
	MinIntradayBars   int `yaml:"min_intraday_bars" default:"30" validate:"gt=0"`
	MinDailyBars      int `yaml:"min_daily_bars" default:"20" validate:"gt=0"`
	SentimentLookback int `yaml:"sentiment_lookback" default:"20" validate:"gt=0"`
	// MLEpisodes caps the DC events sent to the external classifier.
	MLEpisodes int `yaml:"ml_episodes" default:"10" validate:"gte=0"`

	Thresholds  Thresholds              `yaml:"thresholds"`
	Hysteresis  HysteresisConfig        `yaml:"hysteresis"`
	Indicators  indicators.Config       `yaml:"indicators"`
	DC          dc.Config               `yaml:"dc"`
	Abnormality abnormality.Config      `yaml:"abnormality"`
	Alarm       abnormality.AlarmConfig `yaml:"alarm"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

func DefaultThresholds() Thresholds {
	var t Thresholds
	_ = defaults.Set(&t)
	return t
}
