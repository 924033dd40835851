package types

import "time"

type Regime string

const (
	RegimeRangeBound    Regime = "RANGE_BOUND"
	RegimeMeanReversion Regime = "MEAN_REVERSION"
	RegimeTrend         Regime = "TREND"
	RegimeChaos         Regime = "CHAOS"
	RegimeCaution       Regime = "CAUTION"
	RegimeUnknown       Regime = "UNKNOWN"
)

// ParseRegime maps a label to a Regime, returning UNKNOWN for anything else.
func ParseRegime(s string) Regime {
	switch r := Regime(s); r {
	case RegimeRangeBound, RegimeMeanReversion, RegimeTrend, RegimeChaos, RegimeCaution:
		return r
	default:
		return RegimeUnknown
	}
}

// Volatility estimator names reported in RegimeMetrics.VolEstimator.
const (
	VolEstimatorReference = "reference"
	VolEstimatorProxy     = "realized_proxy"
	VolEstimatorDefault   = "default"
)

// RegimeMetrics is the indicator snapshot fed to the classifier. Every field
// holds a finite value; missing inputs produce the neutral defaults.
type RegimeMetrics struct {
	TrendStrength  float64 `json:"trend_strength"`
	Momentum       float64 `json:"momentum"`
	ATR            float64 `json:"atr"`
	RealizedVol    float64 `json:"realized_vol"`
	VolPercentile  float64 `json:"vol_percentile"`
	VolEstimator   string  `json:"vol_estimator"`
	BandWidthRatio float64 `json:"band_width_ratio"`
	VolumeRatio    float64 `json:"volume_ratio"`
	ImpliedVol     float64 `json:"implied_vol,omitempty"`
	RVIVRatio      float64 `json:"rv_iv_ratio,omitempty"`
}

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// DCEvent is one directional-change episode.
type DCEvent struct {
	StartIdx   int       `json:"start_idx"`
	EndIdx     int       `json:"end_idx"`
	StartTs    time.Time `json:"start_ts"`
	EndTs      time.Time `json:"end_ts"`
	StartPrice float64   `json:"start_price"`
	EndPrice   float64   `json:"end_price"`
	Direction  Direction `json:"direction"`
	T          int       `json:"t"`
	TMV        float64   `json:"tmv"`
	TAR        float64   `json:"tar"`
}

type TriggerCategory string

const (
	CategoryChaos TriggerCategory = "chaos"
	CategoryRange TriggerCategory = "range"
)

// Trigger is one weighted boolean evaluation of the confluence score.
type Trigger struct {
	Name     string          `json:"name"`
	Category TriggerCategory `json:"category"`
	Weight   float64         `json:"weight"`
	Fired    bool            `json:"fired"`
	Detail   string          `json:"detail,omitempty"`
}

type ConfluenceScore struct {
	Triggers []Trigger `json:"triggers"`
}

func (c ConfluenceScore) count(cat TriggerCategory) int {
	n := 0
	for _, t := range c.Triggers {
		if t.Category == cat && t.Fired {
			n++
		}
	}
	return n
}

func (c ConfluenceScore) weighted(cat TriggerCategory) float64 {
	s := 0.0
	for _, t := range c.Triggers {
		if t.Category == cat && t.Fired {
			s += t.Weight
		}
	}
	return s
}

func (c ConfluenceScore) ChaosTriggers() int { return c.count(CategoryChaos) }
func (c ConfluenceScore) RangeTriggers() int { return c.count(CategoryRange) }
func (c ConfluenceScore) ChaosWeighted() float64 { return c.weighted(CategoryChaos) }
func (c ConfluenceScore) RangeWeighted() float64 { return c.weighted(CategoryRange) }

// Fired reports whether the named trigger fired.
func (c ConfluenceScore) Fired(name string) bool {
	for _, t := range c.Triggers {
		if t.Name == name {
			return t.Fired
		}
	}
	return false
}

// FiredNames lists the fired triggers of a category in evaluation order.
func (c ConfluenceScore) FiredNames(cat TriggerCategory) []string {
	var out []string
	for _, t := range c.Triggers {
		if t.Category == cat && t.Fired {
			out = append(out, t.Name)
		}
	}
	return out
}

// RegimePacket is the classifier output for one call.
type RegimePacket struct {
	Instrument         string             `json:"instrument"`
	AsOf               time.Time          `json:"as_of"`
	Regime             Regime             `json:"regime"`
	Confidence         float64            `json:"confidence"`
	Metrics            RegimeMetrics      `json:"metrics"`
	Confluence         ConfluenceScore    `json:"confluence"`
	Correlations       map[string]float64 `json:"correlations,omitempty"`
	EventBlackout      bool               `json:"event_blackout"`
	PNormal            float64            `json:"p_normal"`
	PAbnormal          float64            `json:"p_abnormal"`
	AlarmActive        bool               `json:"alarm_active"`
	Sentiment          float64            `json:"sentiment"`
	MLRegime           Regime             `json:"ml_regime,omitempty"`
	MLProbability      float64            `json:"ml_probability,omitempty"`
	IsSafe             bool               `json:"is_safe"`
	Reasons            []string           `json:"reasons,omitempty"`
	VetoShortVol       bool               `json:"veto_shortvol"`
	WarningState       bool               `json:"warning_state"`
	SustainedChaosDays int                `json:"sustained_chaos_days"`
	Spot               float64            `json:"spot"`
	PrevClose          float64            `json:"prev_close"`
	DayRange           float64            `json:"day_range"`
	GapPct             float64            `json:"gap_pct"`
}

// RegimeInputs is everything one classification reads. Series must end at
// or before AsOf.
type RegimeInputs struct {
	Instrument    string
	AsOf          time.Time
	Intraday      []Bar
	Daily         []Bar
	Reference     []Bar
	ImpliedVol    float64
	Correlations  map[string]float64
	EventBlackout bool
}

// FeatureVector is what an external classifier scores.
type FeatureVector struct {
	Instrument     string        `json:"instrument"`
	AsOf           time.Time     `json:"as_of"`
	Metrics        RegimeMetrics `json:"metrics"`
	ChaosTriggers  int           `json:"chaos_triggers"`
	RangeTriggers  int           `json:"range_triggers"`
	PAbnormal      float64       `json:"p_abnormal"`
	Sentiment      float64       `json:"sentiment"`
	EventBlackout  bool          `json:"event_blackout"`
	MaxCorrelation float64       `json:"max_correlation"`

	// DCEpisodes holds (T, TMV, TAR) of the latest confirmed directional
	// change events, min-max scaled across the window.
	DCEpisodes  [][3]float64 `json:"dc_episodes,omitempty"`
	DCDirection Direction    `json:"dc_direction,omitempty"`
	DCTrendBars int          `json:"dc_trend_bars,omitempty"`
}
