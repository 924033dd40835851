// Package abnormality estimates the probability that recent
// directional-change episodes come from an abnormal market state.
package abnormality

import (
	"math"
	"time"

	"github.com/creasty/defaults"

	"regime-trader/internal/types"
)

const (
	BackendHMM      = "hmm"
	BackendFallback = "fallback"
)

type Config struct {
	Window     int     `yaml:"window" default:"60" validate:"gt=0"`
	MinSamples int     `yaml:"min_samples" default:"20" validate:"gte=4"`
	MaxIter    int     `yaml:"max_iter" default:"30" validate:"gt=0"`
	Tolerance  float64 `yaml:"tolerance" default:"0.000001" validate:"gt=0"`

	// deterministic fallback score
	Prior          float64 `yaml:"prior" default:"0.1" validate:"gte=0,lte=1"`
	ShortT         int     `yaml:"short_t" default:"5" validate:"gt=0"`
	ShortTWeight   float64 `yaml:"short_t_weight" default:"0.3" validate:"gte=0"`
	LargeTAR       float64 `yaml:"large_tar" default:"0.002" validate:"gt=0"`
	LargeTARWeight float64 `yaml:"large_tar_weight" default:"0.35" validate:"gte=0"`
	TMVExtreme     float64 `yaml:"tmv_extreme" default:"0.1" validate:"gte=0,lt=0.5"`
	TMVWeight      float64 `yaml:"tmv_weight" default:"0.15" validate:"gte=0"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

type Result struct {
	PNormal   float64 `json:"p_normal"`
	PAbnormal float64 `json:"p_abnormal"`
	Backend   string  `json:"backend"`
	Samples   int     `json:"samples"`
}

// Classifier keeps a bounded buffer of episodes and refits the two-state
// model on every Classify call. One instance per instrument.
type Classifier struct {
	cfg     Config
	buf     []types.DCEvent
	lastEnd time.Time
}

func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Observe appends events that end after the newest buffered event, so the
// same batch can be passed on every call.
func (c *Classifier) Observe(events []types.DCEvent) {
	for _, ev := range events {
		if !c.lastEnd.IsZero() && !ev.EndTs.After(c.lastEnd) {
			continue
		}
		c.buf = append(c.buf, ev)
		c.lastEnd = ev.EndTs
	}
	if over := len(c.buf) - c.cfg.Window; over > 0 {
		c.buf = append([]types.DCEvent(nil), c.buf[over:]...)
	}
}

func (c *Classifier) Samples() int {
	return len(c.buf)
}

func (c *Classifier) Reset() {
	c.buf = nil
	c.lastEnd = time.Time{}
}

func (c *Classifier) Classify() Result {
	if len(c.buf) >= c.cfg.MinSamples {
		obs := make([][nFeatures]float64, len(c.buf))
		for i, ev := range c.buf {
			obs[i] = [nFeatures]float64{float64(ev.T), ev.TMV, ev.TAR}
		}
		last, abnormal, err := fitHMM(obs, c.cfg.MaxIter, c.cfg.Tolerance)
		if err == nil {
			return result(last[abnormal], BackendHMM, len(c.buf))
		}
	}

	var latest *types.DCEvent
	if len(c.buf) > 0 {
		latest = &c.buf[len(c.buf)-1]
	}
	return result(c.fallbackScore(latest), BackendFallback, len(c.buf))
}

func result(pAbnormal float64, backend string, n int) Result {
	pAbnormal = clip01(pAbnormal)
	return Result{PNormal: 1 - pAbnormal, PAbnormal: pAbnormal, Backend: backend, Samples: n}
}

// fallbackScore is prior plus fixed weights for a short episode, a large
// time-adjusted return and a volume peak at either end of the episode.
func (c *Classifier) fallbackScore(ev *types.DCEvent) float64 {
	score := c.cfg.Prior
	if ev == nil {
		return score
	}
	if ev.T < c.cfg.ShortT {
		score += c.cfg.ShortTWeight
	}
	if math.Abs(ev.TAR) > c.cfg.LargeTAR {
		score += c.cfg.LargeTARWeight
	}
	if ev.TMV <= c.cfg.TMVExtreme || ev.TMV >= 1-c.cfg.TMVExtreme {
		score += c.cfg.TMVWeight
	}
	return score
}

func clip01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
