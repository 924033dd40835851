// Package dc segments a price series into alternating directional-change
// episodes.
package dc

import (
	"github.com/creasty/defaults"

	"regime-trader/internal/types"
)

type Config struct {
	Theta        float64 `yaml:"theta" default:"0.003" validate:"gt=0,lt=1"`
	MinBarWindow int     `yaml:"min_bar_window" default:"3" validate:"gte=1"`
	// InitWindow bounds the scan for the first extremum; 0 means no bound.
	InitWindow int `yaml:"init_window" default:"50" validate:"gte=0"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

type mode int

const (
	modeUnknown mode = iota
	modeUp
	modeDown
)

// Detector is a threshold-reversal state machine. It is not safe for
// concurrent use.
type Detector struct {
	cfg Config

	mode     mode
	startIdx int // extremum that opened the current episode
	extIdx   int // running extremum of the current episode
	hiIdx    int // pre-trend running high
	loIdx    int // pre-trend running low
	scanIdx  int // start of the current initial window
	events   []types.DCEvent
	bars     []types.Bar
}

func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Reset returns the detector to its empty state.
func (d *Detector) Reset() {
	d.mode = modeUnknown
	d.startIdx, d.extIdx, d.hiIdx, d.loIdx, d.scanIdx = 0, 0, 0, 0, 0
	d.events = nil
	d.bars = nil
}

// Detect resets the detector and returns the confirmed events of bars.
func (d *Detector) Detect(bars []types.Bar) []types.DCEvent {
	d.Reset()
	d.bars = bars
	for i := range bars {
		d.step(i)
	}
	out := make([]types.DCEvent, len(d.events))
	copy(out, d.events)
	return out
}

func (d *Detector) price(i int) float64 {
	return d.bars[i].Close
}

func (d *Detector) step(i int) {
	p := d.price(i)
	theta := d.cfg.Theta

	switch d.mode {
	case modeUnknown:
		if d.cfg.InitWindow > 0 && i-d.scanIdx >= d.cfg.InitWindow {
			// no reversal inside the initial window; restart the scan here
			d.scanIdx, d.hiIdx, d.loIdx = i, i, i
			return
		}
		if p > d.price(d.hiIdx) {
			d.hiIdx = i
		}
		if p < d.price(d.loIdx) {
			d.loIdx = i
		}
		switch {
		case d.price(d.loIdx) > 0 && p >= d.price(d.loIdx)*(1+theta) && d.loIdx < i:
			d.mode, d.startIdx, d.extIdx = modeUp, d.loIdx, i
		case p <= d.price(d.hiIdx)*(1-theta) && d.hiIdx < i:
			d.mode, d.startIdx, d.extIdx = modeDown, d.hiIdx, i
		}

	case modeUp:
		if p > d.price(d.extIdx) {
			d.extIdx = i
			return
		}
		if p <= d.price(d.extIdx)*(1-theta) {
			d.confirm(types.DirectionUp)
			d.mode, d.startIdx, d.extIdx = modeDown, d.extIdx, i
		}

	case modeDown:
		if p < d.price(d.extIdx) {
			d.extIdx = i
			return
		}
		if p >= d.price(d.extIdx)*(1+theta) {
			d.confirm(types.DirectionDown)
			d.mode, d.startIdx, d.extIdx = modeUp, d.extIdx, i
		}
	}
}

// confirm emits the episode startIdx..extIdx when it is long enough. Short
// episodes are dropped but the extremum still rolls forward.
func (d *Detector) confirm(dir types.Direction) {
	if d.extIdx-d.startIdx < d.cfg.MinBarWindow {
		return
	}
	d.events = append(d.events, d.event(d.startIdx, d.extIdx, dir))
}

func (d *Detector) event(start, end int, dir types.Direction) types.DCEvent {
	sp, ep := d.price(start), d.price(end)
	t := end - start

	peak := start
	for i := start; i <= end; i++ {
		if d.bars[i].Volume > d.bars[peak].Volume {
			peak = i
		}
	}

	ev := types.DCEvent{
		StartIdx:   start,
		EndIdx:     end,
		StartTs:    d.bars[start].Ts,
		EndTs:      d.bars[end].Ts,
		StartPrice: sp,
		EndPrice:   ep,
		Direction:  dir,
		T:          t,
	}
	if t > 0 {
		ev.TMV = float64(peak-start) / float64(t)
		if sp != 0 {
			ev.TAR = (ep - sp) / sp / float64(t)
		}
	}
	return ev
}

// Last returns the still-open episode if a trend is in progress, otherwise
// the last confirmed event.
func (d *Detector) Last() (types.DCEvent, bool) {
	if d.mode != modeUnknown && d.extIdx > d.startIdx {
		dir := types.DirectionUp
		if d.mode == modeDown {
			dir = types.DirectionDown
		}
		return d.event(d.startIdx, d.extIdx, dir), true
	}
	if len(d.events) > 0 {
		return d.events[len(d.events)-1], true
	}
	return types.DCEvent{}, false
}

// Normalized returns (T, TMV, TAR) of the last n confirmed events, each
// feature min-max scaled to [0,1] across those events. A feature with no
// spread maps to 0.5.
func (d *Detector) Normalized(n int) [][3]float64 {
	evs := d.events
	if n > 0 && len(evs) > n {
		evs = evs[len(evs)-n:]
	}
	if len(evs) == 0 {
		return nil
	}

	raw := make([][3]float64, len(evs))
	for i, e := range evs {
		raw[i] = [3]float64{float64(e.T), e.TMV, e.TAR}
	}

	var lo, hi [3]float64
	lo, hi = raw[0], raw[0]
	for _, r := range raw[1:] {
		for k := 0; k < 3; k++ {
			if r[k] < lo[k] {
				lo[k] = r[k]
			}
			if r[k] > hi[k] {
				hi[k] = r[k]
			}
		}
	}

	out := make([][3]float64, len(raw))
	for i, r := range raw {
		for k := 0; k < 3; k++ {
			if hi[k] == lo[k] {
				out[i][k] = 0.5
				continue
			}
			out[i][k] = (r[k] - lo[k]) / (hi[k] - lo[k])
		}
	}
	return out
}
