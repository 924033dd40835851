package regime

import "time"

var ist = time.FixedZone("IST", 5*3600+30*60)

// Hysteresis counts consecutive days on which a chaos-level condition held.
// Several calls on the same day count once.
type Hysteresis struct {
	cfg         HysteresisConfig
	holidays    map[string]bool
	count       int
	lastTrigger time.Time
}

func NewHysteresis(cfg HysteresisConfig) *Hysteresis {
	h := &Hysteresis{cfg: cfg, holidays: make(map[string]bool, len(cfg.Holidays))}
	for _, d := range cfg.Holidays {
		h.holidays[d] = true
	}
	if h.cfg.VetoDays <= 0 {
		h.cfg.VetoDays = 2
	}
	return h
}

// Update records one call at t and returns the current streak length.
func (h *Hysteresis) Update(t time.Time, triggered bool) int {
	day := dayOf(t)
	if !triggered {
		if !day.Equal(h.lastTrigger) {
			h.count = 0
		}
		return h.count
	}

	switch {
	case day.Equal(h.lastTrigger):
		// already counted today
	case !h.lastTrigger.IsZero() && h.previousDay(day).Equal(h.lastTrigger):
		h.count++
	default:
		h.count = 1
	}
	h.lastTrigger = day
	return h.count
}

func (h *Hysteresis) Count() int { return h.count }

// Warning is true after a single triggering day.
func (h *Hysteresis) Warning() bool { return h.count >= 1 }

// Veto is true once the streak reaches VetoDays.
func (h *Hysteresis) Veto() bool { return h.count >= h.cfg.VetoDays }

func (h *Hysteresis) Reset() {
	h.count = 0
	h.lastTrigger = time.Time{}
}

// previousDay is the day before, or in trading mode the last weekday that
// is not a configured holiday.
func (h *Hysteresis) previousDay(day time.Time) time.Time {
	prev := day.AddDate(0, 0, -1)
	if h.cfg.DayMode != DayModeTrading {
		return prev
	}
	for i := 0; i < 10 && !h.tradingDay(prev); i++ {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

func (h *Hysteresis) tradingDay(d time.Time) bool {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !h.holidays[d.Format("2006-01-02")]
}

// dayOf is the IST calendar date of t at midnight UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.In(ist).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
