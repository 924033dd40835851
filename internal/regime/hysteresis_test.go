package regime

import (
	"testing"
	"time"
)

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 11, 0, 0, 0, ist)
}

func TestHysteresisWarningThenVeto(t *testing.T) {
	h := NewHysteresis(HysteresisConfig{DayMode: DayModeCalendar, VetoDays: 2})

	h.Update(at(2025, 3, 10), true)
	if !h.Warning() || h.Veto() {
		t.Errorf("Expected warning without veto after one day, got warning=%v veto=%v", h.Warning(), h.Veto())
	}
	// same day again does not extend the streak
	h.Update(at(2025, 3, 10).Add(time.Hour), true)
	if h.Count() != 1 {
		t.Errorf("Expected count 1 within a day, got %d", h.Count())
	}
	h.Update(at(2025, 3, 11), true)
	if !h.Veto() || h.Count() != 2 {
		t.Errorf("Expected veto after two days, got count %d", h.Count())
	}
	h.Update(at(2025, 3, 12), false)
	if h.Count() != 0 || h.Warning() || h.Veto() {
		t.Errorf("Expected reset after a calm day, got count %d", h.Count())
	}
}

func TestHysteresisCalmCallSameDayKeepsStreak(t *testing.T) {
	h := NewHysteresis(HysteresisConfig{DayMode: DayModeCalendar, VetoDays: 2})
	h.Update(at(2025, 3, 10), true)
	h.Update(at(2025, 3, 10).Add(2*time.Hour), false)
	if h.Count() != 1 {
		t.Errorf("Expected count 1, got %d", h.Count())
	}
}

func TestHysteresisGapRestartsAtOne(t *testing.T) {
	h := NewHysteresis(HysteresisConfig{DayMode: DayModeCalendar, VetoDays: 2})
	h.Update(at(2025, 3, 10), true)
	h.Update(at(2025, 3, 12), true)
	if h.Count() != 1 {
		t.Errorf("Expected count 1 after a gap, got %d", h.Count())
	}
}

func TestHysteresisWeekendModes(t *testing.T) {
	fri, mon := at(2025, 3, 7), at(2025, 3, 10)

	cal := NewHysteresis(HysteresisConfig{DayMode: DayModeCalendar, VetoDays: 2})
	cal.Update(fri, true)
	cal.Update(mon, true)
	if cal.Count() != 1 {
		t.Errorf("Expected calendar mode to restart over a weekend, got %d", cal.Count())
	}

	trd := NewHysteresis(HysteresisConfig{DayMode: DayModeTrading, VetoDays: 2})
	trd.Update(fri, true)
	trd.Update(mon, true)
	if trd.Count() != 2 || !trd.Veto() {
		t.Errorf("Expected trading mode to carry the streak over a weekend, got %d", trd.Count())
	}
}

func TestHysteresisTradingModeSkipsHolidays(t *testing.T) {
	h := NewHysteresis(HysteresisConfig{DayMode: DayModeTrading, VetoDays: 2, Holidays: []string{"2025-03-10"}})
	h.Update(at(2025, 3, 7), true)
	h.Update(at(2025, 3, 11), true)
	if h.Count() != 2 {
		t.Errorf("Expected streak across a holiday, got %d", h.Count())
	}
}
