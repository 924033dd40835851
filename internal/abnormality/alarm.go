package abnormality

import "github.com/creasty/defaults"

type AlarmConfig struct {
	PThreshold   float64 `yaml:"p_threshold" default:"0.7" validate:"gt=0,lt=1"`
	NConsecutive int     `yaml:"n_consecutive" default:"3" validate:"gte=1"`
}

func DefaultAlarmConfig() AlarmConfig {
	var c AlarmConfig
	_ = defaults.Set(&c)
	return c
}

// AlarmTracker is an edge-triggered debounce over P(abnormal): it turns on
// after NConsecutive readings above PThreshold and off at the first reading
// at or below it.
type AlarmTracker struct {
	cfg   AlarmConfig
	count int
}

func NewAlarmTracker(cfg AlarmConfig) *AlarmTracker {
	return &AlarmTracker{cfg: cfg}
}

// Update records one reading and returns whether the alarm is active.
func (a *AlarmTracker) Update(pAbnormal float64) bool {
	if pAbnormal > a.cfg.PThreshold {
		a.count++
	} else {
		a.count = 0
	}
	return a.Active()
}

func (a *AlarmTracker) Active() bool {
	return a.count >= a.cfg.NConsecutive
}

func (a *AlarmTracker) Count() int {
	return a.count
}

func (a *AlarmTracker) Reset() {
	a.count = 0
}
