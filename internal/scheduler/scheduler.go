// Package scheduler drives the engine on a fixed cadence during NSE market
// hours. Iterations for the configured instruments run one after another;
// cancellation stops the loop only between iterations.
package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/creasty/defaults"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/types"
)

var ist = time.FixedZone("IST", 19800)

// ErrRunning is returned by Run when a loop is already active.
var ErrRunning = errors.New("scheduler already running")

type Config struct {
	Interval    time.Duration `yaml:"interval" default:"1m" validate:"gt=0"`
	Instruments []string      `yaml:"instruments" validate:"min=1,dive,required"`
	// OpenMinute and CloseMinute are minutes after IST midnight.
	OpenMinute  int  `yaml:"open_minute" default:"555" validate:"gte=0,lt=1440"`
	CloseMinute int  `yaml:"close_minute" default:"930" validate:"gtfield=OpenMinute,lte=1440"`
	IgnoreHours bool `yaml:"ignore_hours"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// Sink receives every result the loop produces.
type Sink interface {
	Append(res *types.IterationResult) error
}

type Option func(*Scheduler)

// WithClock replaces the wall clock used to stamp iterations.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithSink(sink Sink) Option {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sink) }
}

// WithEOD runs the summarizer once per day on the first tick it is due.
func WithEOD(eod interfaces.EodSummarizer) Option {
	return func(s *Scheduler) { s.eod = eod }
}

type Scheduler struct {
	cfg     Config
	eng     interfaces.Engine
	now     func() time.Time
	sinks   []Sink
	eod     interfaces.EodSummarizer
	running atomic.Bool
}

func New(cfg Config, eng interfaces.Engine, opts ...Option) *Scheduler {
	s := &Scheduler{cfg: cfg, eng: eng, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// MarketOpen reports whether t falls inside the trading session on a
// weekday.
func (s *Scheduler) MarketOpen(t time.Time) bool {
	if s.cfg.IgnoreHours {
		return true
	}
	d := t.In(ist)
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	m := d.Hour()*60 + d.Minute()
	return m >= s.cfg.OpenMinute && m <= s.cfg.CloseMinute
}

// Run ticks until ctx is cancelled. Only one Run may be active per
// scheduler.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	logger.Info(ctx, "Scheduler started", "interval", s.cfg.Interval, "instruments", s.cfg.Instruments)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Scheduler stopped")
			s.summarize(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one pass over the instruments if the market is open, then the
// end-of-day summary if it is due. It returns the number of iterations run.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()
	ran := 0
	if s.MarketOpen(now) {
		for _, inst := range s.cfg.Instruments {
			if ctx.Err() != nil {
				return ran
			}
			s.iterate(ctx, inst, now)
			ran++
		}
	} else {
		logger.Debug(ctx, "Market closed, skipping tick", "time", now.In(ist).Format(time.DateTime))
	}
	s.summarize(ctx)
	return ran
}

// iterate runs one iteration detached from ctx's cancellation so a
// shutdown never interrupts it midway.
func (s *Scheduler) iterate(ctx context.Context, inst string, asOf time.Time) {
	res, err := s.eng.RunIteration(context.WithoutCancel(ctx), inst, asOf)
	if err != nil {
		logger.ErrorWithErr(ctx, "Iteration failed", err, "instrument", inst)
		return
	}
	for _, sink := range s.sinks {
		if err := sink.Append(res); err != nil {
			logger.Warn(ctx, "Failed to record iteration", "instrument", inst, "error", err)
		}
	}
}

func (s *Scheduler) summarize(ctx context.Context) {
	if s.eod == nil {
		return
	}
	now := s.now()
	if ok, _ := s.eod.ShouldRun(now); !ok {
		return
	}
	if _, err := s.eod.SummarizeDay(ctx, now); err != nil {
		logger.Warn(ctx, "EOD summary failed", "error", err)
	}
}
