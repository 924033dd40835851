// Package events holds the calendar of scheduled high-impact events (RBI
// policy, budget, index expiries the desk wants to sit out) and answers
// whether a moment falls inside a blackout window around one of them.
package events

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"regime-trader/internal/logger"
)

const dateLayout = "2006-01-02"

var ist = time.FixedZone("IST", 19800)

type Config struct {
	// Static lists event dates as YYYY-MM-DD.
	Static     []string `yaml:"static"`
	StaticFile string   `yaml:"static_file"`
	BeforeDays int      `yaml:"before_days" default:"0" validate:"gte=0"`
	AfterDays  int      `yaml:"after_days" default:"0" validate:"gte=0"`

	// URL is an HTML calendar page scraped on Load; File is a saved copy.
	URL  string `yaml:"url"`
	File string `yaml:"file"`

	Selector   string        `yaml:"selector" default:"[data-event-date]"`
	DateAttr   string        `yaml:"date_attr" default:"data-event-date"`
	DateLayout string        `yaml:"date_layout" default:"2006-01-02"`
	Timeout    time.Duration `yaml:"timeout" default:"15s"`
}

func DefaultConfig() Config {
	var c Config
	_ = defaults.Set(&c)
	return c
}

// Calendar is safe for concurrent use.
type Calendar struct {
	before, after int

	mu    sync.RWMutex
	dates map[string]struct{}
}

func NewCalendar(before, after int) *Calendar {
	return &Calendar{before: before, after: after, dates: map[string]struct{}{}}
}

// Load builds a calendar from every configured source. A failing scrape is
// logged and the other sources still apply; a bad static date is an error.
func Load(ctx context.Context, cfg Config) (*Calendar, error) {
	cal := NewCalendar(cfg.BeforeDays, cfg.AfterDays)

	if err := cal.AddStrings(cfg.Static); err != nil {
		return nil, err
	}
	if cfg.StaticFile != "" {
		dates, err := readStaticFile(cfg.StaticFile)
		if err != nil {
			return nil, err
		}
		if err := cal.AddStrings(dates); err != nil {
			return nil, err
		}
	}

	if cfg.File != "" {
		f, err := os.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("open event calendar %s: %w", cfg.File, err)
		}
		dates, err := ParseHTML(f, cfg.Selector, cfg.DateAttr, cfg.DateLayout)
		f.Close()
		if err != nil {
			return nil, err
		}
		cal.Add(dates...)
	}

	if cfg.URL != "" {
		s := NewScraper(cfg.Selector, cfg.DateAttr, cfg.DateLayout, cfg.Timeout)
		dates, err := s.Scrape(ctx, cfg.URL)
		if err != nil {
			logger.ErrorWithErr(ctx, "Event calendar scrape failed", err, "url", cfg.URL)
		} else {
			cal.Add(dates...)
		}
	}

	logger.Info(ctx, "Event calendar loaded", "events", cal.Len(), "before_days", cfg.BeforeDays, "after_days", cfg.AfterDays)
	return cal, nil
}

type staticFile struct {
	Events []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"events"`
}

func readStaticFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event file %s: %w", path, err)
	}
	var sf staticFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse event file %s: %w", path, err)
	}
	out := make([]string, 0, len(sf.Events))
	for _, e := range sf.Events {
		out = append(out, e.Date)
	}
	return out, nil
}

func (c *Calendar) Add(dates ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range dates {
		c.dates[d.In(ist).Format(dateLayout)] = struct{}{}
	}
}

func (c *Calendar) AddStrings(dates []string) error {
	parsed := make([]time.Time, 0, len(dates))
	for _, s := range dates {
		d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), ist)
		if err != nil {
			return fmt.Errorf("invalid event date %q: %w", s, err)
		}
		parsed = append(parsed, d)
	}
	c.Add(parsed...)
	return nil
}

// IsBlackout reports whether the IST date of t lies within
// [event - before, event + after] days of any event.
func (c *Calendar) IsBlackout(t time.Time) bool {
	d := t.In(ist)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, ist)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for off := -c.after; off <= c.before; off++ {
		if _, ok := c.dates[day.AddDate(0, 0, off).Format(dateLayout)]; ok {
			return true
		}
	}
	return false
}

func (c *Calendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dates)
}

// Dates returns the event dates in ascending order.
func (c *Calendar) Dates() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.dates))
	for d := range c.dates {
		out = append(out, d)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
