// Package pricecache holds the latest quote per instrument. The tick
// stream is its only writer; the loop and reporting read it.
package pricecache

import (
	"sync"
	"time"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/types"
)

type Cache struct {
	mu     sync.RWMutex
	quotes map[string]types.Quote
	maxAge time.Duration
	now    func() time.Time
}

var _ interfaces.QuoteSource = (*Cache)(nil)

// New returns an empty cache. Quotes older than maxAge are reported as
// missing by Fresh; 0 disables the check.
func New(maxAge time.Duration) *Cache {
	return &Cache{quotes: make(map[string]types.Quote), maxAge: maxAge, now: time.Now}
}

// Update stores q unless a newer quote for the instrument is already held.
func (c *Cache) Update(q types.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.quotes[q.Instrument]; ok && q.Ts.Before(cur.Ts) {
		return
	}
	c.quotes[q.Instrument] = q
}

// Quote returns the last quote regardless of age.
func (c *Cache) Quote(instrument string) (types.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[instrument]
	return q, ok
}

// Fresh returns the quote only if it is younger than maxAge.
func (c *Cache) Fresh(instrument string) (types.Quote, bool) {
	q, ok := c.Quote(instrument)
	if !ok {
		return q, false
	}
	if c.maxAge > 0 && c.now().Sub(q.Ts) > c.maxAge {
		return q, false
	}
	return q, true
}

// Prices returns last prices for the given instruments; missing ones are
// left out.
func (c *Cache) Prices(instruments []string) map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(instruments))
	for _, in := range instruments {
		if q, ok := c.quotes[in]; ok {
			out[in] = q.LastPrice
		}
	}
	return out
}

// Snapshot copies the whole cache, for reporting.
func (c *Cache) Snapshot() map[string]types.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]types.Quote, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return out
}
