package events

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"regime-trader/internal/api"
	"regime-trader/internal/logger"
)

// Scraper pulls event dates from an HTML calendar page. Every element
// matching Selector contributes one date, read from DateAttr or, when the
// attribute is absent, from the element text.
type Scraper struct {
	selector string
	attr     string
	layout   string
	timeout  time.Duration
}

func NewScraper(selector, attr, layout string, timeout time.Duration) *Scraper {
	return &Scraper{selector: selector, attr: attr, layout: layout, timeout: timeout}
}

func (s *Scraper) Scrape(ctx context.Context, pageURL string) ([]time.Time, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar url %s: %w", pageURL, err)
	}

	c := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}

	c.OnRequest(func(r *colly.Request) {
		for k, v := range api.BrowserHeaders() {
			r.Headers.Set(k, v)
		}
	})

	var (
		dates   []time.Time
		skipped int
	)
	c.OnHTML(s.selector, func(e *colly.HTMLElement) {
		raw := e.Attr(s.attr)
		if raw == "" {
			raw = e.Text
		}
		d, err := parseDate(raw, s.layout)
		if err != nil {
			skipped++
			return
		}
		dates = append(dates, d)
	})

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = fmt.Errorf("calendar request %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	c.Wait()
	if scrapeErr != nil {
		return nil, scrapeErr
	}

	logger.Debug(ctx, "Event calendar scraped", "url", pageURL, "dates", len(dates), "skipped", skipped)
	return dates, nil
}

// ParseHTML reads a saved calendar page with the same extraction rules as
// Scraper.
func ParseHTML(r io.Reader, selector, attr, layout string) ([]time.Time, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar html: %w", err)
	}
	var dates []time.Time
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		raw, ok := sel.Attr(attr)
		if !ok || raw == "" {
			raw = sel.Text()
		}
		if d, err := parseDate(raw, layout); err == nil {
			dates = append(dates, d)
		}
	})
	return dates, nil
}

func parseDate(raw, layout string) (time.Time, error) {
	return time.ParseInLocation(layout, strings.TrimSpace(raw), ist)
}
