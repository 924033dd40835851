// Package zerodha adapts Kite Connect to the market-data and tick-source
// interfaces: historical bars and LTP over REST, live prices over the
// websocket ticker.
package zerodha

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/joho/godotenv"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/logger"
	"regime-trader/internal/retry"
	"regime-trader/internal/types"
)

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
	// Tokens maps instrument names to Kite instrument tokens.
	Tokens map[string]uint32
	// QuoteKeys maps instrument names to LTP keys such as "NSE:NIFTY 50".
	// Unmapped instruments use Exchange:name.
	QuoteKeys map[string]string
	// EnvFile is re-read for KITE_ACCESS_TOKEN when a session expires.
	EnvFile string
}

var errNoNewToken = errors.New("zerodha: no new access token available")

// Client serves historical bars and last prices from the Kite REST API.
type Client struct {
	p      Params
	mapper *instrumentMapper

	mu    sync.Mutex
	kc    *kiteconnect.Client
	token string
}

var _ interfaces.MarketData = (*Client)(nil)

func NewClient(p Params) *Client {
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return &Client{
		p:      p,
		mapper: newInstrumentMapper(p.Tokens),
		kc:     kc,
		token:  p.AccessToken,
	}
}

func (c *Client) client() *kiteconnect.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kc
}

// FetchBars returns the instrument's bars in [from, to] in time order.
// An instrument without a token is a terminal error.
func (c *Client) FetchBars(ctx context.Context, instrument, interval string, from, to time.Time) ([]types.Bar, error) {
	token, ok := c.mapper.getToken(instrument)
	if !ok {
		return nil, retry.Mark(retry.Terminal, fmt.Errorf("zerodha: no instrument token for %q", instrument))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := c.client().GetHistoricalData(int(token), interval, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("historical %s %s: %w", instrument, interval, err)
	}

	bars := make([]types.Bar, 0, len(data))
	for _, d := range data {
		ts := d.Date.Time
		if n := len(bars); n > 0 && !ts.After(bars[n-1].Ts) {
			continue
		}
		bars = append(bars, types.Bar{
			Ts:     ts,
			Open:   d.Open,
			High:   d.High,
			Low:    d.Low,
			Close:  d.Close,
			Volume: float64(d.Volume),
		})
	}
	logger.Debug(ctx, "Fetched historical bars", "instrument", instrument, "interval", interval, "count", len(bars))
	return bars, nil
}

func (c *Client) quoteKey(instrument string) string {
	if k, ok := c.p.QuoteKeys[instrument]; ok {
		return k
	}
	return c.p.Exchange + ":" + instrument
}

// LTP fetches last traded prices keyed by instrument name. Instruments the
// API does not return are absent from the map.
func (c *Client) LTP(ctx context.Context, instruments []string) (map[string]float64, error) {
	if len(instruments) == 0 {
		return map[string]float64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := make([]string, len(instruments))
	for i, in := range instruments {
		keys[i] = c.quoteKey(in)
	}
	resp, err := c.client().GetLTP(keys...)
	if err != nil {
		return nil, fmt.Errorf("ltp: %w", err)
	}
	out := make(map[string]float64, len(instruments))
	for i, in := range instruments {
		if q, ok := resp[keys[i]]; ok && q.LastPrice > 0 {
			out[in] = q.LastPrice
		}
	}
	return out, nil
}

// Refresh re-reads the env file and installs a new access token. It fails
// when the file holds the token already in use, since retrying with it
// would be rejected again.
func (c *Client) Refresh(ctx context.Context) error {
	if c.p.EnvFile == "" {
		return errNoNewToken
	}
	env, err := godotenv.Read(c.p.EnvFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", c.p.EnvFile, err)
	}
	tok := env["KITE_ACCESS_TOKEN"]

	c.mu.Lock()
	defer c.mu.Unlock()
	if tok == "" || tok == c.token {
		return errNoNewToken
	}
	c.kc.SetAccessToken(tok)
	c.token = tok
	logger.Info(ctx, "Kite access token refreshed", "env_file", c.p.EnvFile)
	return nil
}

// Policy returns a retry policy that classifies Kite errors and refreshes
// the session through this client.
func (c *Client) Policy(base *retry.Policy) *retry.Policy {
	p := *base
	p.Classify = Classify
	p.Refresh = c.Refresh
	return &p
}
