package zerodha

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"regime-trader/internal/pricecache"
	"regime-trader/internal/retry"
	"regime-trader/internal/types"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want retry.Kind
	}{
		{"token", kiteconnect.Error{Code: 403, ErrorType: kiteconnect.TokenError, Message: "session expired"}, retry.AuthExpired},
		{"throttled", kiteconnect.Error{Code: 429, ErrorType: kiteconnect.GeneralError}, retry.Transient},
		{"server", kiteconnect.Error{Code: 502, ErrorType: kiteconnect.DataError}, retry.Transient},
		{"network", kiteconnect.Error{ErrorType: kiteconnect.NetworkError}, retry.Transient},
		{"input", kiteconnect.Error{Code: 400, ErrorType: kiteconnect.InputError, Message: "invalid token"}, retry.Terminal},
		{"wrapped", errors.Join(errors.New("historical"), kiteconnect.Error{Code: 403, ErrorType: kiteconnect.TokenError}), retry.AuthExpired},
		{"marked", retry.Mark(retry.Terminal, errors.New("unknown instrument")), retry.Terminal},
		{"deadline", context.DeadlineExceeded, retry.Transient},
		{"plain", errors.New("eof"), retry.Transient},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("%s: Expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestFetchBarsUnknownInstrumentIsTerminal(t *testing.T) {
	c := NewClient(Params{APIKey: "k", AccessToken: "t"})
	_, err := c.FetchBars(context.Background(), "NOPE", types.IntervalDay, time.Now().AddDate(0, 0, -5), time.Now())
	if !retry.IsTerminal(err) {
		t.Errorf("Expected terminal error, got %v", err)
	}
}

func TestRefreshReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KITE_ACCESS_TOKEN=fresh\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := NewClient(Params{APIKey: "k", AccessToken: "stale", EnvFile: path})
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Expected refresh to succeed, got %v", err)
	}
	if c.token != "fresh" {
		t.Errorf("Expected token fresh, got %s", c.token)
	}
	if err := c.Refresh(context.Background()); !errors.Is(err, errNoNewToken) {
		t.Errorf("Expected errNoNewToken on unchanged file, got %v", err)
	}
}

func TestPolicyUsesClientRefresh(t *testing.T) {
	c := NewClient(Params{APIKey: "k", AccessToken: "t"})
	p := c.Policy(retry.DefaultPolicy())
	if p.Classify == nil || p.Refresh == nil {
		t.Fatalf("Expected classifier and refresh to be set")
	}
	if p.MaxAttempts != 3 {
		t.Errorf("Expected base attempts to carry over, got %d", p.MaxAttempts)
	}
}

func TestStaticBarsAreStable(t *testing.T) {
	s := NewStatic(map[string]float64{"NIFTY": 22000})
	ctx := context.Background()
	to := time.Date(2025, 3, 10, 12, 0, 0, 0, ist) // Monday
	from := to.AddDate(0, 0, -5)

	a, err := s.FetchBars(ctx, "NIFTY", types.Interval5Minute, from, to)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := s.FetchBars(ctx, "NIFTY", types.Interval5Minute, from.Add(-24*time.Hour), to)
	if len(a) == 0 || len(b) < len(a) {
		t.Fatalf("Expected bars, got %d and %d", len(a), len(b))
	}
	if !reflect.DeepEqual(a, b[len(b)-len(a):]) {
		t.Errorf("Expected overlapping windows to agree")
	}
	for i, bar := range a {
		if bar.Ts.After(to) || bar.Ts.Before(from) {
			t.Errorf("Bar %d at %v outside window", i, bar.Ts)
		}
		if wd := bar.Ts.In(ist).Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("Unexpected weekend bar at %v", bar.Ts)
		}
		if bar.High < bar.Close || bar.Low > bar.Close || bar.Close < 15000 || bar.Close > 30000 {
			t.Errorf("Implausible bar %+v", bar)
		}
		if i > 0 && !bar.Ts.After(a[i-1].Ts) {
			t.Errorf("Expected increasing timestamps at %d", i)
		}
	}
}

func TestStaticDailyBars(t *testing.T) {
	s := NewStatic(nil)
	to := time.Date(2025, 3, 14, 16, 0, 0, 0, ist)
	bars, _ := s.FetchBars(context.Background(), "X", types.IntervalDay, to.AddDate(0, 0, -13), to)
	// two full trading weeks
	if len(bars) != 10 {
		t.Errorf("Expected 10 daily bars, got %d", len(bars))
	}
}

func TestTickUpdatesCache(t *testing.T) {
	cache := pricecache.New(time.Minute)
	tm := NewTickerManager(Params{Tokens: map[string]uint32{"NIFTY": 256265}}, cache, nil)
	ts := time.Date(2025, 3, 10, 10, 0, 0, 0, ist)

	tm.onTick(models.Tick{InstrumentToken: 256265, LastPrice: 22010.5, Timestamp: models.Time{Time: ts}})
	tm.onTick(models.Tick{InstrumentToken: 1, LastPrice: 5})

	q, ok := cache.Quote("NIFTY")
	if !ok || q.LastPrice != 22010.5 || !q.Ts.Equal(ts) {
		t.Errorf("Expected cached NIFTY quote, got %+v ok=%v", q, ok)
	}
	if len(cache.Snapshot()) != 1 {
		t.Errorf("Expected unmapped token to be ignored")
	}
}

func TestSubscribeUnknownInstrument(t *testing.T) {
	tm := NewTickerManager(Params{Tokens: map[string]uint32{"NIFTY": 256265}}, pricecache.New(0), nil)
	if err := tm.Subscribe(context.Background(), []string{"NIFTY", "FOO"}); err == nil {
		t.Errorf("Expected error for unmapped instrument")
	}
	if err := tm.Subscribe(context.Background(), []string{"NIFTY"}); err != nil {
		t.Errorf("Expected deferred subscription before connect, got %v", err)
	}
	if len(tm.tokens) != 1 {
		t.Errorf("Expected one pending token, got %d", len(tm.tokens))
	}
}
