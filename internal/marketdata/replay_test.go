package marketdata

import (
	"context"
	"testing"
	"time"

	"regime-trader/internal/types"
)

func bar(min int, c float64) types.Bar {
	return types.Bar{Ts: time.Date(2025, 3, 10, 9, 15+min, 0, 0, time.UTC), Close: c}
}

func TestReplayNeverReturnsFutureBars(t *testing.T) {
	r := NewReplay()
	r.Load("NIFTY", "5minute", []types.Bar{bar(10, 3), bar(0, 1), bar(5, 2), bar(5, 2.5)})

	got := r.Series("NIFTY", "5minute")
	if len(got) != 3 || got[1].Close != 2.5 {
		t.Fatalf("Expected sorted deduped series with the last duplicate kept, got %+v", got)
	}

	// the bar starting at 09:25 is still open at 09:25
	bars, err := r.FetchBars(context.Background(), "NIFTY", "5minute", bar(0, 0).Ts, bar(10, 0).Ts)
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 || bars[1].Close != 2.5 {
		t.Errorf("Expected the two closed bars up to the bound, got %+v", bars)
	}

	bars, _ = r.FetchBars(context.Background(), "NIFTY", "5minute", bar(11, 0).Ts, bar(20, 0).Ts)
	if bars == nil || len(bars) != 0 {
		t.Errorf("Expected empty non-nil slice, got %+v", bars)
	}
	bars, _ = r.FetchBars(context.Background(), "OTHER", "day", bar(0, 0).Ts, bar(20, 0).Ts)
	if len(bars) != 0 {
		t.Errorf("Expected nothing for an unknown series, got %+v", bars)
	}
}

func TestReplayReturnsCopies(t *testing.T) {
	r := NewReplay()
	r.Load("NIFTY", "5minute", []types.Bar{bar(0, 1)})
	bars, _ := r.FetchBars(context.Background(), "NIFTY", "5minute", bar(0, 0).Ts, bar(5, 0).Ts)
	if len(bars) != 1 {
		t.Fatalf("Expected 1 bar, got %d", len(bars))
	}
	bars[0].Close = 99
	if r.Series("NIFTY", "5minute")[0].Close != 1 {
		t.Errorf("Expected stored series to be unaffected by caller mutation")
	}
}

func TestPreload(t *testing.T) {
	src := NewReplay()
	src.Load("A", "5minute", []types.Bar{bar(0, 1), bar(5, 2)})
	dst := NewReplay()
	if err := dst.Preload(context.Background(), src, []string{"A", "B"}, []string{"5minute"}, bar(0, 0).Ts, bar(10, 0).Ts); err != nil {
		t.Fatal(err)
	}
	if len(dst.Series("A", "5minute")) != 2 || len(dst.Series("B", "5minute")) != 0 {
		t.Errorf("Unexpected preload result")
	}
}

func TestReplayHoldsBackMidnightDailyBarsUntilClose(t *testing.T) {
	ist := time.FixedZone("IST", 19800)
	d := time.Date(2025, 3, 10, 0, 0, 0, 0, ist)
	r := NewReplay()
	r.Load("INDIA VIX", "day", []types.Bar{
		{Ts: d.AddDate(0, 0, -1), Close: 14},
		{Ts: d, Close: 25},
	})

	bars, _ := r.FetchBars(context.Background(), "INDIA VIX", "day", d.AddDate(0, 0, -5), d.Add(10*time.Hour))
	if len(bars) != 1 || bars[0].Close != 14 {
		t.Errorf("Expected only the previous day's close at 10:00, got %+v", bars)
	}

	bars, _ = r.FetchBars(context.Background(), "INDIA VIX", "day", d.AddDate(0, 0, -5), d.Add(15*time.Hour+30*time.Minute))
	if len(bars) != 2 || bars[1].Close != 25 {
		t.Errorf("Expected the day's bar once the session closed, got %+v", bars)
	}
}

func TestOpenClickHouseRejectsBadTable(t *testing.T) {
	if _, err := OpenClickHouse(context.Background(), "clickhouse://localhost:9000/default", "bars; DROP"); err == nil {
		t.Errorf("Expected invalid table name error")
	}
}
