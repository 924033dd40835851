package eod

import (
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"regime-trader/internal/tradelog"
	"regime-trader/internal/types"
)

func day(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, ist)
}

func TestSummarizeDay(t *testing.T) {
	log := tradelog.New(t.TempDir())
	log.Append(&types.IterationResult{
		Instrument: "NIFTY 50", AsOf: day(10, 0),
		Packet:  types.RegimePacket{Regime: types.RegimeRangeBound, IsSafe: true},
		Entries: []types.EntryOutcome{{Lots: 2, Result: types.ExecutionResult{Success: true}}},
	})
	log.Append(&types.IterationResult{
		Instrument: "NIFTY 50", AsOf: day(11, 0),
		Packet: types.RegimePacket{Regime: types.RegimeChaos},
		Exits: []types.ExitOutcome{{Result: types.ExecutionResult{Success: true, RealizedPnL: -150.5}}},
		SkipReason: types.SkipRegimeUnsafe,
	})
	log.Append(&types.IterationResult{
		Instrument: "BANKNIFTY", AsOf: day(10, 5),
		Packet:  types.RegimePacket{Regime: types.RegimeTrend, IsSafe: true},
		Entries: []types.EntryOutcome{{Lots: 1, Error: "rejected"}},
	})

	s := NewSummarizer(log)
	p, err := s.SummarizeDay(context.Background(), day(16, 0))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	f, err := os.Open(p)
	if err != nil {
		t.Fatalf("Expected CSV at %s, got %v", p, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV, got %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected header, 2 instruments and total, got %d rows", len(rows))
	}
	if rows[1][0] != "BANKNIFTY" || rows[1][6] != "1" {
		t.Errorf("Expected BANKNIFTY with one entry error first, got %v", rows[1])
	}
	nifty := rows[2]
	if nifty[1] != "2" || nifty[2] != "1" || nifty[3] != "1" || nifty[4] != "1" || nifty[5] != "2" || nifty[7] != "1" || nifty[8] != "-150.50" || nifty[9] != "CHAOS" {
		t.Errorf("Unexpected NIFTY row %v", nifty)
	}
	if rows[3][0] != "TOTAL" || rows[3][1] != "3" {
		t.Errorf("Unexpected total row %v", rows[3])
	}
}

func TestSummarizeEmptyDay(t *testing.T) {
	s := NewSummarizer(tradelog.New(t.TempDir()))
	p, err := s.SummarizeDay(context.Background(), day(16, 0))
	if err != nil || p != "" {
		t.Errorf("Expected empty path and no error, got %q, %v", p, err)
	}
}

func TestShouldRun(t *testing.T) {
	log := tradelog.New(t.TempDir())
	s := NewSummarizer(log)
	if ok, _ := s.ShouldRun(day(15, 0)); ok {
		t.Error("Expected no run before the cutoff")
	}
	ok, p := s.ShouldRun(day(15, 45))
	if !ok {
		t.Fatal("Expected run after the cutoff")
	}
	log.Append(&types.IterationResult{Instrument: "X", AsOf: day(12, 0)})
	if _, err := s.SummarizeDay(context.Background(), day(15, 45)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if ok, p2 := s.ShouldRun(day(15, 50)); ok || p2 != p {
		t.Errorf("Expected no run once %s exists", p)
	}
}
