package tradelog

import (
	"os"
	"testing"
	"time"

	"regime-trader/internal/types"
)

func result(day string, hour int) *types.IterationResult {
	d, _ := time.ParseInLocation(dayLayout, day, ist)
	return &types.IterationResult{
		Instrument: "NIFTY 50",
		AsOf:       d.Add(time.Duration(hour) * time.Hour),
		Packet:     types.RegimePacket{Regime: types.RegimeRangeBound, IsSafe: true},
		Entries:    []types.EntryOutcome{{StructureID: "NIFTY 50:iron_condor", Lots: 2}},
	}
}

func TestAppendAndReadDay(t *testing.T) {
	l := New(t.TempDir())
	if err := l.Append(result("2025-03-10", 10)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := l.Append(result("2025-03-10", 11)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := l.Append(result("2025-03-11", 10)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	got, err := l.ReadDay(result("2025-03-10", 0).AsOf)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(got))
	}
	if got[0].Entries[0].Lots != 2 || got[0].Packet.Regime != types.RegimeRangeBound {
		t.Errorf("Expected round-tripped result, got %+v", got[0])
	}
}

func TestAppendUsesISTDate(t *testing.T) {
	l := New(t.TempDir())
	// 20:00 UTC on the 9th is the 10th in IST
	res := &types.IterationResult{Instrument: "X", AsOf: time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC)}
	l.Append(res)
	if _, err := os.Stat(l.Path(res.AsOf)); err != nil {
		t.Fatalf("Expected day file, got %v", err)
	}
	if want := "2025-03-10.jsonl"; l.Path(res.AsOf)[len(l.Path(res.AsOf))-len(want):] != want {
		t.Errorf("Expected %s, got %s", want, l.Path(res.AsOf))
	}
}

func TestCompressOlder(t *testing.T) {
	l := New(t.TempDir())
	l.Append(result("2025-03-01", 10))
	l.Append(result("2025-03-09", 10))

	now := result("2025-03-10", 12).AsOf
	n, err := l.CompressOlder(5, now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 file compressed, got %d", n)
	}
	old := result("2025-03-01", 0).AsOf
	if _, err := os.Stat(l.Path(old)); !os.IsNotExist(err) {
		t.Error("Expected plain file to be removed")
	}
	if _, err := os.Stat(l.Path(old) + ".gz"); err != nil {
		t.Errorf("Expected gz file, got %v", err)
	}

	got, err := l.ReadDay(old)
	if err != nil || len(got) != 1 {
		t.Errorf("Expected 1 result from the gz file, got %d (%v)", len(got), err)
	}

	if n, _ := l.CompressOlder(0, now); n != 0 {
		t.Errorf("Expected no compression with zero retention, got %d", n)
	}
}

func TestReadMissingDay(t *testing.T) {
	got, err := New(t.TempDir()).ReadDay(time.Now())
	if err != nil || got != nil {
		t.Errorf("Expected nil, nil for a missing day, got %v, %v", got, err)
	}
}
