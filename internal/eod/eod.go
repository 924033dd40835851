// Package eod summarises a day of iteration results per instrument into a
// CSV report once the market has closed.
package eod

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"regime-trader/internal/interfaces"
	"regime-trader/internal/types"
)

var ist = time.FixedZone("IST", 19800)

// DayReader supplies the logged results of one IST day.
type DayReader interface {
	ReadDay(t time.Time) ([]types.IterationResult, error)
	Dir() string
}

type aggRow struct {
	Instrument  string
	Iterations  int
	Skipped     int
	Unsafe      int
	Entries     int
	EntryLots   int
	EntryErrors int
	Exits       int
	RealizedPnL float64
	LastRegime  types.Regime
}

type summarizer struct {
	log DayReader
	// cutoff is the IST clock time after which the summary is due.
	cutoffHour, cutoffMin int
}

var _ interfaces.EodSummarizer = (*summarizer)(nil)

func NewSummarizer(log DayReader) interfaces.EodSummarizer {
	return &summarizer{log: log, cutoffHour: 15, cutoffMin: 40}
}

func (s *summarizer) csvPath(day time.Time) string {
	return filepath.Join(s.log.Dir(), "eod", day.In(ist).Format("2006-01-02")+".csv")
}

// SummarizeDay writes the CSV for the IST date of day. It returns an empty
// path when nothing was logged that day.
func (s *summarizer) SummarizeDay(_ context.Context, day time.Time) (string, error) {
	results, err := s.log.ReadDay(day)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	rows := aggregate(results)

	outPath := s.csvPath(day)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	headers := []string{"instrument", "iterations", "skipped", "unsafe", "entries", "entry_lots", "entry_errors", "exits", "realized_pnl", "last_regime"}
	if err := w.Write(headers); err != nil {
		return "", err
	}
	var total aggRow
	for _, r := range rows {
		rec := []string{
			r.Instrument,
			strconv.Itoa(r.Iterations),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Unsafe),
			strconv.Itoa(r.Entries),
			strconv.Itoa(r.EntryLots),
			strconv.Itoa(r.EntryErrors),
			strconv.Itoa(r.Exits),
			fmt.Sprintf("%.2f", r.RealizedPnL),
			string(r.LastRegime),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
		total.Iterations += r.Iterations
		total.Entries += r.Entries
		total.EntryLots += r.EntryLots
		total.Exits += r.Exits
		total.RealizedPnL += r.RealizedPnL
	}
	_ = w.Write([]string{"TOTAL", strconv.Itoa(total.Iterations), "", "", strconv.Itoa(total.Entries),
		strconv.Itoa(total.EntryLots), "", strconv.Itoa(total.Exits), fmt.Sprintf("%.2f", total.RealizedPnL), ""})
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func aggregate(results []types.IterationResult) []*aggRow {
	aggs := map[string]*aggRow{}
	for _, res := range results {
		r := aggs[res.Instrument]
		if r == nil {
			r = &aggRow{Instrument: res.Instrument}
			aggs[res.Instrument] = r
		}
		r.Iterations++
		if res.Skipped() {
			r.Skipped++
		}
		if !res.Packet.IsSafe {
			r.Unsafe++
		}
		r.LastRegime = res.Packet.Regime
		for _, e := range res.Entries {
			if e.Result.Success {
				r.Entries++
				r.EntryLots += e.Lots
			} else {
				r.EntryErrors++
			}
		}
		for _, x := range res.Exits {
			if x.Result.Success {
				r.Exits++
				r.RealizedPnL += x.Result.RealizedPnL
			}
		}
	}
	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*aggRow, 0, len(keys))
	for _, k := range keys {
		out = append(out, aggs[k])
	}
	return out
}

func (s *summarizer) ShouldRun(now time.Time) (bool, string) {
	n := now.In(ist)
	cutoff := time.Date(n.Year(), n.Month(), n.Day(), s.cutoffHour, s.cutoffMin, 0, 0, ist)
	outPath := s.csvPath(n)
	if n.After(cutoff) {
		if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
			return true, outPath
		}
	}
	return false, outPath
}
