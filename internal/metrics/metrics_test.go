package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordIteration("NIFTY", "skipped", 0.2)
	r.RecordIteration("NIFTY", "skipped", 0.1)
	if v := testutil.ToFloat64(r.iterations.WithLabelValues("NIFTY", "skipped")); v != 2 {
		t.Errorf("Expected 2 iterations, got %f", v)
	}

	r.RecordRegime("NIFTY", "CHAOS", 0.9)
	if v := testutil.ToFloat64(r.regime.WithLabelValues("NIFTY")); v != 5 {
		t.Errorf("Expected CHAOS code 5, got %f", v)
	}

	r.RecordRisk(true, 3, 1250)
	if v := testutil.ToFloat64(r.breaker); v != 1 {
		t.Errorf("Expected breaker gauge 1, got %f", v)
	}
	if v := testutil.ToFloat64(r.drawdown); v != 1250 {
		t.Errorf("Expected drawdown gauge 1250, got %f", v)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.RecordIteration("X", "ok", 1)
	r.RecordRegime("X", "TREND", 0.7)
	r.RecordRisk(false, 0, 0)
	r.RecordSlippageAlert("WARNING")
	r.RecordRetry("quote", "transient")
	r.RecordTick("kite", "X", 1)
	r.RecordMLCall("error")
}
