package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"regime-trader/internal/types"
)

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = url
	cfg.Backoff = time.Millisecond
	return cfg
}

func TestHTTPScorerPredict(t *testing.T) {
	var got types.FeatureVector
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Expected JSON body, got %v", err)
		}
		w.Write([]byte(`{"regime":"trend","probability":0.82}`))
	}))
	defer srv.Close()

	s := NewHTTPScorer(testConfig(srv.URL))
	label, prob, err := s.Predict(context.Background(), types.FeatureVector{Instrument: "NIFTY 50", ChaosTriggers: 2})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if label != types.RegimeTrend || prob != 0.82 {
		t.Errorf("Expected TREND 0.82, got %s %f", label, prob)
	}
	if got.Instrument != "NIFTY 50" || got.ChaosTriggers != 2 {
		t.Errorf("Expected feature vector to be posted, got %+v", got)
	}
}

func TestHTTPScorerRejectsBadVerdicts(t *testing.T) {
	bodies := []string{
		`{"regime":"SIDEWAYS","probability":0.5}`,
		`{"regime":"CHAOS","probability":1.5}`,
		`not json`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))
		_, _, err := NewHTTPScorer(testConfig(srv.URL)).Predict(context.Background(), types.FeatureVector{})
		srv.Close()
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("Expected ErrUnavailable for %q, got %v", body, err)
		}
	}
}

func TestHTTPScorerRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"regime":"RANGE_BOUND","probability":0.7}`))
	}))
	defer srv.Close()

	label, _, err := NewHTTPScorer(testConfig(srv.URL)).Predict(context.Background(), types.FeatureVector{})
	if err != nil {
		t.Fatalf("Expected success after one retry, got %v", err)
	}
	if label != types.RegimeRangeBound {
		t.Errorf("Expected RANGE_BOUND, got %s", label)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("Expected 2 calls, got %d", n)
	}
}

func TestHTTPScorerDoesNotRetryBadRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, _, err := NewHTTPScorer(testConfig(srv.URL)).Predict(context.Background(), types.FeatureVector{}); err == nil {
		t.Fatal("Expected an error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 call, got %d", n)
	}
}

func TestNewDisabled(t *testing.T) {
	if New(DefaultConfig()) != nil {
		t.Error("Expected nil scorer when disabled")
	}
	if _, _, err := (Noop{}).Predict(context.Background(), types.FeatureVector{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable from Noop, got %v", err)
	}
}
