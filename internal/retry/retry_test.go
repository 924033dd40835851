package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy(attempts int) (*Policy, *[]time.Duration) {
	var waits []time.Duration
	p := &Policy{
		MaxAttempts: attempts,
		Backoff:     100 * time.Millisecond,
		sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	return p, &waits
}

func TestTransientRetriesWithLinearBackoff(t *testing.T) {
	p, waits := testPolicy(4)
	calls := 0
	err := p.Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	if calls != 4 {
		t.Errorf("Expected 4 calls, got %d", calls)
	}
	if KindOf(err) != Transient || IsTerminal(err) {
		t.Errorf("Expected exhausted transient error, got %v", err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	if len(*waits) != len(want) {
		t.Fatalf("Expected %d waits, got %v", len(want), *waits)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("Expected wait %d to be %v, got %v", i, want[i], (*waits)[i])
		}
	}
}

func TestTransientThenSuccess(t *testing.T) {
	p, _ := testPolicy(3)
	calls := 0
	err := p.Do(context.Background(), "fetch", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("503")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("Expected success on attempt 2, got %v after %d calls", err, calls)
	}
}

func TestTerminalReturnsImmediately(t *testing.T) {
	p, waits := testPolicy(5)
	calls := 0
	err := p.Do(context.Background(), "order", func(context.Context) error {
		calls++
		return Mark(Terminal, errors.New("insufficient funds"))
	})
	if calls != 1 || len(*waits) != 0 {
		t.Errorf("Expected a single call without waiting, got %d calls", calls)
	}
	if !IsTerminal(err) {
		t.Errorf("Expected terminal error, got %v", err)
	}
}

func TestAuthExpiredRefreshesOnce(t *testing.T) {
	p, _ := testPolicy(5)
	refreshes := 0
	p.Refresh = func(context.Context) error {
		refreshes++
		return nil
	}

	calls := 0
	err := p.Do(context.Background(), "quote", func(context.Context) error {
		calls++
		if calls == 1 {
			return Mark(AuthExpired, errors.New("token expired"))
		}
		return nil
	})
	if err != nil || refreshes != 1 || calls != 2 {
		t.Errorf("Expected success after one refresh, got err=%v refreshes=%d calls=%d", err, refreshes, calls)
	}

	calls, refreshes = 0, 0
	err = p.Do(context.Background(), "quote", func(context.Context) error {
		calls++
		return Mark(AuthExpired, errors.New("token expired"))
	})
	if !IsTerminal(err) || refreshes != 1 || calls != 2 {
		t.Errorf("Expected terminal after one refresh and one retry, got err=%v refreshes=%d calls=%d", err, refreshes, calls)
	}
}

func TestAuthExpiredWithoutRefreshIsTerminal(t *testing.T) {
	p, _ := testPolicy(3)
	err := p.Do(context.Background(), "quote", func(context.Context) error {
		return Mark(AuthExpired, errors.New("token expired"))
	})
	if !IsTerminal(err) {
		t.Errorf("Expected terminal error, got %v", err)
	}
}

func TestValueReturnsResult(t *testing.T) {
	p, _ := testPolicy(2)
	v, err := Value(context.Background(), p, "ltp", func(context.Context) (float64, error) {
		return 101.5, nil
	})
	if err != nil || v != 101.5 {
		t.Errorf("Expected 101.5, got %v %v", v, err)
	}
}

func TestCustomClassifier(t *testing.T) {
	p, _ := testPolicy(3)
	bad := errors.New("bad request")
	p.Classify = func(err error) Kind {
		if errors.Is(err, bad) {
			return Terminal
		}
		return Transient
	}
	calls := 0
	err := p.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return bad
	})
	if calls != 1 || !errors.Is(err, bad) {
		t.Errorf("Expected one call wrapping the original error, got %d calls, %v", calls, err)
	}
}
