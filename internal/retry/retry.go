// Package retry runs broker calls under a bounded retry policy that tells
// expired credentials, transient failures and terminal failures apart.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"regime-trader/internal/logger"
)

type Kind int

const (
	Transient Kind = iota
	AuthExpired
	Terminal
)

func (k Kind) String() string {
	switch k {
	case AuthExpired:
		return "auth_expired"
	case Terminal:
		return "terminal"
	default:
		return "transient"
	}
}

// Error is the classified failure of an operation.
type Error struct {
	Kind     Kind
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s after %d attempts): %v", e.Op, e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Mark tags err with a kind so a policy's classifier does not have to
// guess. A nil err stays nil.
func Mark(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind carried by err, Transient when it carries none.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return Transient
}

// IsTerminal reports whether err must propagate to the caller of an
// iteration.
func IsTerminal(err error) bool {
	return err != nil && KindOf(err) == Terminal
}

// Policy retries transient failures up to MaxAttempts with a linear
// backoff of attempt*Backoff. An expired credential triggers one Refresh
// and exactly one more attempt. Terminal failures return at once.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Classify maps an error to a kind; nil uses KindOf.
	Classify func(error) Kind
	// Refresh renews credentials; nil makes AuthExpired terminal.
	Refresh func(ctx context.Context) error
	// OnRetry is called before every retry.
	OnRetry func(op string, kind Kind, attempt int)

	sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPolicy() *Policy {
	return &Policy{MaxAttempts: 3, Backoff: time.Second}
}

func (p *Policy) classify(err error) Kind {
	if p.Classify != nil {
		return p.Classify(err)
	}
	return KindOf(err)
}

func (p *Policy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Policy) retrying(op string, kind Kind, attempt int) {
	if p.OnRetry != nil {
		p.OnRetry(op, kind, attempt)
	}
}

// Do runs fn under the policy. Every returned error is an *Error.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if p == nil {
		p = DefaultPolicy()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	refreshed := false
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		kind := p.classify(err)

		switch kind {
		case Terminal:
			return &Error{Kind: Terminal, Op: op, Attempts: attempt, Err: err}

		case AuthExpired:
			if refreshed || p.Refresh == nil {
				return &Error{Kind: Terminal, Op: op, Attempts: attempt, Err: fmt.Errorf("credentials rejected: %w", err)}
			}
			refreshed = true
			logger.Warn(ctx, "Broker credentials expired, refreshing", "operation", op, "attempt", attempt)
			p.retrying(op, kind, attempt)
			if rerr := p.Refresh(ctx); rerr != nil {
				return &Error{Kind: Terminal, Op: op, Attempts: attempt, Err: fmt.Errorf("credential refresh: %w", rerr)}
			}
			// exactly one more attempt after a refresh
			if err = fn(ctx); err == nil {
				return nil
			}
			attempt++
			if k := p.classify(err); k != Transient {
				return &Error{Kind: Terminal, Op: op, Attempts: attempt, Err: fmt.Errorf("after credential refresh: %w", err)}
			}
			return &Error{Kind: Transient, Op: op, Attempts: attempt, Err: err}

		default:
			if attempt >= maxAttempts {
				logger.Warn(ctx, "Retry budget exhausted", "operation", op, "attempts", attempt, "error", err)
				return &Error{Kind: Transient, Op: op, Attempts: attempt, Err: err}
			}
			p.retrying(op, kind, attempt)
			logger.Debug(ctx, "Transient broker error, retrying", "operation", op, "attempt", attempt, "error", err)
			if werr := p.wait(ctx, time.Duration(attempt)*p.Backoff); werr != nil {
				return &Error{Kind: Transient, Op: op, Attempts: attempt, Err: werr}
			}
		}
	}
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, p *Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
