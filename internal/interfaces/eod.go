package interfaces

import (
	"context"
	"time"
)

// EodSummarizer turns a day's iteration log into a CSV summary.
type EodSummarizer interface {
	SummarizeDay(ctx context.Context, day time.Time) (csvPath string, err error)
	// ShouldRun reports whether the summary for now's day is due and not
	// yet written.
	ShouldRun(now time.Time) (shouldRun bool, csvPath string)
}
