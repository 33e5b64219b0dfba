package interfaces

import "time"

// EodSummarizer generates end-of-day CSV summaries from the trade journal.
type EodSummarizer interface {
	// SummarizeDay aggregates the day's fills per portfolio and symbol and
	// writes a CSV report. Returns "" with a nil error when no trades exist.
	SummarizeDay(t time.Time) (csvPath string, err error)

	// SummarizeToday is SummarizeDay for the current IST date.
	SummarizeToday() (csvPath string, err error)

	// ShouldRunNow reports whether the market has closed and today's
	// summary has not been written yet.
	ShouldRunNow() (shouldRun bool, csvPath string)
}
