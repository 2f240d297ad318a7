package dispatch

import (
	"context"
	"time"
)

// RunRepository tracks daily runs and their per-recipient outcomes.
type RunRepository interface {
	// ClaimRun inserts or reclaims the run record for the given target date.
	// A date whose run is already completed returns the run-already-exists
	// sentinel from the storage layer; a run left unfinished by a failed
	// attempt is handed back out so a retry can dispatch.
	ClaimRun(ctx context.Context, runDate time.Time) (*Run, error)
	// MarkCompleted marks a claimed run as finished, making its claim final.
	MarkCompleted(ctx context.Context, runID string) error
	// RecordResults persists the per-recipient outcomes of a run.
	RecordResults(ctx context.Context, runID string, results []Result) error
}
