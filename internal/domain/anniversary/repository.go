package anniversary

import (
	"context"
)

// Repository defines the read operations the daily job needs against the
// anniversary store. The store matches Date by exact string equality, so
// callers pass every raw spelling of the target date they want to accept.
type Repository interface {
	// ListByDates returns all anniversaries whose stored date equals any of
	// the given "D/M" strings.
	ListByDates(ctx context.Context, dates []string) ([]*Anniversary, error)
	// Count returns the total number of anniversary records.
	Count(ctx context.Context) (int64, error)
}
