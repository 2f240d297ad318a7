package dispatch

import "time"

// RunStatus tracks whether a claimed run finished its dispatch loop.
type RunStatus string

const (
	RunStarted   RunStatus = "STARTED"
	RunCompleted RunStatus = "COMPLETED"
)

// Run represents one claimed execution of the daily job for a given target
// date. A completed run stays claimed, so a repeated trigger (timer plus
// manual HTTP call on the same day) is a no-op instead of a double send. A
// run left in RunStarted by a failed or cancelled attempt can be reclaimed,
// so a retry dispatches instead of silently dropping the day's reminders.
type Run struct {
	ID        string
	RunDate   time.Time
	Status    RunStatus
	CreatedAt time.Time
}
