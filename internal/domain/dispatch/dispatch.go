package dispatch

import (
	"time"

	"ana-notifier/internal/domain/user"
)

// Record is the resolved, ready-to-send payload for one user for one run.
type Record struct {
	UserID         string
	Email          string
	Channel        user.Channel
	WhatsAppNumber string
	Messages       []string
}

// Status is the outcome of a single user's dispatch attempt.
type Status string

const (
	StatusSent    Status = "SENT"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Result captures the per-recipient outcome so one bad contact is visible in
// the run summary instead of aborting the remaining notifications.
type Result struct {
	UserID  string
	Channel user.Channel
	Status  Status
	Error   string
}

// Summary is what one invocation of the daily job reports back to its trigger.
type Summary struct {
	RunID      string    `json:"runId"`
	TargetDate string    `json:"targetDate"`
	AlreadyRan bool      `json:"alreadyRan"`
	Candidates int64     `json:"candidates"`
	Matched    int       `json:"matched"`
	Sent       int       `json:"sent"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Results    []Result  `json:"-"`
	StartedAt  time.Time `json:"startedAt"`
}

// Tally folds a result into the summary counters.
func (s *Summary) Tally(r Result) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusSent:
		s.Sent++
	case StatusFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}
