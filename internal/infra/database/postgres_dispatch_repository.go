package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ana-notifier/internal/domain/dispatch"

	"github.com/google/uuid"
)

// Custom errors specific to dispatch run bookkeeping
var ErrRunAlreadyExists = fmt.Errorf("dispatch run for this date already completed")

type PostgresDispatchRepository struct {
	db *sql.DB
}

func NewPostgresDispatchRepository(db *sql.DB) *PostgresDispatchRepository {
	return &PostgresDispatchRepository{db: db}
}

// ClaimRun inserts or reclaims the run row for the given target date. The
// unique index on run_date plus the status guard mean a completed run stays
// claimed forever, while a run left STARTED by a failed or cancelled attempt
// is handed back out so a retry can dispatch.
func (r *PostgresDispatchRepository) ClaimRun(ctx context.Context, runDate time.Time) (*dispatch.Run, error) {
	query := `INSERT INTO dispatch_runs (id, run_date, status)
               VALUES ($1, $2, $3)
               ON CONFLICT (run_date) DO UPDATE SET status = $3
                   WHERE dispatch_runs.status <> $4
               RETURNING id, created_at`

	run := &dispatch.Run{RunDate: runDate, Status: dispatch.RunStarted}
	err := r.db.QueryRowContext(ctx, query,
		uuid.New().String(), runDate, string(dispatch.RunStarted), string(dispatch.RunCompleted),
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			// The conflicting run is completed; nothing to redo.
			return nil, ErrRunAlreadyExists
		}
		return nil, fmt.Errorf("error claiming dispatch run: %w", err)
	}
	return run, nil
}

// MarkCompleted finalizes the claim for a run that finished its dispatch loop.
func (r *PostgresDispatchRepository) MarkCompleted(ctx context.Context, runID string) error {
	query := `UPDATE dispatch_runs SET status = $1 WHERE id = $2`

	if _, err := r.db.ExecContext(ctx, query, string(dispatch.RunCompleted), runID); err != nil {
		return fmt.Errorf("error marking dispatch run completed: %w", err)
	}
	return nil
}

// RecordResults persists the per-recipient outcomes of a run in one
// transaction.
func (r *PostgresDispatchRepository) RecordResults(ctx context.Context, runID string, results []dispatch.Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction for dispatch results: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO dispatch_records (run_id, user_id, channel, status, error)
               VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("error preparing dispatch record insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range results {
		if _, err := stmt.ExecContext(ctx, runID, res.UserID, string(res.Channel), string(res.Status), res.Error); err != nil {
			return fmt.Errorf("error inserting dispatch record for user %s: %w", res.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing dispatch results: %w", err)
	}
	return nil
}
