package database

import (
	"context"
	"database/sql"
	"fmt"

	"ana-notifier/internal/domain/anniversary"

	"github.com/lib/pq" // For pq.Array and driver registration
)

type PostgresAnniversaryRepository struct {
	db *sql.DB
}

func NewPostgresAnniversaryRepository(db *sql.DB) *PostgresAnniversaryRepository {
	return &PostgresAnniversaryRepository{db: db}
}

// ListByDates returns anniversaries whose stored date exactly equals any of
// the given "D/M" spellings. Padding normalization happens in the caller by
// querying every spelling; the store itself compares raw strings.
func (r *PostgresAnniversaryRepository) ListByDates(ctx context.Context, dates []string) ([]*anniversary.Anniversary, error) {
	query := `SELECT id, group_id, name, date FROM anniversaries WHERE date = ANY($1) ORDER BY group_id, name`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(dates))
	if err != nil {
		return nil, fmt.Errorf("error listing anniversaries by date: %w", err)
	}
	defer rows.Close()

	annivs := make([]*anniversary.Anniversary, 0)
	for rows.Next() {
		a := &anniversary.Anniversary{}
		if err := rows.Scan(&a.ID, &a.GroupID, &a.Name, &a.Date); err != nil {
			return nil, fmt.Errorf("error scanning anniversary: %w", err)
		}
		annivs = append(annivs, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anniversaries: %w", err)
	}
	return annivs, nil
}

func (r *PostgresAnniversaryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anniversaries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting anniversaries: %w", err)
	}
	return count, nil
}
