package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAccountRepository reads from the identity/account store. It is a
// separate collaborator from the user-settings store even though both live in
// the same database here.
type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// GetEmail returns the account email for a user, or an empty string when the
// account or its email is absent. A missing address is handled downstream by
// the dispatcher, not treated as an error here.
func (r *PostgresAccountRepository) GetEmail(ctx context.Context, userID string) (string, error) {
	query := `SELECT COALESCE(email, '') FROM accounts WHERE id = $1`

	var email string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&email)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("error getting account email: %w", err)
	}
	return email, nil
}
