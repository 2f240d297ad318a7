package database

import (
	"context"
	"database/sql"
	"fmt"

	"ana-notifier/internal/domain/group"

	"github.com/lib/pq"
)

type PostgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) *PostgresGroupRepository {
	return &PostgresGroupRepository{db: db}
}

// ListMembersOfGroups returns the distinct (user_id, group_id) pairs for
// memberships in any of the given groups.
func (r *PostgresGroupRepository) ListMembersOfGroups(ctx context.Context, groupIDs []string) ([]*group.Membership, error) {
	query := `SELECT DISTINCT user_id, group_id FROM group_members
               WHERE group_id = ANY($1)
               ORDER BY user_id, group_id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("error listing members of groups: %w", err)
	}
	defer rows.Close()

	members := make([]*group.Membership, 0)
	for rows.Next() {
		m := &group.Membership{}
		if err := rows.Scan(&m.UserID, &m.GroupID); err != nil {
			return nil, fmt.Errorf("error scanning group membership: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group memberships: %w", err)
	}
	return members, nil
}
