package group

import (
	"context"
)

// Repository defines the operations for reading group memberships.
type Repository interface {
	// ListMembersOfGroups returns the distinct (userID, groupID) pairs for
	// all memberships in any of the given groups.
	ListMembersOfGroups(ctx context.Context, groupIDs []string) ([]*Membership, error)
}
