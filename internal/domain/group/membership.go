package group

// Membership links a user to a group. A user can belong to multiple groups
// and a group can have multiple users.
type Membership struct {
	UserID  string
	GroupID string
}
