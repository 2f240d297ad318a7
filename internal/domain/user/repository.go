package user

import (
	"context"
)

// SettingsRepository provides access to the application user-settings store.
type SettingsRepository interface {
	// GetByUserID returns the settings for the given user. A user with no
	// stored settings gets zero-value settings (ChannelNone, empty number),
	// not an error.
	GetByUserID(ctx context.Context, userID string) (*Settings, error)
}

// AccountRepository provides access to the identity/account store, which is a
// distinct collaborator from the user-settings store.
type AccountRepository interface {
	// GetEmail returns the account email for the given user, or an empty
	// string when the account or its email is absent.
	GetEmail(ctx context.Context, userID string) (string, error)
}
