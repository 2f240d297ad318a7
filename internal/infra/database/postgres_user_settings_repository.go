package database

import (
	"context"
	"database/sql"
	"fmt"

	"ana-notifier/internal/domain/user"
)

type PostgresUserSettingsRepository struct {
	db *sql.DB
}

func NewPostgresUserSettingsRepository(db *sql.DB) *PostgresUserSettingsRepository {
	return &PostgresUserSettingsRepository{db: db}
}

// GetByUserID returns the notification settings for a user. A user without a
// settings row gets zero-value settings (ChannelNone, empty number) rather
// than an error.
func (r *PostgresUserSettingsRepository) GetByUserID(ctx context.Context, userID string) (*user.Settings, error) {
	query := `SELECT user_id, preferred_notification, whatsapp_number FROM user_settings WHERE user_id = $1`

	var rawChannel string
	s := &user.Settings{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &rawChannel, &s.WhatsAppNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return &user.Settings{UserID: userID, Channel: user.ChannelNone}, nil
		}
		return nil, fmt.Errorf("error getting user settings: %w", err)
	}
	s.Channel = user.ParseChannel(rawChannel)
	return s, nil
}
