package user

// Channel is a user's chosen delivery channel for reminders.
type Channel string

const (
	ChannelNone     Channel = "None"
	ChannelEmail    Channel = "Email"
	ChannelWhatsApp Channel = "WhatsApp"
)

// ParseChannel maps a stored preference string to a Channel. Unknown values
// fall back to ChannelNone so a bad preference never triggers a send.
func ParseChannel(s string) Channel {
	switch s {
	case string(ChannelEmail):
		return ChannelEmail
	case string(ChannelWhatsApp):
		return ChannelWhatsApp
	default:
		return ChannelNone
	}
}

// Settings holds the per-user notification settings kept in the application
// user-settings store. The email address lives in the account store instead.
type Settings struct {
	UserID         string
	Channel        Channel
	WhatsAppNumber string
}
