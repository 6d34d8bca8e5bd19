package models

// Account event types published to Kafka.
const (
	EventUserRegistered      = "user.registered"
	EventUserLoggedIn        = "user.logged_in"
	EventUserLoggedOut       = "user.logged_out"
	EventUserTokensRefreshed = "user.tokens_refreshed"
	EventUserPasswordChanged = "user.password_changed"
	EventUserProfileUpdated  = "user.profile_updated"
)

// AccountEvent describes a successful state change of a user account.
type AccountEvent struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}
