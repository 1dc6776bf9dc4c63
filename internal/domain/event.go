package domain

// UserEventsTopic receives every account lifecycle event.
const UserEventsTopic = "user.events"

const (
	EventUserRegistered    = "user.registered"
	EventUserEmailVerified = "user.email_verified"
	EventUserPasswordReset = "user.password_reset"
	EventUserOAuthLinked   = "user.oauth_linked"
)
