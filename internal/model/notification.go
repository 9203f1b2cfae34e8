package model

import "time"

// Notification represents a transient user-visible message about send
// progress or account activity ("sent", "send failed (will retry)", ...).
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id"`

	// AccountID links the notification to the account it concerns.
	AccountID string `json:"account_id"`

	// Message is the human-readable notification text.
	Message string `json:"message"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time `json:"created_at"`
}
