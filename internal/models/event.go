package models

import "time"

// Event is an audit record of an account action.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g., "user.register", "user.login.fail"
	Level     string    `json:"level"` // e.g., "info", "warn", "error"
	Message   string    `json:"message"`
	UserID    *string   `json:"userId,omitempty"` // Nil when the subject is not a known account
	CreatedAt time.Time `json:"createdAt"`
}
