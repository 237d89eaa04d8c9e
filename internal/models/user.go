package models

import "time"

// User represents a registered account.
type User struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	CreatedAt    time.Time `json:"createdAt"`
}

// UserUpdate carries the fields of a partial update. Nil fields are left untouched.
// PasswordHash is filled in by the account service; callers set Password.
type UserUpdate struct {
	Name         *string
	Email        *string
	Password     *string
	PasswordHash *string
}
