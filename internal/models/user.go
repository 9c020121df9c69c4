package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated account. Which organization a request
// acts for is decided per request by the tenant resolver; ActiveOrgID is
// only the user's durable preference, written exclusively by the
// active-organization switch.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name,omitempty"`
	PasswordHash string     `json:"-"`
	ActiveOrgID  *uuid.UUID `json:"active_org_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewUser creates a new User with the given details.
func NewUser(email, name, passwordHash string) *User {
	now := time.Now()
	return &User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
