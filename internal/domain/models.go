package domain

import "time"

// DefaultKarma is the karma score every new account starts with.
const DefaultKarma = 100

// User is identified by its lower-cased email address.
type User struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Karma       int        `json:"karma"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// DisplayName falls back to the identity when no name was given.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

type UserWithPassword struct {
	User
	PasswordHash string
}

type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}
