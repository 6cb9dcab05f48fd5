package users

import "time"

// User represents a user account for management views.
type User struct {
	ID         string
	BusinessID string
	Email      string
	Name       string
	RoleID     string
	LegacyRole string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
