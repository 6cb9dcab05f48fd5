package auth

import "time"

// User is a credentialed account scoped to a business.
type User struct {
	ID           string
	BusinessID   string
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
