package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthenticationRequired indicates the request carries no verified identity.
	ErrAuthenticationRequired = errors.New("authentication required")
)

// UserSafeMessage returns a message suitable for end users. Internal
// failures collapse to a generic string so storage details never leak
// through API responses.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "record not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, ErrAuthenticationRequired):
		return "authentication required"
	default:
		return "an unexpected error occurred"
	}
}
