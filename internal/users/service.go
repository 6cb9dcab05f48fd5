package users

import (
	"context"

	"github.com/rotaworks/rotaworks/internal/shared"
)

// Store is the persistence contract for the users module.
type Store interface {
	ListByBusiness(ctx context.Context, businessID string) ([]User, error)
	SetActive(ctx context.Context, businessID, userID string, active bool) (bool, error)
}

// Invalidator is notified when a user's access-relevant state changes.
type Invalidator interface {
	InvalidateUser(userID string)
}

// Service holds user management rules.
type Service struct {
	store       Store
	invalidator Invalidator
}

// NewService constructs a Service.
func NewService(store Store, invalidator Invalidator) *Service {
	return &Service{store: store, invalidator: invalidator}
}

// ListUsers returns all users in a business.
func (s *Service) ListUsers(ctx context.Context, businessID string) ([]User, error) {
	return s.store.ListByBusiness(ctx, businessID)
}

// SetActive enables or disables a user account. Deactivation takes effect
// on the next permission check for that user.
func (s *Service) SetActive(ctx context.Context, businessID, userID string, active bool) error {
	updated, err := s.store.SetActive(ctx, businessID, userID, active)
	if err != nil {
		return err
	}
	if !updated {
		return shared.ErrNotFound
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(userID)
	}
	return nil
}
