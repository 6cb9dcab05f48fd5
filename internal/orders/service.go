package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotaworks/rotaworks/internal/shared"
)

// Store is the persistence contract for orders.
type Store interface {
	ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]Order, error)
	Get(ctx context.Context, businessID, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, businessID, orderID, status, notes string) (bool, error)
	Assign(ctx context.Context, businessID, orderID, driverID string) (bool, error)
}

// ErrInvalidTransition rejects lifecycle moves outside validTransitions.
var ErrInvalidTransition = errors.New("invalid status transition")

var validTransitions = map[string][]string{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusEnRoute, StatusCancelled},
	StatusEnRoute:  {StatusCompleted, StatusCancelled},
}

// Service holds order lifecycle rules.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns a page of orders for the business.
func (s *Service) List(ctx context.Context, businessID string, limit, offset int) ([]Order, error) {
	limit, offset = shared.LimitOffset(limit, offset)
	return s.store.ListByBusiness(ctx, businessID, limit, offset)
}

// Get fetches one order.
func (s *Service) Get(ctx context.Context, businessID, orderID string) (*Order, error) {
	return s.store.Get(ctx, businessID, orderID)
}

// UpdateStatus moves an order along the lifecycle, validating the transition.
func (s *Service) UpdateStatus(ctx context.Context, businessID, orderID, status, notes string) error {
	current, err := s.store.Get(ctx, businessID, orderID)
	if err != nil {
		return err
	}
	if !transitionAllowed(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	updated, err := s.store.UpdateStatus(ctx, businessID, orderID, status, notes)
	if err != nil {
		return err
	}
	if !updated {
		return shared.ErrNotFound
	}
	return nil
}

// Assign hands the order to a driver.
func (s *Service) Assign(ctx context.Context, businessID, orderID, driverID string) error {
	updated, err := s.store.Assign(ctx, businessID, orderID, driverID)
	if err != nil {
		return err
	}
	if !updated {
		return shared.ErrNotFound
	}
	return nil
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
