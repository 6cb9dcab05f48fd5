// Package orders manages field work orders: the unit of work dispatched
// to drivers and tracked through completion.
package orders

import "time"

// Order statuses follow the dispatch lifecycle.
const (
	StatusPending   = "PENDING"
	StatusAssigned  = "ASSIGNED"
	StatusEnRoute   = "EN_ROUTE"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Order is a work order scoped to a business.
type Order struct {
	ID         string
	BusinessID string
	CustomerID string
	AssignedTo string
	Status     string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
