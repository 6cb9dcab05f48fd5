package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rotaworks/rotaworks/internal/shared"
)

// Repository provides PostgreSQL backed persistence for orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orderColumns = `id, business_id, customer_id, assigned_to, status, notes, created_at, updated_at`

// ListByBusiness returns orders for a business, newest first.
func (r *Repository) ListByBusiness(ctx context.Context, businessID string, limit, offset int) ([]Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, businessID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

// Get fetches a single order within a business.
func (r *Repository) Get(ctx context.Context, businessID, orderID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE business_id = $1 AND id = $2`
	row := r.pool.QueryRow(ctx, query, businessID, orderID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves an order through its lifecycle.
func (r *Repository) UpdateStatus(ctx context.Context, businessID, orderID, status, notes string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $3, notes = $4, updated_at = now() WHERE business_id = $1 AND id = $2`,
		businessID, orderID, status, notes)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Assign sets the driver for an order and marks it assigned.
func (r *Repository) Assign(ctx context.Context, businessID, orderID, driverID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET assigned_to = $3, status = $4, updated_at = now() WHERE business_id = $1 AND id = $2`,
		businessID, orderID, driverID, StatusAssigned)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		order      Order
		assignedTo pgtype.Text
		notes      pgtype.Text
	)
	err := row.Scan(&order.ID, &order.BusinessID, &order.CustomerID, &assignedTo, &order.Status, &notes, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	order.AssignedTo = assignedTo.String
	order.Notes = notes.String
	return order, nil
}
