package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByBusiness returns every user belonging to a business.
func (r *Repository) ListByBusiness(ctx context.Context, businessID string) ([]User, error) {
	const query = `
		SELECT id, business_id, email, name, role_id, legacy_role, is_active, created_at, updated_at
		FROM users
		WHERE business_id = $1
		ORDER BY name`
	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var (
			user       User
			roleID     pgtype.Text
			legacyRole pgtype.Text
		)
		if err := rows.Scan(&user.ID, &user.BusinessID, &user.Email, &user.Name, &roleID, &legacyRole, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		user.RoleID = roleID.String
		user.LegacyRole = legacyRole.String
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// SetActive flips the active flag on a user within a business.
func (r *Repository) SetActive(ctx context.Context, businessID, userID string, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $3, updated_at = now() WHERE business_id = $1 AND id = $2`,
		businessID, userID, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
