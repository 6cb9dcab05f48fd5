package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rotaworks/rotaworks/internal/platform/db"
)

// Repository provides PostgreSQL backed adapters for the engine: identity
// lookup, permission catalog reads and administrative mutations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var (
	_ IdentityLookup    = (*Repository)(nil)
	_ PermissionCatalog = (*Repository)(nil)
	_ AdminStore        = (*Repository)(nil)
)

// GetUser resolves a user snapshot.
func (r *Repository) GetUser(ctx context.Context, userID string) (*UserSnapshot, error) {
	const query = `SELECT id, business_id, role_id, legacy_role, custom_permissions, is_active
FROM users WHERE id = $1`
	var (
		snap       UserSnapshot
		roleID     pgtype.Text
		legacyRole pgtype.Text
		rawCustom  []byte
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(&snap.ID, &snap.BusinessID, &roleID, &legacyRole, &rawCustom, &snap.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("authz: get user: %w", err)
	}
	snap.RoleID = roleID.String
	snap.LegacyRole = legacyRole.String
	snap.CustomPermissions = map[string]bool{}
	if len(rawCustom) > 0 {
		if err := json.Unmarshal(rawCustom, &snap.CustomPermissions); err != nil {
			return nil, fmt.Errorf("authz: decode custom permissions for %s: %w", userID, err)
		}
	}
	return &snap, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, roleID string) (*Role, error) {
	const query = `SELECT id, name, display_name, level, is_system FROM roles WHERE id = $1`
	return r.scanRole(r.pool.QueryRow(ctx, query, roleID))
}

// GetRoleByName fetches a role by its canonical name, used to bridge
// legacy role labels onto the relational model.
func (r *Repository) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	const query = `SELECT id, name, display_name, level, is_system FROM roles WHERE name = $1`
	return r.scanRole(r.pool.QueryRow(ctx, query, name))
}

func (r *Repository) scanRole(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Level, &role.IsSystem); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("authz: scan role: %w", err)
	}
	return &role, nil
}

// GetRolePermission fetches the binding for (role, permission), parsing
// stored conditions into the closed variant set.
func (r *Repository) GetRolePermission(ctx context.Context, roleID, permission string) (*RolePermission, error) {
	const query = `SELECT role_id, permission_name, conditions
FROM role_permissions WHERE role_id = $1 AND permission_name = $2`
	var (
		binding RolePermission
		rawCond []byte
	)
	err := r.pool.QueryRow(ctx, query, roleID, permission).Scan(&binding.RoleID, &binding.Permission, &rawCond)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("authz: get role permission: %w", err)
	}
	conds, err := ParseConditions(rawCond)
	if err != nil {
		return nil, err
	}
	binding.Conditions = conds
	return &binding, nil
}

// SetCustomPermission writes a per-user override. True force-grants,
// false force-denies.
func (r *Repository) SetCustomPermission(ctx context.Context, userID, permission string, allowed bool) error {
	const query = `UPDATE users
SET custom_permissions = jsonb_set(COALESCE(custom_permissions, '{}'::jsonb), ARRAY[$2], to_jsonb($3::boolean)), updated_at = NOW()
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, permission, allowed)
	if err != nil {
		return fmt.Errorf("authz: set custom permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearCustomPermission removes an override so role resolution applies
// again.
func (r *Repository) ClearCustomPermission(ctx context.Context, userID, permission string) error {
	const query = `UPDATE users
SET custom_permissions = COALESCE(custom_permissions, '{}'::jsonb) - $2, updated_at = NOW()
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, permission)
	if err != nil {
		return fmt.Errorf("authz: clear custom permission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserRole moves a user to a role.
func (r *Repository) SetUserRole(ctx context.Context, userID, roleID string) error {
	const query = `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, userID, roleID)
	if err != nil {
		return fmt.Errorf("authz: set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListRoles returns every role.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	const query = `SELECT id, name, display_name, level, is_system FROM roles ORDER BY level DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("authz: list roles: %w", err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Level, &role.IsSystem); err != nil {
			return nil, fmt.Errorf("authz: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListPermissions returns the whole catalog ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	const query = `SELECT name, category, description FROM permissions ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("authz: list permissions: %w", err)
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var perm Permission
		if err := rows.Scan(&perm.Name, &perm.Category, &perm.Description); err != nil {
			return nil, fmt.Errorf("authz: scan permission: %w", err)
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// ListRoleBindings returns all bindings of one role.
func (r *Repository) ListRoleBindings(ctx context.Context, roleID string) ([]RolePermission, error) {
	const query = `SELECT role_id, permission_name, conditions FROM role_permissions WHERE role_id = $1 ORDER BY permission_name`
	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("authz: list role bindings: %w", err)
	}
	defer rows.Close()
	var bindings []RolePermission
	for rows.Next() {
		var (
			binding RolePermission
			rawCond []byte
		)
		if err := rows.Scan(&binding.RoleID, &binding.Permission, &rawCond); err != nil {
			return nil, fmt.Errorf("authz: scan role binding: %w", err)
		}
		conds, err := ParseConditions(rawCond)
		if err != nil {
			return nil, err
		}
		binding.Conditions = conds
		bindings = append(bindings, binding)
	}
	return bindings, rows.Err()
}

// ReplaceRoleBindings swaps the full binding set of a role inside one
// transaction.
func (r *Repository) ReplaceRoleBindings(ctx context.Context, roleID string, bindings []RolePermission) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("authz: delete role bindings: %w", err)
		}
		for _, binding := range bindings {
			var rawCond []byte
			if len(binding.Conditions) > 0 {
				data, err := marshalConditions(binding.Conditions)
				if err != nil {
					return err
				}
				rawCond = data
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission_name, conditions) VALUES ($1, $2, $3)`,
				roleID, binding.Permission, rawCond); err != nil {
				return fmt.Errorf("authz: insert role binding %s: %w", binding.Permission, err)
			}
		}
		return nil
	})
}

func marshalConditions(conds []Condition) ([]byte, error) {
	wires := make([]conditionWire, 0, len(conds))
	for _, cond := range conds {
		wire := conditionWire{Type: string(cond.Kind), ResourceType: cond.ResourceType}
		if cond.AllowedHours != nil {
			wire.AllowedHours = &[2]int{cond.AllowedHours.Start, cond.AllowedHours.End}
		}
		for _, d := range cond.AllowedDays {
			wire.AllowedDays = append(wire.AllowedDays, int(d))
		}
		wires = append(wires, wire)
	}
	data, err := json.Marshal(wires)
	if err != nil {
		return nil, fmt.Errorf("authz: encode conditions: %w", err)
	}
	return data, nil
}

// OrderOwnership grants ownership of an order to the user it is assigned
// to, within the caller's business.
type OrderOwnership struct {
	pool *pgxpool.Pool
}

// NewOrderOwnership constructs the order checker.
func NewOrderOwnership(pool *pgxpool.Pool) *OrderOwnership {
	return &OrderOwnership{pool: pool}
}

// IsOwner reports whether the order belongs to the business and is
// assigned to the user.
func (o *OrderOwnership) IsOwner(ctx context.Context, resourceID, userID, businessID string) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM orders WHERE id = $1 AND business_id = $2 AND assigned_to = $3)`
	var owns bool
	if err := o.pool.QueryRow(ctx, query, resourceID, businessID, userID).Scan(&owns); err != nil {
		return false, fmt.Errorf("authz: order ownership: %w", err)
	}
	return owns, nil
}

// CustomerOwnership grants access to customers of the caller's business.
type CustomerOwnership struct {
	pool *pgxpool.Pool
}

// NewCustomerOwnership constructs the customer checker.
func NewCustomerOwnership(pool *pgxpool.Pool) *CustomerOwnership {
	return &CustomerOwnership{pool: pool}
}

// IsOwner reports whether the customer record belongs to the business.
func (o *CustomerOwnership) IsOwner(ctx context.Context, resourceID, _ string, businessID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1 AND business_id = $2)`
	var owns bool
	if err := o.pool.QueryRow(ctx, query, resourceID, businessID).Scan(&owns); err != nil {
		return false, fmt.Errorf("authz: customer ownership: %w", err)
	}
	return owns, nil
}

// UserOwnership grants access to user records of the caller's business.
type UserOwnership struct {
	pool *pgxpool.Pool
}

// NewUserOwnership constructs the user checker.
func NewUserOwnership(pool *pgxpool.Pool) *UserOwnership {
	return &UserOwnership{pool: pool}
}

// IsOwner reports whether the target user belongs to the business.
func (o *UserOwnership) IsOwner(ctx context.Context, resourceID, _ string, businessID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND business_id = $2)`
	var owns bool
	if err := o.pool.QueryRow(ctx, query, resourceID, businessID).Scan(&owns); err != nil {
		return false, fmt.Errorf("authz: user ownership: %w", err)
	}
	return owns, nil
}
