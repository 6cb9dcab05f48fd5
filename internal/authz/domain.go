// Package authz implements the authorization decision engine: role based
// permissions, per-user overrides, conditional grants, a time-bounded
// snapshot cache with explicit invalidation, a legacy-role compatibility
// fallback and mandatory decision auditing.
package authz

import (
	"context"
	"errors"
)

// Permission is a named capability in "resource:action" form. The name is
// globally unique and is the only identifier other components use.
type Permission struct {
	Name        string
	Category    string
	Description string
}

// Role is a named bundle of permissions assignable to a user.
type Role struct {
	ID          string
	Name        string
	DisplayName string
	Level       int
	IsSystem    bool
}

// Built-in role names. Levels express seniority for display purposes only;
// resolution never compares them.
const (
	RoleOwner    = "OWNER"
	RoleManager  = "MANAGER"
	RoleEmployee = "EMPLOYEE"
	RoleDriver   = "DRIVER"
)

// RolePermission binds a permission to a role, optionally guarded by
// conditions that must hold for the grant to apply.
type RolePermission struct {
	RoleID     string
	Permission string
	Conditions []Condition
}

// UserSnapshot is the resolved identity of a user as seen by the engine.
// RoleID may be empty for accounts created before the role migration; in
// that case LegacyRole carries the old enum label.
type UserSnapshot struct {
	ID                string
	BusinessID        string
	RoleID            string
	LegacyRole        string
	CustomPermissions map[string]bool
	IsActive          bool
}

// Request describes one authorization request. BusinessID is optional;
// callers that care about tenant isolation must supply it.
type Request struct {
	UserID     string
	BusinessID string
	ResourceID string
	Metadata   map[string]any
}

// Decision is the outcome of an authorize call.
type Decision struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
}

// Decision reasons shared across the resolver and its tests.
const (
	reasonUserNotFound      = "user not found"
	reasonUserInactive      = "user is inactive"
	reasonBusinessMismatch  = "business context mismatch"
	reasonCustomGranted     = "custom permission granted"
	reasonCustomDenied      = "custom permission denied"
	reasonNotGrantedByRole  = "permission not granted by role"
	reasonResolutionFailure = "permission check failed"
)

// Errors surfaced by the engine and its storage adapters.
var (
	ErrUserNotFound     = errors.New("authz: user not found")
	ErrRoleNotFound     = errors.New("authz: role not found")
	ErrUnknownCondition = errors.New("authz: unknown condition shape")
)

// IdentityLookup resolves a user id to its snapshot. Returns ErrUserNotFound
// when the account does not exist.
type IdentityLookup interface {
	GetUser(ctx context.Context, userID string) (*UserSnapshot, error)
}

// PermissionCatalog reads the slow-changing role and permission definitions.
// GetRolePermission and GetRoleByName return ErrRoleNotFound for absent
// bindings and roles respectively.
type PermissionCatalog interface {
	GetRole(ctx context.Context, roleID string) (*Role, error)
	GetRoleByName(ctx context.Context, name string) (*Role, error)
	GetRolePermission(ctx context.Context, roleID, permission string) (*RolePermission, error)
}

// OwnershipChecker answers whether a user owns one kind of resource within
// a business. Implementations are registered per resource type.
type OwnershipChecker interface {
	IsOwner(ctx context.Context, resourceID, userID, businessID string) (bool, error)
}
