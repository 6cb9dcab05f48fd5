package authz

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AdminStore persists administrative mutations to users and catalog reads
// used by management endpoints.
type AdminStore interface {
	SetCustomPermission(ctx context.Context, userID, permission string, allowed bool) error
	ClearCustomPermission(ctx context.Context, userID, permission string) error
	SetUserRole(ctx context.Context, userID, roleID string) error
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListRoleBindings(ctx context.Context, roleID string) ([]RolePermission, error)
	ReplaceRoleBindings(ctx context.Context, roleID string, bindings []RolePermission) error
}

// Admin applies grant and revoke operations. Every user mutation
// invalidates that user's cache entry before the call returns, so a
// revoke-then-authorize sequence deterministically observes the new
// state. Catalog mutations flush the whole cache.
type Admin struct {
	store    AdminStore
	resolver *Resolver
	logger   *slog.Logger
	collator *collate.Collator
}

// NewAdmin constructs the administrative service bound to a resolver.
func NewAdmin(store AdminStore, resolver *Resolver, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{
		store:    store,
		resolver: resolver,
		logger:   logger,
		// Role display names are Turkish; bytewise ordering misplaces
		// İ, Ş and friends.
		collator: collate.New(language.Turkish),
	}
}

// GrantCustomPermission force-grants a permission for one user,
// overriding whatever the role says.
func (a *Admin) GrantCustomPermission(ctx context.Context, userID, permission string) error {
	if err := a.store.SetCustomPermission(ctx, userID, permission, true); err != nil {
		return fmt.Errorf("authz: grant custom permission: %w", err)
	}
	a.resolver.InvalidateUser(userID)
	a.logger.Info("custom permission granted", slog.String("user_id", userID), slog.String("permission", permission))
	return nil
}

// RevokeCustomPermission force-denies a permission for one user. The
// override is an explicit deny, not an absence: it beats any role grant.
func (a *Admin) RevokeCustomPermission(ctx context.Context, userID, permission string) error {
	if err := a.store.SetCustomPermission(ctx, userID, permission, false); err != nil {
		return fmt.Errorf("authz: revoke custom permission: %w", err)
	}
	a.resolver.InvalidateUser(userID)
	a.logger.Info("custom permission revoked", slog.String("user_id", userID), slog.String("permission", permission))
	return nil
}

// ClearCustomPermission removes an override entirely so the role decides
// again.
func (a *Admin) ClearCustomPermission(ctx context.Context, userID, permission string) error {
	if err := a.store.ClearCustomPermission(ctx, userID, permission); err != nil {
		return fmt.Errorf("authz: clear custom permission: %w", err)
	}
	a.resolver.InvalidateUser(userID)
	return nil
}

// AssignRole moves a user onto a role.
func (a *Admin) AssignRole(ctx context.Context, userID, roleID string) error {
	if err := a.store.SetUserRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("authz: assign role: %w", err)
	}
	a.resolver.InvalidateUser(userID)
	a.logger.Info("role assigned", slog.String("user_id", userID), slog.String("role_id", roleID))
	return nil
}

// ListRoles returns all roles ordered by display name with Turkish
// collation.
func (a *Admin) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := a.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	a.collator.Sort(roleSorter(roles))
	return roles, nil
}

// ListPermissions returns the full permission catalog.
func (a *Admin) ListPermissions(ctx context.Context) ([]Permission, error) {
	return a.store.ListPermissions(ctx)
}

// ListRoleBindings returns the bindings of one role.
func (a *Admin) ListRoleBindings(ctx context.Context, roleID string) ([]RolePermission, error) {
	return a.store.ListRoleBindings(ctx, roleID)
}

// ReplaceRoleBindings swaps the permission set of a role and flushes the
// entire snapshot cache, since any user on that role may be affected.
func (a *Admin) ReplaceRoleBindings(ctx context.Context, roleID string, bindings []RolePermission) error {
	if err := a.store.ReplaceRoleBindings(ctx, roleID, bindings); err != nil {
		return fmt.Errorf("authz: replace role bindings: %w", err)
	}
	a.resolver.InvalidateAll()
	a.logger.Info("role bindings replaced", slog.String("role_id", roleID), slog.Int("count", len(bindings)))
	return nil
}

// roleSorter adapts []Role to the collate.Lister interface.
type roleSorter []Role

func (s roleSorter) Len() int           { return len(s) }
func (s roleSorter) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s roleSorter) Bytes(i int) []byte { return []byte(s[i].DisplayName) }
