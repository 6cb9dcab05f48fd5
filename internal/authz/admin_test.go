package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryAdminStore is an in-memory AdminStore that also backs the fake
// identity, so admin mutations are visible to the resolver after a reload.
type memoryAdminStore struct {
	identity *fakeIdentity
	roles    []Role
	perms    []Permission
	bindings map[string][]RolePermission
	err      error
}

func newMemoryAdminStore(identity *fakeIdentity) *memoryAdminStore {
	return &memoryAdminStore{identity: identity, bindings: make(map[string][]RolePermission)}
}

func (s *memoryAdminStore) SetCustomPermission(_ context.Context, userID, permission string, allowed bool) error {
	if s.err != nil {
		return s.err
	}
	snap, ok := s.identity.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if snap.CustomPermissions == nil {
		snap.CustomPermissions = make(map[string]bool)
	}
	snap.CustomPermissions[permission] = allowed
	s.identity.users[userID] = snap
	return nil
}

func (s *memoryAdminStore) ClearCustomPermission(_ context.Context, userID, permission string) error {
	snap, ok := s.identity.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	delete(snap.CustomPermissions, permission)
	s.identity.users[userID] = snap
	return nil
}

func (s *memoryAdminStore) SetUserRole(_ context.Context, userID, roleID string) error {
	snap, ok := s.identity.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	snap.RoleID = roleID
	s.identity.users[userID] = snap
	return nil
}

func (s *memoryAdminStore) ListRoles(_ context.Context) ([]Role, error) {
	return append([]Role(nil), s.roles...), nil
}

func (s *memoryAdminStore) ListPermissions(_ context.Context) ([]Permission, error) {
	return append([]Permission(nil), s.perms...), nil
}

func (s *memoryAdminStore) ListRoleBindings(_ context.Context, roleID string) ([]RolePermission, error) {
	return s.bindings[roleID], nil
}

func (s *memoryAdminStore) ReplaceRoleBindings(_ context.Context, roleID string, bindings []RolePermission) error {
	s.bindings[roleID] = bindings
	return nil
}

func newAdminFixture(t *testing.T) (*engineFixture, *Admin, *memoryAdminStore) {
	t.Helper()
	f := newEngine(t)
	store := newMemoryAdminStore(f.identity)
	admin := NewAdmin(store, f.resolver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f, admin, store
}

func TestGrantCustomPermissionVisibleImmediately(t *testing.T) {
	f, admin, _ := newAdminFixture(t)
	f.seedManager()

	// Warm the cache with a denial.
	dec := f.resolver.Authorize(context.Background(), "orders:delete", Request{UserID: "user-1"})
	require.False(t, dec.Granted)

	require.NoError(t, admin.GrantCustomPermission(context.Background(), "user-1", "orders:delete"))

	dec = f.resolver.Authorize(context.Background(), "orders:delete", Request{UserID: "user-1"})
	require.True(t, dec.Granted)
	require.Equal(t, "custom permission granted", dec.Reason)
}

func TestRevokeCustomPermissionBeatsRoleGrant(t *testing.T) {
	f, admin, _ := newAdminFixture(t)
	f.seedManager()
	f.catalog.bind("role-mgr", "users:update")

	dec := f.resolver.Authorize(context.Background(), "users:update", Request{UserID: "user-1"})
	require.True(t, dec.Granted)

	require.NoError(t, admin.RevokeCustomPermission(context.Background(), "user-1", "users:update"))

	dec = f.resolver.Authorize(context.Background(), "users:update", Request{UserID: "user-1"})
	require.False(t, dec.Granted)
	require.Equal(t, "custom permission denied", dec.Reason)
}

func TestClearCustomPermissionRestoresRoleDecision(t *testing.T) {
	f, admin, _ := newAdminFixture(t)
	f.seedManager()
	f.catalog.bind("role-mgr", "users:update")

	require.NoError(t, admin.RevokeCustomPermission(context.Background(), "user-1", "users:update"))
	require.False(t, f.resolver.Authorize(context.Background(), "users:update", Request{UserID: "user-1"}).Granted)

	require.NoError(t, admin.ClearCustomPermission(context.Background(), "user-1", "users:update"))

	dec := f.resolver.Authorize(context.Background(), "users:update", Request{UserID: "user-1"})
	require.True(t, dec.Granted)
	require.Equal(t, "granted via role Yönetici", dec.Reason)
}

func TestAssignRoleInvalidatesUser(t *testing.T) {
	f, admin, _ := newAdminFixture(t)
	f.seedManager()
	f.catalog.addRole(Role{ID: "role-emp", Name: RoleEmployee, DisplayName: "Çalışan", Level: 2})
	f.catalog.bind("role-mgr", "users:update")

	require.True(t, f.resolver.Authorize(context.Background(), "users:update", Request{UserID: "user-1"}).Granted)

	require.NoError(t, admin.AssignRole(context.Background(), "user-1", "role-emp"))

	dec := f.resolver.Authorize(context.Background(), "users:update", Request{UserID: "user-1"})
	require.False(t, dec.Granted)
}

func TestGrantCustomPermissionPropagatesStoreError(t *testing.T) {
	f, admin, store := newAdminFixture(t)
	f.seedManager()
	store.err = errors.New("connection reset")

	err := admin.GrantCustomPermission(context.Background(), "user-1", "orders:delete")
	require.Error(t, err)
}

func TestListRolesUsesTurkishCollation(t *testing.T) {
	_, admin, store := newAdminFixture(t)
	store.roles = []Role{
		{ID: "1", DisplayName: "Sürücü"},
		{ID: "2", DisplayName: "Çalışan"},
		{ID: "3", DisplayName: "İşletme Sahibi"},
		{ID: "4", DisplayName: "Yönetici"},
	}

	roles, err := admin.ListRoles(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.DisplayName)
	}
	// Turkish alphabet: Ç before İ, İ before S, S before Y.
	require.Equal(t, []string{"Çalışan", "İşletme Sahibi", "Sürücü", "Yönetici"}, names)
}

func TestReplaceRoleBindingsFlushesCache(t *testing.T) {
	f, admin, _ := newAdminFixture(t)
	f.seedManager()
	f.catalog.bind("role-mgr", "users:read")

	f.resolver.Authorize(context.Background(), "users:read", Request{UserID: "user-1"})
	require.Equal(t, int64(1), f.identity.calls.Load())

	require.NoError(t, admin.ReplaceRoleBindings(context.Background(), "role-mgr", nil))

	f.resolver.Authorize(context.Background(), "users:read", Request{UserID: "user-1"})
	require.Equal(t, int64(2), f.identity.calls.Load())
}
