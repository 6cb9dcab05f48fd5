package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/rotaworks/rotaworks/internal/shared"
)

func authedRequest(t *testing.T, method, target, userID, businessID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	sess := &shared.Session{ID: "sess-1"}
	sess.SetIdentity(userID, businessID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestGateRejectsUnauthenticated(t *testing.T) {
	f := newEngine(t)
	gate := Gate{Resolver: f.resolver}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	gate.RequireAny("users:read")(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body denialBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "authentication required", body.Error)
	require.Equal(t, CodeAuthRequired, body.Code)

	// Authentication failures never reach the audit trail.
	require.Empty(t, f.recorder.all())
}

func TestGateEmptySessionUserIsUnauthenticated(t *testing.T) {
	f := newEngine(t)
	gate := Gate{Resolver: f.resolver}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), &shared.Session{ID: "anon"}))
	gate.RequireAny("users:read")(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateAdmitsGrantedUser(t *testing.T) {
	f := newEngine(t)
	f.seedManager()
	f.catalog.bind("role-mgr", "users:read")
	gate := Gate{Resolver: f.resolver}

	rec := httptest.NewRecorder()
	req := authedRequest(t, http.MethodGet, "/users", "user-1", "biz-1")
	gate.RequireAny("users:read")(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestGateDeniesWithStructuredBody(t *testing.T) {
	f := newEngine(t)
	f.seedManager()
	f.catalog.bind("role-mgr", "users:read")
	gate := Gate{Resolver: f.resolver}

	rec := httptest.NewRecorder()
	req := authedRequest(t, http.MethodPost, "/orders", "user-1", "biz-1")
	gate.RequireAll("users:read", "orders:create")(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var body denialBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "permission denied", body.Error)
	require.Equal(t, CodePermissionDenied, body.Code)
	require.Equal(t, []string{"users:read", "orders:create"}, body.Required)
	require.Equal(t, []string{"users:read"}, body.Granted)
	require.Equal(t, "permission not granted by role", body.Reason)
}

func TestGateAnyModeAdmitsPartialGrant(t *testing.T) {
	f := newEngine(t)
	f.seedManager()
	f.catalog.bind("role-mgr", "users:read")
	gate := Gate{Resolver: f.resolver}

	rec := httptest.NewRecorder()
	req := authedRequest(t, http.MethodGet, "/users", "user-1", "biz-1")
	gate.RequireAny("users:read", "orders:delete")(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// Both permissions are still evaluated and audited.
	require.Len(t, f.recorder.all(), 2)
}

func TestGateEmptyPermissionListPassesThrough(t *testing.T) {
	f := newEngine(t)
	gate := Gate{Resolver: f.resolver}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	gate.RequireAny()(okHandler()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, f.recorder.all())
}

func TestGateResourceExtractorFeedsOwnership(t *testing.T) {
	f := newEngine(t, func(cfg *ResolverConfig) {
		ev := NewEvaluator(cfg.Clock)
		ev.RegisterOwnership("order", staticOwner{owner: "driver-1"})
		cfg.Evaluator = ev
	})
	f.catalog.addRole(Role{ID: "role-drv", Name: RoleDriver, DisplayName: "Sürücü", Level: 1})
	f.catalog.bind("role-drv", "orders:update", Condition{Kind: ConditionResourceOwnership, ResourceType: "order"})
	f.identity.set(UserSnapshot{ID: "driver-1", BusinessID: "biz-1", RoleID: "role-drv", IsActive: true})
	f.identity.set(UserSnapshot{ID: "driver-2", BusinessID: "biz-1", RoleID: "role-drv", IsActive: true})

	gate := Gate{Resolver: f.resolver}
	extract := func(r *http.Request) string { return chi.URLParam(r, "orderID") }

	router := chi.NewRouter()
	router.With(gate.RequireAnyWithResource(extract, "orders:update")).
		Post("/orders/{orderID}/status", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/orders/order-9/status", "driver-1", "biz-1"))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, http.MethodPost, "/orders/order-9/status", "driver-2", "biz-1"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGateRecordsRequestMetadata(t *testing.T) {
	f := newEngine(t)
	f.seedManager()
	f.catalog.bind("role-mgr", "users:read")
	gate := Gate{Resolver: f.resolver}

	rec := httptest.NewRecorder()
	req := authedRequest(t, http.MethodGet, "/users", "user-1", "biz-1")
	req.Header.Set("User-Agent", "rotaworks-test/1.0")
	gate.RequireAny("users:read")(okHandler()).ServeHTTP(rec, req)

	entries := f.recorder.all()
	require.Len(t, entries, 1)
	require.Equal(t, "/users", entries[0].Metadata["path"])
	require.Equal(t, "rotaworks-test/1.0", entries[0].Metadata["user_agent"])
	require.Equal(t, "biz-1", entries[0].BusinessID)
}
