package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rotaworks/rotaworks/internal/shared"
)

type stubRepo struct {
	users    map[string]*User
	sessions map[string]string
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]*User), sessions: make(map[string]string)}
}

func (r *stubRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *stubRepo) CreateSession(_ context.Context, id, userID string, _ time.Time, _, _ string) error {
	r.sessions[id] = userID
	return nil
}

func (r *stubRepo) DeleteSession(_ context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *stubRepo, *shared.SessionManager) {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "rw_session", "test-secret", time.Hour, false)
	repo := newStubRepo()
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), NewService(repo), sessions)
	return handler, repo, sessions
}

func seedUser(t *testing.T, repo *stubRepo, email, password string) *User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &User{
		ID:           "11111111-1111-1111-1111-111111111111",
		BusinessID:   "22222222-2222-2222-2222-222222222222",
		Email:        email,
		Name:         "Demo User",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	repo.users[email] = user
	return user
}

func TestHandleLoginSuccess(t *testing.T) {
	handler, repo, sessions := newTestHandler(t)
	user := seedUser(t, repo, "demo@rotaworks.test", "correct-horse")

	body := `{"email":"demo@rotaworks.test","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	handler.handleLogin(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, user.ID, resp.UserID)
	require.Equal(t, user.BusinessID, resp.BusinessID)
	require.Equal(t, user.ID, sess.User())
	require.Equal(t, user.BusinessID, sess.Business())
	require.Contains(t, repo.sessions, sess.ID)
}

func TestHandleLoginBadPassword(t *testing.T) {
	handler, repo, sessions := newTestHandler(t)
	seedUser(t, repo, "demo@rotaworks.test", "correct-horse")

	body := `{"email":"demo@rotaworks.test","password":"wrong-battery"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	handler.handleLogin(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, sess.User())
}

func TestHandleLoginInactiveUser(t *testing.T) {
	handler, repo, sessions := newTestHandler(t)
	user := seedUser(t, repo, "demo@rotaworks.test", "correct-horse")
	user.IsActive = false

	body := `{"email":"demo@rotaworks.test","password":"correct-horse"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	handler.handleLogin(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLoginValidation(t *testing.T) {
	handler, _, sessions := newTestHandler(t)

	body := `{"email":"not-an-email","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	handler.handleLogin(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleLogout(t *testing.T) {
	handler, repo, sessions := newTestHandler(t)
	user := seedUser(t, repo, "demo@rotaworks.test", "correct-horse")

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	sess, err := sessions.Load(req.Context(), req)
	require.NoError(t, err)
	sess.SetIdentity(user.ID, user.BusinessID)
	repo.sessions[sess.ID] = user.ID
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	handler.handleLogout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotContains(t, repo.sessions, sess.ID)
}
