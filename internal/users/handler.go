package users

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rotaworks/rotaworks/internal/authz"
	"github.com/rotaworks/rotaworks/internal/platform/httpx"
	"github.com/rotaworks/rotaworks/internal/shared"
)

// Permissions consumed by this module.
const (
	PermRead   = "users:read"
	PermUpdate = "users:update"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    authz.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate authz.Gate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny(PermRead))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny(PermUpdate))
		r.Post("/{userID}/activate", h.setActive(true))
		r.Post("/{userID}/deactivate", h.setActive(false))
	})
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	users, err := h.service.ListUsers(r.Context(), sess.Business())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]userView, 0, len(users))
	for _, user := range users {
		role := user.RoleID
		if role == "" {
			role = user.LegacyRole
		}
		views = append(views, userView{
			ID:        user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Role:      role,
			IsActive:  user.IsActive,
			CreatedAt: user.CreatedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		userID := chi.URLParam(r, "userID")
		if err := h.service.SetActive(r.Context(), sess.Business(), userID, active); err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
