package authz

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rotaworks/rotaworks/internal/platform/httpx"
)

// PermManage guards every administrative authz endpoint.
const PermManage = "authz:manage"

// AdminHandler exposes catalog listings and grant/revoke operations.
type AdminHandler struct {
	logger    *slog.Logger
	admin     *Admin
	gate      Gate
	validator *validator.Validate
}

// NewAdminHandler builds AdminHandler instance.
func NewAdminHandler(logger *slog.Logger, admin *Admin, gate Gate) *AdminHandler {
	return &AdminHandler{logger: logger, admin: admin, gate: gate, validator: validator.New()}
}

// MountRoutes registers administrative authz routes.
func (h *AdminHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny(PermManage))
		r.Get("/roles", h.listRoles)
		r.Get("/permissions", h.listPermissions)
		r.Get("/roles/{roleID}/bindings", h.listRoleBindings)
		r.Put("/roles/{roleID}/bindings", h.replaceRoleBindings)
		r.Post("/users/{userID}/permissions", h.setCustomPermission)
		r.Post("/users/{userID}/role", h.assignRole)
	})
}

type roleView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
	IsSystem    bool   `json:"is_system"`
}

func (h *AdminHandler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.admin.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, roleView{ID: role.ID, Name: role.Name, DisplayName: role.DisplayName, Level: role.Level, IsSystem: role.IsSystem})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": views})
}

func (h *AdminHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.admin.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

type bindingView struct {
	Permission string   `json:"permission"`
	Conditions []string `json:"conditions,omitempty"`
}

func (h *AdminHandler) listRoleBindings(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	bindings, err := h.admin.ListRoleBindings(r.Context(), roleID)
	if err != nil {
		h.logger.Error("list role bindings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]bindingView, 0, len(bindings))
	for _, binding := range bindings {
		view := bindingView{Permission: binding.Permission}
		for _, cond := range binding.Conditions {
			view.Conditions = append(view.Conditions, cond.Summary())
		}
		views = append(views, view)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bindings": views})
}

type replaceBindingsRequest struct {
	Bindings []struct {
		Permission string          `json:"permission" validate:"required"`
		Conditions json.RawMessage `json:"conditions,omitempty"`
	} `json:"bindings" validate:"dive"`
}

func (h *AdminHandler) replaceRoleBindings(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	var payload replaceBindingsRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	bindings := make([]RolePermission, 0, len(payload.Bindings))
	for _, b := range payload.Bindings {
		conds, err := ParseConditions(b.Conditions)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Condition", err.Error())
			return
		}
		bindings = append(bindings, RolePermission{RoleID: roleID, Permission: b.Permission, Conditions: conds})
	}
	if err := h.admin.ReplaceRoleBindings(r.Context(), roleID, bindings); err != nil {
		h.logger.Error("replace role bindings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type customPermissionRequest struct {
	Permission string `json:"permission" validate:"required,contains=:"`
	Effect     string `json:"effect" validate:"required,oneof=grant revoke clear"`
}

func (h *AdminHandler) setCustomPermission(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var payload customPermissionRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var err error
	switch payload.Effect {
	case "grant":
		err = h.admin.GrantCustomPermission(r.Context(), userID, payload.Permission)
	case "revoke":
		err = h.admin.RevokeCustomPermission(r.Context(), userID, payload.Permission)
	case "clear":
		err = h.admin.ClearCustomPermission(r.Context(), userID, payload.Permission)
	}
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("set custom permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type assignRoleRequest struct {
	RoleID string `json:"role_id" validate:"required"`
}

func (h *AdminHandler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var payload assignRoleRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.admin.AssignRole(r.Context(), userID, payload.RoleID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		h.logger.Error("assign role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
