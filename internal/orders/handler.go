package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rotaworks/rotaworks/internal/authz"
	"github.com/rotaworks/rotaworks/internal/platform/httpx"
	"github.com/rotaworks/rotaworks/internal/shared"
)

// Permissions consumed by this module.
const (
	PermRead   = "orders:read"
	PermCreate = "orders:create"
	PermUpdate = "orders:update"
)

// Handler serves order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    authz.Gate
	valid   *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate authz.Gate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, valid: validator.New()}
}

func orderIDParam(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}

// MountRoutes registers order routes. Update routes carry the order ID as
// the authorization resource so ownership conditions apply per order.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny(PermRead))
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAnyWithResource(orderIDParam, PermUpdate))
		r.Post("/{orderID}/status", h.updateStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAll(PermUpdate, "users:read"))
		r.Post("/{orderID}/assign", h.assignOrder)
	})
}

type orderView struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	AssignedTo string    `json:"assigned_to,omitempty"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toView(order Order) orderView {
	return orderView{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		AssignedTo: order.AssignedTo,
		Status:     order.Status,
		Notes:      order.Notes,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	result, err := h.service.List(r.Context(), sess.Business(), limit, offset)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]orderView, 0, len(result))
	for _, order := range result {
		views = append(views, toView(order))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	order, err := h.service.Get(r.Context(), sess.Business(), orderIDParam(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(*order))
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=ASSIGNED EN_ROUTE COMPLETED CANCELLED"`
	Notes  string `json:"notes"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "status must be a valid lifecycle state")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.UpdateStatus(r.Context(), sess.Business(), orderIDParam(r), req.Status, req.Notes); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRequest struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
}

func (h *Handler) assignOrder(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "request body must be valid JSON")
		return
	}
	if err := h.valid.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "driver_id must be a UUID")
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if err := h.service.Assign(r.Context(), sess.Business(), orderIDParam(r), req.DriverID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
