// Package audithttp exposes the compliance review endpoint over the
// decision trail.
package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rotaworks/rotaworks/internal/audit"
	"github.com/rotaworks/rotaworks/internal/authz"
	"github.com/rotaworks/rotaworks/internal/platform/httpx"
)

// PermRead guards the audit log endpoint.
const PermRead = "audit:read"

// QueryService defines the read contract over the trail.
type QueryService interface {
	Query(ctx context.Context, filters audit.Filters, limit, offset int) ([]audit.Entry, int, error)
}

// Handler serves audit log queries.
type Handler struct {
	logger  *slog.Logger
	service QueryService
	gate    authz.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service QueryService, gate authz.Gate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAny(PermRead))
		r.Get("/logs", h.listLogs)
	})
}

type logView struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Permission string         `json:"permission"`
	Resource   string         `json:"resource"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id,omitempty"`
	Result     string         `json:"result"`
	Reason     string         `json:"reason"`
	BusinessID string         `json:"business_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	At         time.Time      `json:"at"`
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := audit.Filters{
		UserID:   query.Get("user_id"),
		Resource: query.Get("resource"),
		Action:   query.Get("action"),
		Result:   audit.Result(query.Get("result")),
	}
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "from must be RFC3339")
			return
		}
		filters.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "to must be RFC3339")
			return
		}
		filters.To = to
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	entries, total, err := h.service.Query(r.Context(), filters, limit, offset)
	if err != nil {
		h.logger.Error("query audit logs", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	views := make([]logView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, logView{
			ID:         entry.ID.String(),
			UserID:     entry.UserID,
			Permission: entry.Permission,
			Resource:   entry.Resource,
			Action:     entry.Action,
			ResourceID: entry.ResourceID,
			Result:     string(entry.Result),
			Reason:     entry.Reason,
			BusinessID: entry.BusinessID,
			Metadata:   entry.Metadata,
			At:         entry.At,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logs": views, "total": total})
}
