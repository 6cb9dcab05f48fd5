package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/rotaworks/rotaworks/internal/audit/http"
	"github.com/rotaworks/rotaworks/internal/auth"
	"github.com/rotaworks/rotaworks/internal/authz"
	"github.com/rotaworks/rotaworks/internal/observability"
	"github.com/rotaworks/rotaworks/internal/orders"
	"github.com/rotaworks/rotaworks/internal/shared"
	"github.com/rotaworks/rotaworks/internal/users"
	"github.com/rotaworks/rotaworks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler   *auth.Handler
	UsersHandler  *users.Handler
	OrdersHandler *orders.Handler
	AdminHandler  *authz.AdminHandler
	AuditHandler  *audithttp.Handler
	JobsHandler   *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Rotaworks defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.OrdersHandler != nil {
		r.Route("/orders", params.OrdersHandler.MountRoutes)
	}
	if params.AdminHandler != nil {
		r.Route("/authz", params.AdminHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
