package authz

import (
	"log/slog"
	"net/http"

	"github.com/rotaworks/rotaworks/internal/platform/httpx"
	"github.com/rotaworks/rotaworks/internal/shared"
)

// Gate rejection codes.
const (
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodePermissionDenied = "PERMISSION_DENIED"
)

// ResourceExtractor pulls the resource identifier out of a request, for
// example a chi URL parameter.
type ResourceExtractor func(*http.Request) string

// Gate wraps protected handlers with authorization checks. It delegates
// identity to the session layer, builds the authorization request and
// translates decisions into structured HTTP rejections.
type Gate struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

type gateMode int

const (
	modeAny gateMode = iota
	modeAll
)

type denialBody struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Required []string `json:"required,omitempty"`
	Granted  []string `json:"granted,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// RequireAny admits the request when at least one permission is granted.
func (g Gate) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return g.middleware(modeAny, nil, perms)
}

// RequireAll admits the request only when every permission is granted.
func (g Gate) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return g.middleware(modeAll, nil, perms)
}

// RequireAnyWithResource is RequireAny with a resource extractor feeding
// ownership conditions.
func (g Gate) RequireAnyWithResource(extract ResourceExtractor, perms ...string) func(http.Handler) http.Handler {
	return g.middleware(modeAny, extract, perms)
}

// RequireAllWithResource is RequireAll with a resource extractor.
func (g Gate) RequireAllWithResource(extract ResourceExtractor, perms ...string) func(http.Handler) http.Handler {
	return g.middleware(modeAll, extract, perms)
}

func (g Gate) middleware(mode gateMode, extract ResourceExtractor, perms []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				// Authentication failures are never logged as
				// permission decisions.
				httpx.JSON(w, http.StatusUnauthorized, denialBody{
					Error: "authentication required",
					Code:  CodeAuthRequired,
				})
				return
			}

			req := Request{
				UserID:     sess.User(),
				BusinessID: sess.Business(),
				Metadata: map[string]any{
					"ip":         r.RemoteAddr,
					"user_agent": r.UserAgent(),
					"path":       r.URL.Path,
				},
			}
			if extract != nil {
				req.ResourceID = extract(r)
			}

			decisions := g.Resolver.AuthorizeAll(r.Context(), perms, req)
			granted := make([]string, 0, len(perms))
			var firstDenial string
			for _, perm := range perms {
				dec := decisions[perm]
				if dec.Granted {
					granted = append(granted, perm)
				} else if firstDenial == "" {
					firstDenial = dec.Reason
				}
			}

			ok := len(granted) == len(perms)
			if mode == modeAny {
				ok = len(granted) > 0
			}
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			if g.Logger != nil {
				g.Logger.Warn("request rejected",
					slog.String("user_id", req.UserID),
					slog.String("path", r.URL.Path),
					slog.String("reason", firstDenial))
			}
			httpx.JSON(w, http.StatusForbidden, denialBody{
				Error:    "permission denied",
				Code:     CodePermissionDenied,
				Required: perms,
				Granted:  granted,
				Reason:   firstDenial,
			})
		})
	}
}
