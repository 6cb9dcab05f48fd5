package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/rotaworks/rotaworks/internal/audit"
	"github.com/rotaworks/rotaworks/internal/observability"
)

// DecisionRecorder persists one audit entry per decision. Implementations
// must be best-effort: a failed write never changes a decision.
type DecisionRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// ResolverConfig collects the adapters and knobs for a Resolver.
type ResolverConfig struct {
	Identity  IdentityLookup
	Catalog   PermissionCatalog
	Evaluator *Evaluator
	Recorder  DecisionRecorder
	Metrics   *observability.Metrics
	Logger    *slog.Logger
	CacheTTL  time.Duration
	Clock     Clock
}

// Resolver orchestrates the authorization decision: cached identity
// lookup, custom overrides, role bindings, conditional grants and the
// legacy-role fallback. Safe for arbitrary concurrent use; the snapshot
// cache is its only shared mutable state.
type Resolver struct {
	identity  IdentityLookup
	catalog   PermissionCatalog
	evaluator *Evaluator
	recorder  DecisionRecorder
	metrics   *observability.Metrics
	logger    *slog.Logger
	clock     Clock

	cache *snapshotCache
	group singleflight.Group
}

// NewResolver constructs a Resolver. Each instance owns its cache, so
// tests can run isolated engines concurrently.
func NewResolver(cfg ResolverConfig) *Resolver {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = NewEvaluator(clock)
	}
	return &Resolver{
		identity:  cfg.Identity,
		catalog:   cfg.Catalog,
		evaluator: evaluator,
		recorder:  cfg.Recorder,
		metrics:   cfg.Metrics,
		logger:    logger,
		clock:     clock,
		cache:     newSnapshotCache(cfg.CacheTTL, clock),
	}
}

// Authorize decides whether the user in req may exercise permission.
// Exactly one audit entry is recorded after the decision is final,
// regardless of outcome. Storage failures fail closed: the caller sees a
// generic denial while full detail goes to the server log.
func (r *Resolver) Authorize(ctx context.Context, permission string, req Request) Decision {
	decision, result := r.resolve(ctx, permission, req)
	r.metrics.ObserveDecision(string(result))
	// A call cancelled mid-flight must not leave a half-formed trail.
	if ctx.Err() == nil {
		r.record(ctx, permission, req, decision, result)
	}
	return decision
}

// AuthorizeAll evaluates every permission independently, without
// short-circuiting, and audits each one.
func (r *Resolver) AuthorizeAll(ctx context.Context, permissions []string, req Request) map[string]Decision {
	decisions := make(map[string]Decision, len(permissions))
	for _, perm := range permissions {
		decisions[perm] = r.Authorize(ctx, perm, req)
	}
	return decisions
}

// InvalidateUser drops the cached snapshot for a user. Administrative
// mutations call this synchronously before reporting success, so a revoke
// is observable by the very next authorize.
func (r *Resolver) InvalidateUser(userID string) {
	r.cache.invalidate(userID)
	r.metrics.CacheEvent("invalidate")
}

// InvalidateAll flushes the whole cache. Used after role or binding
// changes, which are rare enough that a full flush is the simplest safe
// answer.
func (r *Resolver) InvalidateAll() {
	r.cache.clear()
	r.metrics.CacheEvent("clear")
}

func (r *Resolver) resolve(ctx context.Context, permission string, req Request) (Decision, audit.Result) {
	snap, err := r.loadSnapshot(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Decision{Granted: false, Reason: reasonUserNotFound}, audit.ResultDenied
		}
		return r.failClosed(permission, req, "load user snapshot", err)
	}

	if !snap.IsActive {
		return Decision{Granted: false, Reason: reasonUserInactive}, audit.ResultDenied
	}

	if req.BusinessID != "" && req.BusinessID != snap.BusinessID {
		return Decision{Granted: false, Reason: reasonBusinessMismatch}, audit.ResultDenied
	}
	// Ownership checkers are tenant-scoped. A caller that omits the tenant
	// authorizes within the user's own business.
	if req.BusinessID == "" {
		req.BusinessID = snap.BusinessID
	}

	// A custom override short-circuits role logic in both directions.
	if allowed, ok := snap.CustomPermissions[permission]; ok {
		if allowed {
			return Decision{Granted: true, Reason: reasonCustomGranted}, audit.ResultGranted
		}
		return Decision{Granted: false, Reason: reasonCustomDenied}, audit.ResultDenied
	}

	roleID, err := r.effectiveRoleID(ctx, snap)
	if err != nil {
		return r.failClosed(permission, req, "resolve effective role", err)
	}

	if roleID != "" {
		decision, final, err := r.resolveRole(ctx, roleID, permission, req)
		if err != nil {
			return r.failClosed(permission, req, "resolve role binding", err)
		}
		if final {
			if decision.Granted {
				return decision, audit.ResultGranted
			}
			return decision, audit.ResultDenied
		}
	}

	if decision, ok := legacyFallback(snap.LegacyRole, permission); ok {
		return decision, audit.ResultGranted
	}
	// A user with neither a role nor a legacy label lands on the same
	// final deny as an unbound role.
	return Decision{Granted: false, Reason: reasonNotGrantedByRole}, audit.ResultDenied
}

// loadSnapshot serves from cache when fresh, otherwise loads through
// singleflight so concurrent misses for one user hit storage once. The
// flight key carries the invalidation generation: callers arriving after
// an invalidate never join a stale flight.
func (r *Resolver) loadSnapshot(ctx context.Context, userID string) (*UserSnapshot, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	if snap := r.cache.get(userID); snap != nil {
		r.metrics.CacheEvent("hit")
		return snap, nil
	}
	r.metrics.CacheEvent("miss")

	gen := r.cache.generation(userID)
	key := fmt.Sprintf("%s#%d", userID, gen)
	v, err, _ := r.group.Do(key, func() (any, error) {
		snap, err := r.identity.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		r.cache.put(userID, snap, gen)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*UserSnapshot), nil
}

func (r *Resolver) effectiveRoleID(ctx context.Context, snap *UserSnapshot) (string, error) {
	if snap.RoleID != "" {
		return snap.RoleID, nil
	}
	if snap.LegacyRole == "" {
		return "", nil
	}
	role, err := r.catalog.GetRoleByName(ctx, snap.LegacyRole)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return "", nil
		}
		return "", err
	}
	return role.ID, nil
}

// resolveRole returns final=false when the binding is absent, which sends
// resolution on to the legacy fallback. A condition failure is a final
// deny carrying the evaluator's reason.
func (r *Resolver) resolveRole(ctx context.Context, roleID, permission string, req Request) (Decision, bool, error) {
	binding, err := r.catalog.GetRolePermission(ctx, roleID, permission)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return Decision{}, false, nil
		}
		return Decision{}, false, err
	}

	role, err := r.catalog.GetRole(ctx, roleID)
	if err != nil {
		return Decision{}, false, err
	}

	if len(binding.Conditions) == 0 {
		return Decision{Granted: true, Reason: fmt.Sprintf("granted via role %s", role.DisplayName)}, true, nil
	}

	dec, err := r.evaluator.Evaluate(ctx, binding.Conditions, req)
	if err != nil {
		return Decision{}, false, err
	}
	if !dec.Granted {
		return dec, true, nil
	}
	summaries := make([]string, 0, len(binding.Conditions))
	for _, cond := range binding.Conditions {
		summaries = append(summaries, cond.Summary())
	}
	reason := fmt.Sprintf("granted via role %s (%s)", role.DisplayName, strings.Join(summaries, ", "))
	return Decision{Granted: true, Reason: reason}, true, nil
}

// legacyFallback bridges the pre-migration enum role field to the
// relational model: OWNER keeps everything, MANAGER keeps the user
// management read/update pair, EMPLOYEE keeps read-only user access.
func legacyFallback(label, permission string) (Decision, bool) {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return Decision{}, false
	}
	granted := false
	switch label {
	case RoleOwner:
		granted = true
	case RoleManager:
		granted = permission == "users:read" || permission == "users:update"
	case RoleEmployee:
		granted = permission == "users:read"
	}
	if !granted {
		return Decision{}, false
	}
	return Decision{Granted: true, Reason: fmt.Sprintf("granted by legacy role fallback (%s)", label)}, true
}

func (r *Resolver) failClosed(permission string, req Request, op string, err error) (Decision, audit.Result) {
	r.logger.Error("authorization resolution failed",
		slog.String("op", op),
		slog.String("permission", permission),
		slog.String("user_id", req.UserID),
		slog.Any("error", err))
	return Decision{Granted: false, Reason: reasonResolutionFailure}, audit.ResultError
}

func (r *Resolver) record(ctx context.Context, permission string, req Request, decision Decision, result audit.Result) {
	if r.recorder == nil {
		return
	}
	resource, action := splitPermission(permission)
	entry := audit.Entry{
		ID:         uuid.New(),
		UserID:     req.UserID,
		Permission: permission,
		Resource:   resource,
		Action:     action,
		ResourceID: req.ResourceID,
		Result:     result,
		Reason:     decision.Reason,
		BusinessID: req.BusinessID,
		Metadata:   req.Metadata,
		At:         r.clock(),
	}
	_ = r.recorder.Record(ctx, entry)
}

func splitPermission(permission string) (resource, action string) {
	if idx := strings.IndexByte(permission, ':'); idx >= 0 {
		return permission[:idx], permission[idx+1:]
	}
	return permission, ""
}
