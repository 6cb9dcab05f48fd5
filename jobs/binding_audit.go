package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rotaworks/rotaworks/internal/authz"
)

// BindingAuditJob re-parses every stored role permission condition and
// reports rows the engine would reject at load time. Malformed rows slip
// in through manual seeds or schema migrations; the engine fails closed
// on them, so surfacing the row beats a silent deny in production.
type BindingAuditJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewBindingAuditJob initialises the binding audit handler.
func NewBindingAuditJob(pool *pgxpool.Pool, logger *slog.Logger) *BindingAuditJob {
	return &BindingAuditJob{Pool: pool, Logger: logger}
}

// Handle executes the audit scan.
func (j *BindingAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("binding audit: handler not configured")
	}
	var payload BindingAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := j.Pool.Query(ctx,
		`SELECT role_id, permission_name, conditions FROM role_permissions WHERE conditions IS NOT NULL`)
	if err != nil {
		j.Logger.Error("binding audit query failed", slog.Any("error", err))
		return err
	}
	defer rows.Close()

	checked, invalid := 0, 0
	for rows.Next() {
		var (
			roleID     string
			permission string
			raw        []byte
		)
		if err := rows.Scan(&roleID, &permission, &raw); err != nil {
			return err
		}
		checked++
		if _, err := authz.ParseConditions(raw); err != nil {
			invalid++
			j.Logger.Warn("invalid role permission condition",
				slog.String("role_id", roleID),
				slog.String("permission", permission),
				slog.Any("error", err))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	j.Logger.Info("binding audit complete", slog.Int("checked", checked), slog.Int("invalid", invalid))
	return nil
}
