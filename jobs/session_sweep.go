package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionSweepJob deletes session records past their expiry. Redis keys
// expire on their own; this keeps the postgres audit copy bounded.
type SessionSweepJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewSessionSweepJob initialises the sweep handler.
func NewSessionSweepJob(pool *pgxpool.Pool, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("session sweep: handler not configured")
	}
	var payload SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tag, err := j.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, j.clock())
	if err != nil {
		j.Logger.Error("session sweep failed", slog.Any("error", err))
		return err
	}
	j.Logger.Info("session sweep complete", slog.Int64("removed", tag.RowsAffected()))
	return nil
}
