package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep removes expired session records from postgres.
	TaskSessionSweep = "sessions:sweep"
	// TaskBindingAudit validates stored role permission conditions.
	TaskBindingAudit = "authz:binding-audit"
)

// SessionSweepPayload carries scheduling metadata.
type SessionSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSessionSweepTask constructs an Asynq task for the session sweep.
func NewSessionSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, body, asynq.Queue(QueueDefault)), nil
}

// BindingAuditPayload carries scheduling metadata.
type BindingAuditPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewBindingAuditTask constructs an Asynq task for the binding audit.
func NewBindingAuditTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(BindingAuditPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBindingAudit, body, asynq.Queue(QueueDefault)), nil
}
