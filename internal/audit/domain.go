// Package audit maintains the append-only trail of authorization decisions.
// Entries are written once per decision and are never updated or deleted.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Result classifies the outcome recorded for a decision.
type Result string

const (
	ResultGranted Result = "GRANTED"
	ResultDenied  Result = "DENIED"
	ResultError   Result = "ERROR"
)

// Entry is one immutable record of an authorization decision.
type Entry struct {
	ID         uuid.UUID
	UserID     string
	Permission string
	Resource   string
	Action     string
	ResourceID string
	Result     Result
	Reason     string
	BusinessID string
	Metadata   map[string]any
	At         time.Time
}

// Filters narrows a compliance query over the trail. Zero values are
// ignored.
type Filters struct {
	UserID   string
	Resource string
	Action   string
	Result   Result
	From     time.Time
	To       time.Time
}
