package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rotaworks/rotaworks/internal/observability"
	"github.com/rotaworks/rotaworks/internal/shared"
)

// Repository defines persistence for the decision trail.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filters Filters, limit, offset int) ([]Entry, int, error)
}

// Service records decisions and serves compliance queries.
type Service struct {
	repo    Repository
	logger  *slog.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

// NewService constructs the audit service.
func NewService(repo Repository, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, metrics: metrics, clock: time.Now}
}

// Record persists one entry, best-effort. A failed write never blocks or
// alters the decision already computed; it is logged and counted so
// silent audit loss stays detectable.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: service not initialised")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.At.IsZero() {
		entry.At = s.clock()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			slog.String("user_id", entry.UserID),
			slog.String("permission", entry.Permission),
			slog.String("result", string(entry.Result)),
			slog.Any("error", err))
		s.metrics.AuditWriteFailure()
		return err
	}
	return nil
}

// Query returns matching entries with the total match count for paging.
func (s *Service) Query(ctx context.Context, filters Filters, limit, offset int) ([]Entry, int, error) {
	limit, offset = shared.LimitOffset(limit, offset)
	return s.repo.List(ctx, filters, limit, offset)
}
