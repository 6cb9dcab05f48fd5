package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	entries []Entry
	err     error
}

func (r *memRepo) Insert(_ context.Context, entry Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memRepo) List(_ context.Context, filters Filters, limit, offset int) ([]Entry, int, error) {
	if r.err != nil {
		return nil, 0, r.err
	}
	var matched []Entry
	for _, e := range r.entries {
		if filters.UserID != "" && e.UserID != filters.UserID {
			continue
		}
		if filters.Result != "" && e.Result != filters.Result {
			continue
		}
		matched = append(matched, e)
	}
	total := len(matched)
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func TestRecordFillsIDAndTimestamp(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)

	err := svc.Record(context.Background(), Entry{
		UserID:     "user-1",
		Permission: "orders:read",
		Result:     ResultGranted,
		Reason:     "granted via role Yönetici",
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)
	require.NotEqual(t, uuid.Nil, repo.entries[0].ID)
	require.False(t, repo.entries[0].At.IsZero())
}

func TestRecordPreservesCallerFields(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)

	id := uuid.New()
	at := time.Date(2025, time.March, 4, 10, 0, 0, 0, time.UTC)
	err := svc.Record(context.Background(), Entry{ID: id, At: at, UserID: "user-1", Result: ResultDenied})
	require.NoError(t, err)
	require.Equal(t, id, repo.entries[0].ID)
	require.Equal(t, at, repo.entries[0].At)
}

func TestRecordSurfacesWriteFailure(t *testing.T) {
	repo := &memRepo{err: errors.New("disk full")}
	svc := newTestService(repo)

	err := svc.Record(context.Background(), Entry{UserID: "user-1", Result: ResultGranted})
	require.Error(t, err)
}

func TestQueryAppliesFiltersAndPaging(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	for i := 0; i < 5; i++ {
		result := ResultGranted
		if i%2 == 1 {
			result = ResultDenied
		}
		require.NoError(t, svc.Record(context.Background(), Entry{UserID: "user-1", Result: result}))
	}
	require.NoError(t, svc.Record(context.Background(), Entry{UserID: "user-2", Result: ResultGranted}))

	entries, total, err := svc.Query(context.Background(), Filters{UserID: "user-1", Result: ResultGranted}, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, entries, 2)

	entries, total, err = svc.Query(context.Background(), Filters{UserID: "user-1", Result: ResultGranted}, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, entries, 1)
}

func TestQueryNormalisesPaging(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	require.NoError(t, svc.Record(context.Background(), Entry{UserID: "user-1", Result: ResultGranted}))

	// Negative paging values fall back to defaults instead of erroring.
	entries, total, err := svc.Query(context.Background(), Filters{}, -1, -5)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, entries, 1)
}
