package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository on PostgreSQL. The audit_logs table
// is insert-only; nothing in this subsystem updates or deletes rows.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// Insert appends one entry.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("audit: encode metadata: %w", err)
	}
	const query = `INSERT INTO audit_logs
(id, user_id, permission, resource, action, resource_id, result, reason, business_id, metadata, at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Permission, entry.Resource, entry.Action,
		optionalText(entry.ResourceID), string(entry.Result), entry.Reason,
		entry.BusinessID, meta, entry.At)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// List returns matching entries ordered newest first, plus the total
// match count.
func (r *PGRepository) List(ctx context.Context, filters Filters, limit, offset int) ([]Entry, int, error) {
	where, args := buildWhere(filters)

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_logs` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count entries: %w", err)
	}

	listQuery := `SELECT id, user_id, permission, resource, action, resource_id, result, reason, business_id, metadata, at
FROM audit_logs` + where +
		` ORDER BY at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	rows, err := r.pool.Query(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			resourceID pgtype.Text
			result     string
			rawMeta    []byte
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Permission, &entry.Resource, &entry.Action,
			&resourceID, &result, &entry.Reason, &entry.BusinessID, &rawMeta, &entry.At); err != nil {
			return nil, 0, fmt.Errorf("audit: scan entry: %w", err)
		}
		entry.ResourceID = resourceID.String
		entry.Result = Result(result)
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &entry.Metadata); err != nil {
				return nil, 0, fmt.Errorf("audit: decode metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func buildWhere(filters Filters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filters.UserID != "" {
		add("user_id = $%d", filters.UserID)
	}
	if filters.Resource != "" {
		add("resource = $%d", filters.Resource)
	}
	if filters.Action != "" {
		add("action = $%d", filters.Action)
	}
	if filters.Result != "" {
		add("result = $%d", string(filters.Result))
	}
	if !filters.From.IsZero() {
		add("at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("at <= $%d", filters.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}
