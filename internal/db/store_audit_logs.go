package db

import (
	"context"
	"fmt"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/google/uuid"
)

// AuditLogFilter defines filters for querying audit logs. It deliberately
// has no organization field: the organization scope is always injected from
// the caller's resolved context, never accepted as a filter.
type AuditLogFilter struct {
	Action    string
	Resource  string
	Severity  string
	UserID    *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// CreateAuditLog inserts a new audit log entry.
func (db *DB) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO audit_logs (id, org_id, user_id, action, resource, resource_id,
		                        old_values, new_values, severity, category,
		                        ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, entry.ID, entry.OrgID, entry.UserID, string(entry.Action), entry.Resource, entry.ResourceID,
		entry.OldValues, entry.NewValues, string(entry.Severity), entry.Category,
		entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// GetAuditLogByID returns a single audit log entry by ID.
func (db *DB) GetAuditLogByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error) {
	var entry models.AuditLog
	err := db.Pool.QueryRow(ctx, `
		SELECT id, org_id, user_id, action, resource, resource_id,
		       old_values, new_values, severity, category,
		       ip_address, user_agent, created_at
		FROM audit_logs
		WHERE id = $1
	`, id).Scan(&entry.ID, &entry.OrgID, &entry.UserID, &entry.Action, &entry.Resource, &entry.ResourceID,
		&entry.OldValues, &entry.NewValues, &entry.Severity, &entry.Category,
		&entry.IPAddress, &entry.UserAgent, &entry.CreatedAt)
	if err != nil {
		return nil, wrapQueryErr("get audit log", err)
	}
	return &entry, nil
}

// GetAuditLogsByOrgID returns audit logs for an organization, newest first,
// with optional filtering and pagination.
func (db *DB) GetAuditLogsByOrgID(ctx context.Context, orgID uuid.UUID, filter AuditLogFilter) ([]*models.AuditLog, error) {
	query := `
		SELECT id, org_id, user_id, action, resource, resource_id,
		       old_values, new_values, severity, category,
		       ip_address, user_agent, created_at
		FROM audit_logs
		WHERE org_id = $1
	`
	args := []any{orgID}
	argIdx := 2

	query, args, argIdx = appendAuditLogFilters(query, args, argIdx, filter)

	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		var entry models.AuditLog
		if err := rows.Scan(&entry.ID, &entry.OrgID, &entry.UserID, &entry.Action, &entry.Resource, &entry.ResourceID,
			&entry.OldValues, &entry.NewValues, &entry.Severity, &entry.Category,
			&entry.IPAddress, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}

	return logs, nil
}

// CountAuditLogsByOrgID returns the count of audit logs for an organization
// with optional filtering.
func (db *DB) CountAuditLogsByOrgID(ctx context.Context, orgID uuid.UUID, filter AuditLogFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM audit_logs WHERE org_id = $1`
	args := []any{orgID}
	argIdx := 2

	query, args, _ = appendAuditLogFilters(query, args, argIdx, filter)

	var count int64
	err := db.Pool.QueryRow(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return count, nil
}

// CleanupAuditLogs deletes audit logs older than retentionDays and returns
// the number of rows removed.
func (db *DB) CleanupAuditLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM audit_logs WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup audit logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// appendAuditLogFilters appends WHERE clauses for the given filter to the query.
func appendAuditLogFilters(query string, args []any, argIdx int, filter AuditLogFilter) (string, []any, int) {
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", argIdx)
		args = append(args, filter.Action)
		argIdx++
	}

	if filter.Resource != "" {
		query += fmt.Sprintf(" AND resource = $%d", argIdx)
		args = append(args, filter.Resource)
		argIdx++
	}

	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, filter.Severity)
		argIdx++
	}

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, *filter.UserID)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}

	return query, args, argIdx
}
