package audit

import (
	"context"
	"errors"

	"github.com/crewdeskhq/crewdesk/internal/db"
	"github.com/crewdeskhq/crewdesk/internal/metrics"
	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/crewdeskhq/crewdesk/internal/tenant"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNoTenantContext indicates the tenant-scoped recording path was called
// without a resolved OrgContext. That is a programming error in the caller,
// not a runtime condition to degrade around.
var ErrNoTenantContext = errors.New("audit record requires a resolved org context")

// Store defines the persistence operations the recorder needs.
type Store interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	GetAuditLogsByOrgID(ctx context.Context, orgID uuid.UUID, filter db.AuditLogFilter) ([]*models.AuditLog, error)
	GetAuditLogByID(ctx context.Context, id uuid.UUID) (*models.AuditLog, error)
	CountAuditLogsByOrgID(ctx context.Context, orgID uuid.UUID, filter db.AuditLogFilter) (int64, error)
}

// Entry describes one auditable event.
type Entry struct {
	Action     models.AuditAction
	Resource   string
	ResourceID *uuid.UUID
	OldValues  *Payload
	NewValues  *Payload
	Severity   models.AuditSeverity
	Category   string
	IPAddress  string
	UserAgent  string
}

// Recorder writes and reads the audit trail. Writes are best-effort relative
// to the primary action they document: a failed persistence attempt is
// logged locally and never aborts the caller's operation.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// NewRecorder creates a new Recorder.
func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record writes one tenant-scoped audit record stamped with the
// organization from orgCtx. Calling it without a resolved context returns
// ErrNoTenantContext; a record must never carry a guessed or null
// organization through this path. Store failures are swallowed after a
// local diagnostic emission.
func (r *Recorder) Record(ctx context.Context, orgCtx *tenant.OrgContext, e Entry) error {
	if orgCtx == nil || orgCtx.OrgID == uuid.Nil {
		r.logger.Error().
			Str("action", string(e.Action)).
			Str("resource", e.Resource).
			Msg("tenant-scoped audit record attempted without org context")
		return ErrNoTenantContext
	}

	entry := models.NewAuditLog(orgCtx.OrgID, e.Action, e.Resource).
		WithUser(orgCtx.UserID).
		WithRequestInfo(e.IPAddress, e.UserAgent)
	r.persist(ctx, entry, e)
	return nil
}

// RecordSystem writes one system-level audit record with no organization
// scope. This is the only null-organization path and every record it writes
// is labeled with the system category.
func (r *Recorder) RecordSystem(ctx context.Context, userID *uuid.UUID, e Entry) {
	entry := models.NewSystemAuditLog(e.Action, e.Resource)
	if userID != nil {
		entry.WithUser(*userID)
	}
	entry.WithRequestInfo(e.IPAddress, e.UserAgent)
	r.persist(ctx, entry, e)
}

// persist applies the entry fields and writes, degrading failures to a log
// line.
func (r *Recorder) persist(ctx context.Context, entry *models.AuditLog, e Entry) {
	if e.ResourceID != nil {
		entry.WithResource(*e.ResourceID)
	}
	if e.Severity != "" {
		entry.WithSeverity(e.Severity)
	}
	if e.Category != "" {
		entry.WithCategory(e.Category)
	}

	var err error
	if entry.OldValues, err = e.OldValues.Marshal(); err != nil {
		r.logger.Error().Err(err).Str("action", string(e.Action)).Msg("failed to marshal audit old values")
		metrics.AuditWrites.WithLabelValues("failed").Inc()
		return
	}
	if entry.NewValues, err = e.NewValues.Marshal(); err != nil {
		r.logger.Error().Err(err).Str("action", string(e.Action)).Msg("failed to marshal audit new values")
		metrics.AuditWrites.WithLabelValues("failed").Inc()
		return
	}

	if err := r.store.CreateAuditLog(ctx, entry); err != nil {
		r.logger.Error().Err(err).
			Str("action", string(e.Action)).
			Str("resource", e.Resource).
			Msg("failed to create audit log")
		metrics.AuditWrites.WithLabelValues("failed").Inc()
		return
	}
	metrics.AuditWrites.WithLabelValues("ok").Inc()
}

// Logs returns audit records for the caller's organization, newest first.
// The organization scope always comes from orgCtx; the filter type has no
// organization field, so a cross-tenant read is unexpressible here.
func (r *Recorder) Logs(ctx context.Context, orgCtx *tenant.OrgContext, filter db.AuditLogFilter) ([]*models.AuditLog, error) {
	if orgCtx == nil || orgCtx.OrgID == uuid.Nil {
		return nil, ErrNoTenantContext
	}
	return r.store.GetAuditLogsByOrgID(ctx, orgCtx.OrgID, filter)
}

// Count returns the number of audit records matching the filter within the
// caller's organization.
func (r *Recorder) Count(ctx context.Context, orgCtx *tenant.OrgContext, filter db.AuditLogFilter) (int64, error) {
	if orgCtx == nil || orgCtx.OrgID == uuid.Nil {
		return 0, ErrNoTenantContext
	}
	return r.store.CountAuditLogsByOrgID(ctx, orgCtx.OrgID, filter)
}

// Get returns one audit record by ID, verified to belong to the caller's
// organization. System records (null org) are not readable through the
// tenant path.
func (r *Recorder) Get(ctx context.Context, orgCtx *tenant.OrgContext, id uuid.UUID) (*models.AuditLog, error) {
	if orgCtx == nil || orgCtx.OrgID == uuid.Nil {
		return nil, ErrNoTenantContext
	}
	entry, err := r.store.GetAuditLogByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.OrgID == nil || *entry.OrgID != orgCtx.OrgID {
		return nil, db.ErrNotFound
	}
	return entry, nil
}
