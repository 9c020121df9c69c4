package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action that was audited.
type AuditAction string

const (
	// Session actions
	AuditActionLogin  AuditAction = "login"
	AuditActionLogout AuditAction = "logout"

	// CRUD actions
	AuditActionCreate AuditAction = "create"
	AuditActionRead   AuditAction = "read"
	AuditActionUpdate AuditAction = "update"
	AuditActionDelete AuditAction = "delete"

	// Tenancy actions
	AuditActionOrgSwitch AuditAction = "org_switch"
)

// AuditSeverity is a structured severity tag. It is a free-form string at
// this layer and is preserved verbatim from caller to storage so downstream
// alerting can filter on it.
type AuditSeverity string

const (
	AuditSeverityError   AuditSeverity = "ERROR"
	AuditSeverityWarning AuditSeverity = "WARNING"
	AuditSeverityInfo    AuditSeverity = "INFO"
	AuditSeverityDebug   AuditSeverity = "DEBUG"
)

// AuditLog represents a single audit log entry.
//
// OrgID is non-nil for every entry written through the tenant-scoped
// recording path; only explicitly-labeled system-level events carry a nil
// organization.
type AuditLog struct {
	ID         uuid.UUID       `json:"id"`
	OrgID      *uuid.UUID      `json:"org_id,omitempty"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	Action     AuditAction     `json:"action"`
	Resource   string          `json:"resource"`
	ResourceID *uuid.UUID      `json:"resource_id,omitempty"`
	OldValues  json.RawMessage `json:"old_values,omitempty"`
	NewValues  json.RawMessage `json:"new_values,omitempty"`
	Severity   AuditSeverity   `json:"severity"`
	Category   string          `json:"category,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewAuditLog creates a new organization-scoped AuditLog entry.
func NewAuditLog(orgID uuid.UUID, action AuditAction, resource string) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		OrgID:     &orgID,
		Action:    action,
		Resource:  resource,
		Severity:  AuditSeverityInfo,
		CreatedAt: time.Now(),
	}
}

// NewSystemAuditLog creates an AuditLog entry for a system-level event that
// has no organization scope. This is the only constructor that leaves OrgID
// nil.
func NewSystemAuditLog(action AuditAction, resource string) *AuditLog {
	return &AuditLog{
		ID:        uuid.New(),
		Action:    action,
		Resource:  resource,
		Severity:  AuditSeverityInfo,
		Category:  "system",
		CreatedAt: time.Now(),
	}
}

// WithUser sets the acting user for the audit log.
func (a *AuditLog) WithUser(userID uuid.UUID) *AuditLog {
	a.UserID = &userID
	return a
}

// WithResource sets the resource being acted upon.
func (a *AuditLog) WithResource(resourceID uuid.UUID) *AuditLog {
	a.ResourceID = &resourceID
	return a
}

// WithSeverity overrides the default INFO severity.
func (a *AuditLog) WithSeverity(severity AuditSeverity) *AuditLog {
	a.Severity = severity
	return a
}

// WithCategory sets the category tag.
func (a *AuditLog) WithCategory(category string) *AuditLog {
	a.Category = category
	return a
}

// WithRequestInfo sets HTTP request information.
func (a *AuditLog) WithRequestInfo(ipAddress, userAgent string) *AuditLog {
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}

// IsSystemEvent returns true if the entry was written by the system-level
// (non-tenant) path.
func (a *AuditLog) IsSystemEvent() bool {
	return a.OrgID == nil
}
