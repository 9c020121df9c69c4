package models

import (
	"time"

	"github.com/google/uuid"
)

// OrgRole defines the role of a user within an organization.
type OrgRole string

const (
	// OrgRoleOwner has full control over the organization.
	OrgRoleOwner OrgRole = "owner"
	// OrgRoleAdmin can manage members, credentials, and all resources.
	OrgRoleAdmin OrgRole = "admin"
	// OrgRoleMember can create and manage resources.
	OrgRoleMember OrgRole = "member"
	// OrgRoleViewer has view-only access.
	OrgRoleViewer OrgRole = "viewer"
)

// ValidOrgRoles returns all valid organization roles.
func ValidOrgRoles() []OrgRole {
	return []OrgRole{OrgRoleOwner, OrgRoleAdmin, OrgRoleMember, OrgRoleViewer}
}

// IsValidOrgRole checks if the given role is a valid organization role.
func IsValidOrgRole(role string) bool {
	for _, r := range ValidOrgRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}

// OrgMembership represents a user's membership in an organization.
// A (UserID, OrgID) pair has at most one membership row.
type OrgMembership struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	OrgID    uuid.UUID `json:"org_id"`
	Role     OrgRole   `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// NewOrgMembership creates a new OrgMembership joined now.
func NewOrgMembership(userID, orgID uuid.UUID, role OrgRole) *OrgMembership {
	return &OrgMembership{
		ID:       uuid.New(),
		UserID:   userID,
		OrgID:    orgID,
		Role:     role,
		JoinedAt: time.Now(),
	}
}

// IsOwner returns true if the membership role is owner.
func (m *OrgMembership) IsOwner() bool {
	return m.Role == OrgRoleOwner
}

// IsAdmin returns true if the membership role is admin or owner.
func (m *OrgMembership) IsAdmin() bool {
	return m.Role == OrgRoleAdmin || m.Role == OrgRoleOwner
}

// CanWrite returns true if the membership can create/modify resources.
func (m *OrgMembership) CanWrite() bool {
	return m.Role == OrgRoleOwner || m.Role == OrgRoleAdmin || m.Role == OrgRoleMember
}

// OrgMembershipWithOrg includes organization details for display.
type OrgMembershipWithOrg struct {
	OrgMembership
	OrgName string `json:"org_name"`
	OrgSlug string `json:"org_slug"`
}
