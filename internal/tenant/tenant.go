// Package tenant implements the tenant-isolation core: resolving which
// organization a request acts on behalf of, and the single write path for a
// user's active-organization preference.
package tenant

import (
	"errors"

	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNoAuth indicates no usable principal was supplied.
	ErrNoAuth = errors.New("no authenticated principal")
	// ErrNoOrg indicates the principal is authenticated but belongs to no
	// organization.
	ErrNoOrg = errors.New("user has no organization memberships")
	// ErrNotMember indicates a switch target the caller is not a member of.
	ErrNotMember = errors.New("not a member of the requested organization")
	// ErrInvalidOrg indicates the selected org id was not found among the
	// loaded memberships. Defensive: unreachable given the resolver's
	// selection order.
	ErrInvalidOrg = errors.New("selected organization not in membership set")
)

// Principal is an authenticated identity, independent of which organization
// it is currently acting for. It is produced by the authentication layer.
type Principal struct {
	UserID uuid.UUID
}

// OrgContext is the request-scoped tenancy context. It is constructed fresh
// per request by the Resolver, reused for the entirety of that request, and
// never persisted or cached across requests.
type OrgContext struct {
	UserID  uuid.UUID
	OrgID   uuid.UUID
	OrgRole models.OrgRole
}

// IsAdmin returns true if the context's role is admin or owner.
func (oc *OrgContext) IsAdmin() bool {
	return oc.OrgRole == models.OrgRoleAdmin || oc.OrgRole == models.OrgRoleOwner
}

// CanWrite returns true if the context's role can create/modify resources.
func (oc *OrgContext) CanWrite() bool {
	return oc.OrgRole == models.OrgRoleOwner || oc.OrgRole == models.OrgRoleAdmin || oc.OrgRole == models.OrgRoleMember
}
