package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewdeskhq/crewdesk/internal/api/middleware"
	"github.com/crewdeskhq/crewdesk/internal/audit"
	"github.com/crewdeskhq/crewdesk/internal/auth"
	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/crewdeskhq/crewdesk/internal/tenant"
)

// OrganizationsStore defines the persistence operations the organizations
// handler needs.
type OrganizationsStore interface {
	GetUserOrganizations(ctx context.Context, userID uuid.UUID) ([]*models.OrgMembershipWithOrg, error)
	GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	CreateOrganization(ctx context.Context, org *models.Organization) error
	CreateMembership(ctx context.Context, m *models.OrgMembership) error
}

// OrganizationsHandler handles organization listing, creation, and the
// active-organization switch.
type OrganizationsHandler struct {
	store    OrganizationsStore
	switcher *tenant.Switcher
	sessions *auth.SessionStore
	recorder *audit.Recorder
	logger   zerolog.Logger
}

// NewOrganizationsHandler creates a new OrganizationsHandler.
func NewOrganizationsHandler(store OrganizationsStore, switcher *tenant.Switcher, sessions *auth.SessionStore, recorder *audit.Recorder, logger zerolog.Logger) *OrganizationsHandler {
	return &OrganizationsHandler{
		store:    store,
		switcher: switcher,
		sessions: sessions,
		recorder: recorder,
		logger:   logger.With().Str("component", "orgs_handler").Logger(),
	}
}

// RegisterRoutes registers organization routes. List, create, and switch
// need only an authenticated user; the current-organization route lives on
// the org-scoped group because it reads the resolved context.
func (h *OrganizationsHandler) RegisterRoutes(authed, scoped *gin.RouterGroup) {
	authed.GET("/orgs", h.List)
	authed.POST("/orgs", h.Create)
	authed.POST("/orgs/:id/switch", h.Switch)
	scoped.GET("/orgs/current", h.Current)
}

// sessionSelector adapts the cookie session store to the switcher's
// request-scoped selector writer.
type sessionSelector struct {
	sessions *auth.SessionStore
	c        *gin.Context
}

func (s *sessionSelector) SetActiveOrg(orgID uuid.UUID) error {
	return s.sessions.SetActiveOrg(s.c.Request, s.c.Writer, orgID)
}

type organizationResponse struct {
	ID   uuid.UUID      `json:"id"`
	Name string         `json:"name"`
	Slug string         `json:"slug"`
	Role models.OrgRole `json:"role"`
}

// List returns every organization the authenticated user belongs to,
// oldest membership first.
func (h *OrganizationsHandler) List(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	memberships, err := h.store.GetUserOrganizations(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list organizations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list organizations"})
		return
	}

	orgs := make([]organizationResponse, 0, len(memberships))
	for _, m := range memberships {
		orgs = append(orgs, organizationResponse{
			ID:   m.OrgID,
			Name: m.OrgName,
			Slug: m.OrgSlug,
			Role: m.Role,
		})
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

// Current returns the organization the request resolved to, with the
// caller's role in it.
func (h *OrganizationsHandler) Current(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}

	org, err := h.store.GetOrganizationByID(c.Request.Context(), orgCtx.OrgID)
	if err != nil {
		h.logger.Error().Err(err).Str("org_id", orgCtx.OrgID.String()).Msg("failed to load organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load organization"})
		return
	}

	c.JSON(http.StatusOK, organizationResponse{
		ID:   org.ID,
		Name: org.Name,
		Slug: org.Slug,
		Role: orgCtx.OrgRole,
	})
}

type createOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// Create creates a new organization with the caller as owner and makes it
// the caller's active organization.
func (h *OrganizationsHandler) Create(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	var req createOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and slug are required"})
		return
	}

	org := models.NewOrganization(req.Name, req.Slug)
	if err := h.store.CreateOrganization(c.Request.Context(), org); err != nil {
		h.logger.Error().Err(err).Str("slug", req.Slug).Msg("failed to create organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}

	membership := models.NewOrgMembership(user.ID, org.ID, models.OrgRoleOwner)
	if err := h.store.CreateMembership(c.Request.Context(), membership); err != nil {
		h.logger.Error().Err(err).Str("org_id", org.ID.String()).Msg("failed to create owner membership")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create organization"})
		return
	}

	principal := &tenant.Principal{UserID: user.ID}
	selector := &sessionSelector{sessions: h.sessions, c: c}
	if _, err := h.switcher.Switch(c.Request.Context(), principal, org.ID, selector); err != nil {
		// The organization exists; only the activation failed.
		h.logger.Error().Err(err).Str("org_id", org.ID.String()).Msg("failed to activate new organization")
	}

	orgCtx := &tenant.OrgContext{UserID: user.ID, OrgID: org.ID, OrgRole: models.OrgRoleOwner}
	_ = h.recorder.Record(c.Request.Context(), orgCtx, audit.Entry{
		Action:     models.AuditActionCreate,
		Resource:   "organization",
		ResourceID: &org.ID,
		NewValues:  audit.NewGenericPayload(map[string]any{"name": org.Name, "slug": org.Slug}),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.JSON(http.StatusCreated, organizationResponse{
		ID:   org.ID,
		Name: org.Name,
		Slug: org.Slug,
		Role: models.OrgRoleOwner,
	})
}

// Switch changes the caller's active organization. Membership in the
// target is re-validated; a non-member gets a 403 and nothing changes.
func (h *OrganizationsHandler) Switch(c *gin.Context) {
	user := middleware.RequireUser(c)
	if user == nil {
		return
	}

	orgID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid organization ID"})
		return
	}

	previousOrg, hadPrevious := h.sessions.GetActiveOrg(c.Request)

	principal := &tenant.Principal{UserID: user.ID}
	selector := &sessionSelector{sessions: h.sessions, c: c}
	membership, err := h.switcher.Switch(c.Request.Context(), principal, orgID, selector)
	if err != nil {
		if errors.Is(err, tenant.ErrNotMember) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a member of the requested organization"})
			return
		}
		h.logger.Error().Err(err).Str("org_id", orgID.String()).Msg("failed to switch organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to switch organization"})
		return
	}

	org, err := h.store.GetOrganizationByID(c.Request.Context(), orgID)
	if err != nil {
		h.logger.Error().Err(err).Str("org_id", orgID.String()).Msg("failed to load switched organization")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to switch organization"})
		return
	}

	entry := audit.Entry{
		Action:     models.AuditActionOrgSwitch,
		Resource:   "organization",
		ResourceID: &orgID,
		NewValues:  audit.NewOrgSwitchPayload(org.ID, org.Slug),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
	if hadPrevious {
		entry.OldValues = audit.NewOrgSwitchPayload(previousOrg, "")
	}
	orgCtx := &tenant.OrgContext{UserID: user.ID, OrgID: org.ID, OrgRole: membership.Role}
	_ = h.recorder.Record(c.Request.Context(), orgCtx, entry)

	c.JSON(http.StatusOK, organizationResponse{
		ID:   org.ID,
		Name: org.Name,
		Slug: org.Slug,
		Role: membership.Role,
	})
}
