package middleware

import (
	"errors"
	"net/http"

	"github.com/crewdeskhq/crewdesk/internal/auth"
	"github.com/crewdeskhq/crewdesk/internal/tenant"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OrgContextMiddleware resolves the active organization once per request and
// stashes the OrgContext in the Gin context. Every downstream data access
// and audit write in the request reuses that context; nothing re-resolves
// mid-request, so a concurrent switch by the same user cannot split one
// logical operation across two organizations.
//
// Must run after AuthMiddleware.
func OrgContextMiddleware(resolver *tenant.Resolver, sessions *auth.SessionStore, logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "org_context_middleware").Logger()

	return func(c *gin.Context) {
		user := GetUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		selector, _ := sessions.GetActiveOrg(c.Request)

		orgCtx, err := resolver.Resolve(c.Request.Context(), &tenant.Principal{UserID: user.ID}, selector)
		if err != nil {
			switch {
			case errors.Is(err, tenant.ErrNoOrg):
				// Routes the client to the org-creation/invitation flow
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error": "no organization membership",
					"code":  "no_organization",
				})
			case errors.Is(err, tenant.ErrNoAuth):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			default:
				log.Error().Err(err).Str("user_id", user.ID.String()).Msg("failed to resolve org context")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve organization"})
			}
			return
		}

		c.Set(string(OrgContextKey), orgCtx)
		c.Next()
	}
}

// GetOrgContext retrieves the resolved org context from the Gin context.
// Returns nil if no context was resolved.
func GetOrgContext(c *gin.Context) *tenant.OrgContext {
	val, exists := c.Get(string(OrgContextKey))
	if !exists {
		return nil
	}
	orgCtx, ok := val.(*tenant.OrgContext)
	if !ok {
		return nil
	}
	return orgCtx
}

// RequireOrgContext is a helper that gets the resolved org context or aborts
// with 500: reaching a tenant-scoped handler without one is a routing bug,
// not a client error.
func RequireOrgContext(c *gin.Context) *tenant.OrgContext {
	orgCtx := GetOrgContext(c)
	if orgCtx == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "organization context not resolved"})
		return nil
	}
	return orgCtx
}
