package tenant

import (
	"context"
	"fmt"

	"github.com/crewdeskhq/crewdesk/internal/metrics"
	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ResolverStore defines the persistence operations the resolver needs.
type ResolverStore interface {
	// GetMembershipsByUserID returns all memberships for a user ordered by
	// joined_at ascending.
	GetMembershipsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.OrgMembership, error)
	// GetUserActiveOrgID returns the user's persisted preference, nil when
	// unset.
	GetUserActiveOrgID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

// Resolver deterministically picks the single active organization for a
// request and proves membership. Precedence, first match wins:
//
//  1. the ephemeral session selector, if it names an org in the loaded
//     membership set
//  2. the persisted preference, if it names an org in the loaded set
//  3. the earliest-joined membership
//
// A selector or preference that is not backed by a loaded membership row is
// ignored, never trusted: membership may have been revoked since it was
// written.
type Resolver struct {
	store  ResolverStore
	logger zerolog.Logger
}

// NewResolver creates a new Resolver.
func NewResolver(store ResolverStore, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With().Str("component", "tenant_resolver").Logger(),
	}
}

// Resolve returns the OrgContext for the principal. selector is the
// ephemeral per-session org pointer, uuid.Nil when absent.
//
// The membership set is loaded exactly once; the role is read from that set,
// never refetched, so there is no window between selecting an org and
// authorizing against it. Store failures surface as opaque internal errors
// and are never interpreted as "no organization".
func (r *Resolver) Resolve(ctx context.Context, principal *Principal, selector uuid.UUID) (*OrgContext, error) {
	if principal == nil || principal.UserID == uuid.Nil {
		metrics.ResolverResults.WithLabelValues("no_auth").Inc()
		return nil, ErrNoAuth
	}

	memberships, err := r.store.GetMembershipsByUserID(ctx, principal.UserID)
	if err != nil {
		metrics.ResolverResults.WithLabelValues("internal_error").Inc()
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	if len(memberships) == 0 {
		metrics.ResolverResults.WithLabelValues("no_org").Inc()
		return nil, ErrNoOrg
	}

	byOrg := make(map[uuid.UUID]*models.OrgMembership, len(memberships))
	for _, m := range memberships {
		byOrg[m.OrgID] = m
	}

	var selected *models.OrgMembership

	if selector != uuid.Nil {
		if m, ok := byOrg[selector]; ok {
			selected = m
		} else {
			// Stale selector: the membership it pointed at no longer
			// exists. Fall through to the durable preference.
			r.logger.Debug().
				Str("user_id", principal.UserID.String()).
				Str("selector_org_id", selector.String()).
				Msg("session selector not backed by a membership, ignoring")
		}
	}

	if selected == nil {
		preference, err := r.store.GetUserActiveOrgID(ctx, principal.UserID)
		if err != nil {
			metrics.ResolverResults.WithLabelValues("internal_error").Inc()
			return nil, fmt.Errorf("load org preference: %w", err)
		}
		if preference != nil {
			if m, ok := byOrg[*preference]; ok {
				selected = m
			}
		}
	}

	if selected == nil {
		// Memberships are ordered by joined_at ascending, so the first is
		// the deterministic default.
		selected = memberships[0]
	}

	if _, ok := byOrg[selected.OrgID]; !ok {
		metrics.ResolverResults.WithLabelValues("invalid_org").Inc()
		return nil, ErrInvalidOrg
	}

	metrics.ResolverResults.WithLabelValues("ok").Inc()
	return &OrgContext{
		UserID:  principal.UserID,
		OrgID:   selected.OrgID,
		OrgRole: selected.Role,
	}, nil
}
