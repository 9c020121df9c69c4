package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/crewdeskhq/crewdesk/internal/db"
	"github.com/crewdeskhq/crewdesk/internal/metrics"
	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SwitcherStore defines the persistence operations the switcher needs.
type SwitcherStore interface {
	GetMembershipByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.OrgMembership, error)
	SetUserActiveOrgID(ctx context.Context, userID, orgID uuid.UUID) error
}

// SelectorWriter writes the ephemeral per-session organization selector.
// Handlers construct a request-scoped implementation around the session
// store, so the switcher stays free of HTTP plumbing.
type SelectorWriter interface {
	SetActiveOrg(orgID uuid.UUID) error
}

// Switcher is the only write path to a user's persisted active-organization
// preference. Every switch independently re-validates membership before
// writing, so concurrent switches by the same user need no extra locking:
// last write wins, and both writes were validated.
type Switcher struct {
	store  SwitcherStore
	logger zerolog.Logger
}

// NewSwitcher creates a new Switcher.
func NewSwitcher(store SwitcherStore, logger zerolog.Logger) *Switcher {
	return &Switcher{
		store:  store,
		logger: logger.With().Str("component", "tenant_switcher").Logger(),
	}
}

// Switch validates membership in requestedOrgID, persists it as the user's
// preference, and then writes the session selector so the change is visible
// on the very next request. A non-member target fails ErrNotMember with no
// writes. The selector is never written when the preference write fails;
// partial success would let the session and the durable preference drift.
func (s *Switcher) Switch(ctx context.Context, principal *Principal, requestedOrgID uuid.UUID, selector SelectorWriter) (*models.OrgMembership, error) {
	if principal == nil || principal.UserID == uuid.Nil {
		return nil, ErrNoAuth
	}

	membership, err := s.store.GetMembershipByUserAndOrg(ctx, principal.UserID, requestedOrgID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			metrics.OrgSwitches.WithLabelValues("not_member").Inc()
			return nil, ErrNotMember
		}
		metrics.OrgSwitches.WithLabelValues("internal_error").Inc()
		return nil, fmt.Errorf("validate membership: %w", err)
	}

	if err := s.store.SetUserActiveOrgID(ctx, principal.UserID, requestedOrgID); err != nil {
		metrics.OrgSwitches.WithLabelValues("internal_error").Inc()
		return nil, fmt.Errorf("persist org preference: %w", err)
	}

	if err := selector.SetActiveOrg(requestedOrgID); err != nil {
		metrics.OrgSwitches.WithLabelValues("internal_error").Inc()
		return nil, fmt.Errorf("set session selector: %w", err)
	}

	s.logger.Info().
		Str("user_id", principal.UserID.String()).
		Str("org_id", requestedOrgID.String()).
		Msg("switched active organization")

	metrics.OrgSwitches.WithLabelValues("ok").Inc()
	return membership, nil
}
