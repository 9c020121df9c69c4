package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// wrapQueryErr maps pgx.ErrNoRows to ErrNotFound and wraps everything else
// with the given operation name.
func wrapQueryErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// --- Users ---

// CreateUser inserts a new user.
func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO users (id, email, name, password_hash, active_org_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.Name, user.PasswordHash, user.ActiveOrgID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByID returns a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, active_org_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.ActiveOrgID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, wrapQueryErr("get user", err)
	}
	return &u, nil
}

// GetUserByEmail returns a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.Pool.QueryRow(ctx, `
		SELECT id, email, name, password_hash, active_org_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.ActiveOrgID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, wrapQueryErr("get user by email", err)
	}
	return &u, nil
}

// GetUserActiveOrgID returns the user's persisted active-organization
// preference. A user with no preference returns (nil, nil).
func (db *DB) GetUserActiveOrgID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	var activeOrgID *uuid.UUID
	err := db.Pool.QueryRow(ctx, `
		SELECT active_org_id FROM users WHERE id = $1
	`, userID).Scan(&activeOrgID)
	if err != nil {
		return nil, wrapQueryErr("get active org preference", err)
	}
	return activeOrgID, nil
}

// SetUserActiveOrgID persists the user's active-organization preference.
// The tenant switcher is the only caller; nothing else writes this column.
func (db *DB) SetUserActiveOrgID(ctx context.Context, userID, orgID uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users SET active_org_id = $1, updated_at = $2 WHERE id = $3
	`, orgID, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("set active org preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Organizations ---

// CreateOrganization inserts a new organization.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO organizations (id, name, slug, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, org.ID, org.Name, org.Slug, org.IsActive, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetOrganizationByID returns an organization by ID.
func (db *DB) GetOrganizationByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, slug, is_active, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.IsActive, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, wrapQueryErr("get organization", err)
	}
	return &org, nil
}

// GetOrganizationBySlug returns an organization by slug.
func (db *DB) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	err := db.Pool.QueryRow(ctx, `
		SELECT id, name, slug, is_active, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`, slug).Scan(&org.ID, &org.Name, &org.Slug, &org.IsActive, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, wrapQueryErr("get organization by slug", err)
	}
	return &org, nil
}

// DeleteOrganization deletes an organization and cascades to memberships.
func (db *DB) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	return nil
}

// --- Memberships ---

// CreateMembership inserts a new organization membership.
func (db *DB) CreateMembership(ctx context.Context, m *models.OrgMembership) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO org_memberships (id, user_id, org_id, role, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.UserID, m.OrgID, string(m.Role), m.JoinedAt)
	if err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// GetMembershipByUserAndOrg returns the single membership row for a
// (user, org) pair, or ErrNotFound.
func (db *DB) GetMembershipByUserAndOrg(ctx context.Context, userID, orgID uuid.UUID) (*models.OrgMembership, error) {
	var m models.OrgMembership
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, org_id, role, joined_at
		FROM org_memberships
		WHERE user_id = $1 AND org_id = $2
	`, userID, orgID).Scan(&m.ID, &m.UserID, &m.OrgID, &m.Role, &m.JoinedAt)
	if err != nil {
		return nil, wrapQueryErr("get membership", err)
	}
	return &m, nil
}

// GetMembershipsByUserID returns all memberships for a user ordered by
// joined_at ascending, so the first element is the deterministic default
// organization.
func (db *DB) GetMembershipsByUserID(ctx context.Context, userID uuid.UUID) ([]*models.OrgMembership, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, org_id, role, joined_at
		FROM org_memberships
		WHERE user_id = $1
		ORDER BY joined_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.OrgMembership
	for rows.Next() {
		var m models.OrgMembership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		memberships = append(memberships, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return memberships, nil
}

// GetUserOrganizations returns memberships joined with organization details
// for display, ordered by joined_at ascending.
func (db *DB) GetUserOrganizations(ctx context.Context, userID uuid.UUID) ([]*models.OrgMembershipWithOrg, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT m.id, m.user_id, m.org_id, m.role, m.joined_at, o.name, o.slug
		FROM org_memberships m
		JOIN organizations o ON o.id = m.org_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("get user organizations: %w", err)
	}
	defer rows.Close()

	var result []*models.OrgMembershipWithOrg
	for rows.Next() {
		var m models.OrgMembershipWithOrg
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &m.Role, &m.JoinedAt, &m.OrgName, &m.OrgSlug); err != nil {
			return nil, fmt.Errorf("scan user organization: %w", err)
		}
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user organizations: %w", err)
	}

	return result, nil
}

// DeleteMembership removes a user's membership in an organization.
func (db *DB) DeleteMembership(ctx context.Context, userID, orgID uuid.UUID) error {
	_, err := db.Pool.Exec(ctx, `
		DELETE FROM org_memberships WHERE user_id = $1 AND org_id = $2
	`, userID, orgID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}
