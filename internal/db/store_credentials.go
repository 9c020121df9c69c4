package db

import (
	"context"
	"fmt"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/google/uuid"
)

// CreateProviderCredential inserts a new provider credential. The secret
// column only ever receives ciphertext.
func (db *DB) CreateProviderCredential(ctx context.Context, cred *models.ProviderCredential) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO provider_credentials (id, org_id, provider, name, secret, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, cred.ID, cred.OrgID, cred.Provider, cred.Name, cred.Secret, cred.CreatedBy, cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create provider credential: %w", err)
	}
	return nil
}

// GetProviderCredentialByID returns a credential scoped to the given
// organization. The org scope is part of the query so a credential ID from
// another tenant behaves exactly like a missing row.
func (db *DB) GetProviderCredentialByID(ctx context.Context, orgID, id uuid.UUID) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	err := db.Pool.QueryRow(ctx, `
		SELECT id, org_id, provider, name, secret, created_by, created_at, updated_at
		FROM provider_credentials
		WHERE id = $1 AND org_id = $2
	`, id, orgID).Scan(&cred.ID, &cred.OrgID, &cred.Provider, &cred.Name, &cred.Secret,
		&cred.CreatedBy, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		return nil, wrapQueryErr("get provider credential", err)
	}
	return &cred, nil
}

// GetProviderCredentialsByOrgID returns all credentials for an organization.
func (db *DB) GetProviderCredentialsByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.ProviderCredential, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, org_id, provider, name, secret, created_by, created_at, updated_at
		FROM provider_credentials
		WHERE org_id = $1
		ORDER BY provider, name
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("get provider credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.ProviderCredential
	for rows.Next() {
		var cred models.ProviderCredential
		if err := rows.Scan(&cred.ID, &cred.OrgID, &cred.Provider, &cred.Name, &cred.Secret,
			&cred.CreatedBy, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan provider credential: %w", err)
		}
		creds = append(creds, &cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider credentials: %w", err)
	}

	return creds, nil
}

// UpdateProviderCredentialSecret replaces the encrypted secret of an
// existing credential.
func (db *DB) UpdateProviderCredentialSecret(ctx context.Context, orgID, id uuid.UUID, secret []byte) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE provider_credentials SET secret = $1, updated_at = $2
		WHERE id = $3 AND org_id = $4
	`, secret, time.Now(), id, orgID)
	if err != nil {
		return fmt.Errorf("update provider credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProviderCredential removes a credential scoped to the organization.
func (db *DB) DeleteProviderCredential(ctx context.Context, orgID, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM provider_credentials WHERE id = $1 AND org_id = $2
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete provider credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
