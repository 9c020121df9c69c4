package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderCredential holds an organization-owned credential bundle for an
// external provider (ad platform, payment processor, email service). The
// bundle is encrypted as one atomic ciphertext before it reaches the store;
// Secret is opaque to everything except the secret cipher.
type ProviderCredential struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	Secret    []byte    `json:"-"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProviderCredential creates a new ProviderCredential with the given
// encrypted secret payload.
func NewProviderCredential(orgID uuid.UUID, provider, name string, secret []byte, createdBy uuid.UUID) *ProviderCredential {
	now := time.Now()
	return &ProviderCredential{
		ID:        uuid.New(),
		OrgID:     orgID,
		Provider:  provider,
		Name:      name,
		Secret:    secret,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
