package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewdeskhq/crewdesk/internal/api/middleware"
	"github.com/crewdeskhq/crewdesk/internal/audit"
	"github.com/crewdeskhq/crewdesk/internal/crypto"
	"github.com/crewdeskhq/crewdesk/internal/db"
	"github.com/crewdeskhq/crewdesk/internal/metrics"
	"github.com/crewdeskhq/crewdesk/internal/models"
)

// CredentialsStore defines the persistence operations the credentials
// handler needs. Every query is organization-scoped at the SQL level.
type CredentialsStore interface {
	CreateProviderCredential(ctx context.Context, cred *models.ProviderCredential) error
	GetProviderCredentialByID(ctx context.Context, orgID, id uuid.UUID) (*models.ProviderCredential, error)
	GetProviderCredentialsByOrgID(ctx context.Context, orgID uuid.UUID) ([]*models.ProviderCredential, error)
	UpdateProviderCredentialSecret(ctx context.Context, orgID, id uuid.UUID, secret []byte) error
	DeleteProviderCredential(ctx context.Context, orgID, id uuid.UUID) error
}

// CredentialsHandler manages encrypted provider credentials. Secret
// material only exists in plaintext inside a request that explicitly asks
// to reveal it; list and get responses carry metadata only.
type CredentialsHandler struct {
	store    CredentialsStore
	cipher   *crypto.SecretCipher
	recorder *audit.Recorder
	logger   zerolog.Logger
}

// NewCredentialsHandler creates a new CredentialsHandler.
func NewCredentialsHandler(store CredentialsStore, cipher *crypto.SecretCipher, recorder *audit.Recorder, logger zerolog.Logger) *CredentialsHandler {
	return &CredentialsHandler{
		store:    store,
		cipher:   cipher,
		recorder: recorder,
		logger:   logger.With().Str("component", "credentials_handler").Logger(),
	}
}

// RegisterRoutes registers credential routes on the org-scoped group.
func (h *CredentialsHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/credentials", h.List)
	g.POST("/credentials", h.Create)
	g.GET("/credentials/:id", h.Get)
	g.GET("/credentials/:id/reveal", h.Reveal)
	g.PUT("/credentials/:id/secret", h.UpdateSecret)
	g.DELETE("/credentials/:id", h.Delete)
}

type credentialResponse struct {
	ID        uuid.UUID `json:"id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCredentialResponse(cred *models.ProviderCredential) credentialResponse {
	return credentialResponse{
		ID:        cred.ID,
		Provider:  cred.Provider,
		Name:      cred.Name,
		CreatedBy: cred.CreatedBy,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}
}

type createCredentialRequest struct {
	Provider string         `json:"provider" binding:"required"`
	Name     string         `json:"name" binding:"required"`
	Secret   map[string]any `json:"secret" binding:"required"`
}

// encryptSecret encrypts the secret payload and returns it as the JSON
// envelope stored in the database.
func (h *CredentialsHandler) encryptSecret(secret map[string]any) ([]byte, error) {
	encrypted, err := h.cipher.EncryptObject(secret)
	if err != nil {
		metrics.SecretOperations.WithLabelValues("encrypt", "failed").Inc()
		return nil, err
	}
	envelope, err := json.Marshal(encrypted)
	if err != nil {
		metrics.SecretOperations.WithLabelValues("encrypt", "failed").Inc()
		return nil, err
	}
	metrics.SecretOperations.WithLabelValues("encrypt", "ok").Inc()
	return envelope, nil
}

// Create encrypts and stores a new provider credential. Requires a role
// that can write (owner, admin, or member).
func (h *CredentialsHandler) Create(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}
	if !orgCtx.CanWrite() {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}

	var req createCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider, name, and secret are required"})
		return
	}

	envelope, err := h.encryptSecret(req.Secret)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encrypt credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}

	cred := models.NewProviderCredential(orgCtx.OrgID, req.Provider, req.Name, envelope, orgCtx.UserID)
	if err := h.store.CreateProviderCredential(c.Request.Context(), cred); err != nil {
		h.logger.Error().Err(err).Str("provider", req.Provider).Msg("failed to create credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}

	_ = h.recorder.Record(c.Request.Context(), orgCtx, audit.Entry{
		Action:     models.AuditActionCreate,
		Resource:   "provider_credential",
		ResourceID: &cred.ID,
		NewValues:  audit.NewCredentialPayload(cred.Provider, cred.Name),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.JSON(http.StatusCreated, toCredentialResponse(cred))
}

// List returns credential metadata for the caller's organization.
func (h *CredentialsHandler) List(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}

	creds, err := h.store.GetProviderCredentialsByOrgID(c.Request.Context(), orgCtx.OrgID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list credentials")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list credentials"})
		return
	}

	out := make([]credentialResponse, 0, len(creds))
	for _, cred := range creds {
		out = append(out, toCredentialResponse(cred))
	}

	c.JSON(http.StatusOK, gin.H{"credentials": out})
}

// Get returns metadata for one credential.
func (h *CredentialsHandler) Get(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credential ID"})
		return
	}

	cred, err := h.store.GetProviderCredentialByID(c.Request.Context(), orgCtx.OrgID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("failed to get credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get credential"})
		return
	}

	c.JSON(http.StatusOK, toCredentialResponse(cred))
}

// Reveal decrypts and returns the secret payload of one credential.
// Restricted to owners and admins; every reveal is audited.
func (h *CredentialsHandler) Reveal(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}
	if !orgCtx.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credential ID"})
		return
	}

	cred, err := h.store.GetProviderCredentialByID(c.Request.Context(), orgCtx.OrgID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("failed to get credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reveal credential"})
		return
	}

	var envelope crypto.EncryptedSecret
	if err := json.Unmarshal(cred.Secret, &envelope); err != nil {
		metrics.SecretOperations.WithLabelValues("decrypt", "failed").Inc()
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("stored credential envelope is unreadable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reveal credential"})
		return
	}

	var secret map[string]any
	if err := h.cipher.DecryptObject(&envelope, &secret); err != nil {
		metrics.SecretOperations.WithLabelValues("decrypt", "failed").Inc()
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("failed to decrypt credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reveal credential"})
		return
	}
	metrics.SecretOperations.WithLabelValues("decrypt", "ok").Inc()

	_ = h.recorder.Record(c.Request.Context(), orgCtx, audit.Entry{
		Action:     models.AuditActionRead,
		Resource:   "provider_credential",
		ResourceID: &cred.ID,
		NewValues:  audit.NewCredentialPayload(cred.Provider, cred.Name),
		Severity:   models.AuditSeverityWarning,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.JSON(http.StatusOK, gin.H{
		"id":       cred.ID,
		"provider": cred.Provider,
		"name":     cred.Name,
		"secret":   secret,
	})
}

type updateCredentialRequest struct {
	Secret map[string]any `json:"secret" binding:"required"`
}

// UpdateSecret re-encrypts a credential with a new secret payload.
func (h *CredentialsHandler) UpdateSecret(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}
	if !orgCtx.CanWrite() {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credential ID"})
		return
	}

	var req updateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "secret is required"})
		return
	}

	cred, err := h.store.GetProviderCredentialByID(c.Request.Context(), orgCtx.OrgID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("failed to get credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update credential"})
		return
	}

	envelope, err := h.encryptSecret(req.Secret)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to encrypt credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update credential"})
		return
	}

	if err := h.store.UpdateProviderCredentialSecret(c.Request.Context(), orgCtx.OrgID, id, envelope); err != nil {
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("failed to update credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update credential"})
		return
	}

	_ = h.recorder.Record(c.Request.Context(), orgCtx, audit.Entry{
		Action:     models.AuditActionUpdate,
		Resource:   "provider_credential",
		ResourceID: &cred.ID,
		NewValues:  audit.NewCredentialPayload(cred.Provider, cred.Name),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.JSON(http.StatusOK, gin.H{"message": "credential updated"})
}

// Delete removes a credential. Restricted to owners and admins.
func (h *CredentialsHandler) Delete(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}
	if !orgCtx.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credential ID"})
		return
	}

	cred, err := h.store.GetProviderCredentialByID(c.Request.Context(), orgCtx.OrgID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
			return
		}
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("failed to get credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete credential"})
		return
	}

	if err := h.store.DeleteProviderCredential(c.Request.Context(), orgCtx.OrgID, id); err != nil {
		h.logger.Error().Err(err).Str("credential_id", id.String()).Msg("failed to delete credential")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete credential"})
		return
	}

	_ = h.recorder.Record(c.Request.Context(), orgCtx, audit.Entry{
		Action:     models.AuditActionDelete,
		Resource:   "provider_credential",
		ResourceID: &cred.ID,
		OldValues:  audit.NewCredentialPayload(cred.Provider, cred.Name),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})

	c.JSON(http.StatusOK, gin.H{"message": "credential deleted"})
}
