package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewdeskhq/crewdesk/internal/api/middleware"
	"github.com/crewdeskhq/crewdesk/internal/audit"
	"github.com/crewdeskhq/crewdesk/internal/crypto"
	"github.com/crewdeskhq/crewdesk/internal/db"
	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/crewdeskhq/crewdesk/internal/tenant"
)

type mockCredentialsStore struct {
	creds     map[uuid.UUID]*models.ProviderCredential
	auditLogs []*models.AuditLog
}

func newMockCredentialsStore() *mockCredentialsStore {
	return &mockCredentialsStore{creds: map[uuid.UUID]*models.ProviderCredential{}}
}

func (m *mockCredentialsStore) CreateProviderCredential(_ context.Context, cred *models.ProviderCredential) error {
	m.creds[cred.ID] = cred
	return nil
}

func (m *mockCredentialsStore) GetProviderCredentialByID(_ context.Context, orgID, id uuid.UUID) (*models.ProviderCredential, error) {
	cred, ok := m.creds[id]
	if !ok || cred.OrgID != orgID {
		return nil, db.ErrNotFound
	}
	return cred, nil
}

func (m *mockCredentialsStore) GetProviderCredentialsByOrgID(_ context.Context, orgID uuid.UUID) ([]*models.ProviderCredential, error) {
	var out []*models.ProviderCredential
	for _, cred := range m.creds {
		if cred.OrgID == orgID {
			out = append(out, cred)
		}
	}
	return out, nil
}

func (m *mockCredentialsStore) UpdateProviderCredentialSecret(_ context.Context, orgID, id uuid.UUID, secret []byte) error {
	cred, ok := m.creds[id]
	if !ok || cred.OrgID != orgID {
		return db.ErrNotFound
	}
	cred.Secret = secret
	return nil
}

func (m *mockCredentialsStore) DeleteProviderCredential(_ context.Context, orgID, id uuid.UUID) error {
	cred, ok := m.creds[id]
	if !ok || cred.OrgID != orgID {
		return db.ErrNotFound
	}
	delete(m.creds, id)
	return nil
}

func (m *mockCredentialsStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

func (m *mockCredentialsStore) GetAuditLogsByOrgID(_ context.Context, _ uuid.UUID, _ db.AuditLogFilter) ([]*models.AuditLog, error) {
	return m.auditLogs, nil
}

func (m *mockCredentialsStore) GetAuditLogByID(_ context.Context, _ uuid.UUID) (*models.AuditLog, error) {
	return nil, db.ErrNotFound
}

func (m *mockCredentialsStore) CountAuditLogsByOrgID(_ context.Context, _ uuid.UUID, _ db.AuditLogFilter) (int64, error) {
	return int64(len(m.auditLogs)), nil
}

func testCipher(t *testing.T) *crypto.SecretCipher {
	t.Helper()
	key, err := crypto.GenerateMasterKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	cipher, err := crypto.NewSecretCipher(key)
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	return cipher
}

func setupCredentialsRouter(store *mockCredentialsStore, cipher *crypto.SecretCipher, orgCtx *tenant.OrgContext) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(string(middleware.OrgContextKey), orgCtx)
		c.Next()
	})
	recorder := audit.NewRecorder(store, zerolog.Nop())
	handler := NewCredentialsHandler(store, cipher, recorder, zerolog.Nop())
	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)
	return r
}

func TestCredentialRoundTrip(t *testing.T) {
	orgCtx := &tenant.OrgContext{UserID: uuid.New(), OrgID: uuid.New(), OrgRole: models.OrgRoleAdmin}
	store := newMockCredentialsStore()
	cipher := testCipher(t)
	r := setupCredentialsRouter(store, cipher, orgCtx)

	// Create.
	body := `{"provider":"aws","name":"prod","secret":{"access_key_id":"AKIA123","secret_access_key":"s3cr3t"}}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/credentials", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created credentialResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	// Stored bytes must not contain the plaintext.
	stored := store.creds[created.ID]
	if strings.Contains(string(stored.Secret), "s3cr3t") {
		t.Fatal("secret stored in plaintext")
	}

	// List carries metadata only.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/credentials", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "s3cr3t") || strings.Contains(w.Body.String(), "ciphertext") {
		t.Fatalf("list response must not carry secret material: %s", w.Body.String())
	}

	// Reveal decrypts.
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/credentials/"+created.ID.String()+"/reveal", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var revealed struct {
		Secret map[string]any `json:"secret"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &revealed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if revealed.Secret["secret_access_key"] != "s3cr3t" {
		t.Fatalf("unexpected revealed secret: %+v", revealed.Secret)
	}
}

func TestCredentialRevealRequiresAdmin(t *testing.T) {
	orgCtx := &tenant.OrgContext{UserID: uuid.New(), OrgID: uuid.New(), OrgRole: models.OrgRoleMember}
	store := newMockCredentialsStore()
	cipher := testCipher(t)

	cred := models.NewProviderCredential(orgCtx.OrgID, "aws", "prod", []byte("{}"), orgCtx.UserID)
	store.creds[cred.ID] = cred

	r := setupCredentialsRouter(store, cipher, orgCtx)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/credentials/"+cred.ID.String()+"/reveal", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCredentialViewerCannotWrite(t *testing.T) {
	orgCtx := &tenant.OrgContext{UserID: uuid.New(), OrgID: uuid.New(), OrgRole: models.OrgRoleViewer}
	store := newMockCredentialsStore()
	r := setupCredentialsRouter(store, testCipher(t), orgCtx)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/credentials", strings.NewReader(`{"provider":"aws","name":"prod","secret":{"k":"v"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCredentialCrossTenantIsolation(t *testing.T) {
	orgCtx := &tenant.OrgContext{UserID: uuid.New(), OrgID: uuid.New(), OrgRole: models.OrgRoleAdmin}
	store := newMockCredentialsStore()

	// A credential belonging to a different organization.
	foreign := models.NewProviderCredential(uuid.New(), "aws", "other-org", []byte("{}"), uuid.New())
	store.creds[foreign.ID] = foreign

	r := setupCredentialsRouter(store, testCipher(t), orgCtx)

	t.Run("get", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/credentials/"+foreign.ID.String(), nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/api/v1/credentials/"+foreign.ID.String(), nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
		}
		if _, ok := store.creds[foreign.ID]; !ok {
			t.Fatal("foreign credential must not be deleted")
		}
	})

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/credentials", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var resp struct {
			Credentials []credentialResponse `json:"credentials"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if len(resp.Credentials) != 0 {
			t.Fatalf("expected no visible credentials, got %d", len(resp.Credentials))
		}
	})
}

func TestCredentialUpdateSecret(t *testing.T) {
	orgCtx := &tenant.OrgContext{UserID: uuid.New(), OrgID: uuid.New(), OrgRole: models.OrgRoleAdmin}
	store := newMockCredentialsStore()
	cipher := testCipher(t)
	r := setupCredentialsRouter(store, cipher, orgCtx)

	// Seed via the API so the envelope is well-formed.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/credentials", strings.NewReader(`{"provider":"gcp","name":"prod","secret":{"key":"old"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created credentialResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("PUT", "/api/v1/credentials/"+created.ID.String()+"/secret", strings.NewReader(`{"secret":{"key":"new"}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/v1/credentials/"+created.ID.String()+"/reveal", nil)
	r.ServeHTTP(w, req)
	var revealed struct {
		Secret map[string]any `json:"secret"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &revealed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if revealed.Secret["key"] != "new" {
		t.Fatalf("expected updated secret, got %+v", revealed.Secret)
	}
}
