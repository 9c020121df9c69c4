package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewdeskhq/crewdesk/internal/audit"
	"github.com/crewdeskhq/crewdesk/internal/auth"
	"github.com/crewdeskhq/crewdesk/internal/db"
	"github.com/crewdeskhq/crewdesk/internal/models"
)

type mockAuthStore struct {
	user      *models.User
	auditLogs []*models.AuditLog
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if m.user != nil && m.user.Email == email {
		return m.user, nil
	}
	return nil, db.ErrNotFound
}

func (m *mockAuthStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

func (m *mockAuthStore) GetAuditLogsByOrgID(_ context.Context, _ uuid.UUID, _ db.AuditLogFilter) ([]*models.AuditLog, error) {
	return nil, nil
}

func (m *mockAuthStore) GetAuditLogByID(_ context.Context, _ uuid.UUID) (*models.AuditLog, error) {
	return nil, db.ErrNotFound
}

func (m *mockAuthStore) CountAuditLogsByOrgID(_ context.Context, _ uuid.UUID, _ db.AuditLogFilter) (int64, error) {
	return 0, nil
}

func setupAuthRouter(t *testing.T, store *mockAuthStore) (*gin.Engine, *auth.SessionStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions, err := auth.NewSessionStore(auth.DefaultSessionConfig([]byte("0123456789abcdef0123456789abcdef"), false), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create session store: %v", err)
	}

	recorder := audit.NewRecorder(store, zerolog.Nop())
	handler := NewAuthHandler(store, sessions, recorder, zerolog.Nop())

	r := gin.New()
	group := r.Group("/auth")
	handler.RegisterRoutes(group)
	return r, sessions
}

func seedUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return models.NewUser(email, "Dana", hash)
}

func TestLogin(t *testing.T) {
	user := seedUser(t, "dana@example.com", "hunter2hunter2")
	store := &mockAuthStore{user: user}
	r, sessions := setupAuthRouter(t, store)

	t.Run("success", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/auth/login", strings.NewReader(`{"email":"dana@example.com","password":"hunter2hunter2"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}

		// The response cookie carries an authenticated session.
		next := httptest.NewRequest(http.MethodGet, "/api/v1/orgs", nil)
		for _, cookie := range w.Result().Cookies() {
			next.AddCookie(cookie)
		}
		got, err := sessions.GetUser(next)
		if err != nil {
			t.Fatalf("expected a session after login: %v", err)
		}
		if got.ID != user.ID {
			t.Fatal("session user mismatch")
		}

		// Login lands on the audit trail as a system event.
		var found bool
		for _, l := range store.auditLogs {
			if l.Action == models.AuditActionLogin && l.IsSystemEvent() {
				found = true
			}
		}
		if !found {
			t.Fatal("expected a system login audit record")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/auth/login", strings.NewReader(`{"email":"dana@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("unknown email matches wrong password response", func(t *testing.T) {
		wrongPass := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/auth/login", strings.NewReader(`{"email":"dana@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(wrongPass, req)

		unknown := httptest.NewRecorder()
		req, _ = http.NewRequest("POST", "/auth/login", strings.NewReader(`{"email":"nobody@example.com","password":"wrong"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(unknown, req)

		if wrongPass.Code != unknown.Code || wrongPass.Body.String() != unknown.Body.String() {
			t.Fatal("unknown email and wrong password must be indistinguishable")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/auth/login", strings.NewReader(`{"email":"dana@example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})
}
