// Package auth provides session management and password verification for
// Crewdesk.
package auth

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

func init() {
	// Register types for session serialization
	gob.Register(uuid.UUID{})
	gob.Register(time.Time{})
}

const (
	// SessionName is the name of the authentication session cookie.
	SessionName = "crewdesk_session"
	// SelectorName is the name of the ephemeral org-selector cookie. It is
	// a separate cookie with its own lifetime so clearing authentication
	// does not forget which organization the browser tab was working in.
	SelectorName = "crewdesk_org"

	// UserIDKey is the session key for the authenticated user ID.
	UserIDKey = "user_id"
	// EmailKey is the session key for the user's email.
	EmailKey = "email"
	// NameKey is the session key for the user's name.
	NameKey = "name"
	// AuthenticatedAtKey is the session key for when the user authenticated.
	AuthenticatedAtKey = "authenticated_at"
	// ActiveOrgKey is the selector-session key for the active org pointer.
	ActiveOrgKey = "active_org_id"
)

// SessionConfig holds session store configuration.
type SessionConfig struct {
	Secret          []byte
	MaxAge          int // auth session lifetime in seconds
	SelectorMaxAge  int // org selector lifetime in seconds
	Secure          bool
	HTTPOnly        bool
	SameSite        http.SameSite
	CookiePath      string
}

// DefaultSessionConfig returns a SessionConfig with secure defaults: a
// 24-hour auth session and a 30-day org selector, HTTP-only, SameSite lax,
// secure when running behind HTTPS.
func DefaultSessionConfig(secret []byte, secure bool) SessionConfig {
	return SessionConfig{
		Secret:         secret,
		MaxAge:         86400,
		SelectorMaxAge: 30 * 86400,
		Secure:         secure,
		HTTPOnly:       true,
		SameSite:       http.SameSiteLaxMode,
		CookiePath:     "/",
	}
}

// SessionStore wraps a gorilla/sessions store with helper methods for the
// auth session and the org-selector session.
type SessionStore struct {
	store          *sessions.CookieStore
	selectorMaxAge int
	logger         zerolog.Logger
}

// NewSessionStore creates a new session store.
func NewSessionStore(cfg SessionConfig, logger zerolog.Logger) (*SessionStore, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 bytes")
	}

	store := sessions.NewCookieStore(cfg.Secret)
	store.Options = &sessions.Options{
		Path:     cfg.CookiePath,
		MaxAge:   cfg.MaxAge,
		HttpOnly: cfg.HTTPOnly,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}

	selectorMaxAge := cfg.SelectorMaxAge
	if selectorMaxAge <= 0 {
		selectorMaxAge = 30 * 86400
	}

	s := &SessionStore{
		store:          store,
		selectorMaxAge: selectorMaxAge,
		logger:         logger.With().Str("component", "session").Logger(),
	}

	s.logger.Info().
		Bool("secure", cfg.Secure).
		Int("max_age", cfg.MaxAge).
		Int("selector_max_age", selectorMaxAge).
		Msg("session store initialized")

	return s, nil
}

// Get retrieves the auth session from the request.
func (s *SessionStore) Get(r *http.Request) (*sessions.Session, error) {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Save saves a session to the response.
func (s *SessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// SessionUser represents the authenticated user data stored in session.
type SessionUser struct {
	ID              uuid.UUID
	Email           string
	Name            string
	AuthenticatedAt time.Time
}

// SetUser stores user data in the session after successful authentication.
func (s *SessionStore) SetUser(r *http.Request, w http.ResponseWriter, user *SessionUser) error {
	session, err := s.Get(r)
	if err != nil {
		return err
	}
	session.Values[UserIDKey] = user.ID
	session.Values[EmailKey] = user.Email
	session.Values[NameKey] = user.Name
	session.Values[AuthenticatedAtKey] = user.AuthenticatedAt
	return s.Save(r, w, session)
}

// GetUser retrieves the authenticated user from the session.
func (s *SessionStore) GetUser(r *http.Request) (*SessionUser, error) {
	session, err := s.Get(r)
	if err != nil {
		return nil, err
	}

	userID, ok := session.Values[UserIDKey].(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("no user in session")
	}

	email, _ := session.Values[EmailKey].(string)
	name, _ := session.Values[NameKey].(string)
	authenticatedAt, _ := session.Values[AuthenticatedAtKey].(time.Time)

	return &SessionUser{
		ID:              userID,
		Email:           email,
		Name:            name,
		AuthenticatedAt: authenticatedAt,
	}, nil
}

// ClearUser removes user data from the session (logout).
func (s *SessionStore) ClearUser(r *http.Request, w http.ResponseWriter) error {
	session, err := s.Get(r)
	if err != nil {
		return err
	}
	delete(session.Values, UserIDKey)
	delete(session.Values, EmailKey)
	delete(session.Values, NameKey)
	delete(session.Values, AuthenticatedAtKey)
	// Set MaxAge to -1 to delete the cookie
	session.Options.MaxAge = -1
	return s.Save(r, w, session)
}

// selectorSession retrieves the org-selector session with its longer TTL.
func (s *SessionStore) selectorSession(r *http.Request) (*sessions.Session, error) {
	session, err := s.store.Get(r, SelectorName)
	if err != nil {
		return nil, fmt.Errorf("get selector session: %w", err)
	}
	opts := *s.store.Options
	opts.MaxAge = s.selectorMaxAge
	session.Options = &opts
	return session, nil
}

// SetActiveOrg writes the ephemeral org-selector cookie. Callers must have
// validated membership first; the resolver revalidates on every read
// regardless.
func (s *SessionStore) SetActiveOrg(r *http.Request, w http.ResponseWriter, orgID uuid.UUID) error {
	session, err := s.selectorSession(r)
	if err != nil {
		return err
	}
	session.Values[ActiveOrgKey] = orgID
	return s.Save(r, w, session)
}

// GetActiveOrg reads the org-selector cookie. Returns uuid.Nil and false
// when absent or unreadable; an unreadable selector is treated as no
// selector, never as an error.
func (s *SessionStore) GetActiveOrg(r *http.Request) (uuid.UUID, bool) {
	session, err := s.selectorSession(r)
	if err != nil {
		return uuid.Nil, false
	}
	orgID, ok := session.Values[ActiveOrgKey].(uuid.UUID)
	if !ok || orgID == uuid.Nil {
		return uuid.Nil, false
	}
	return orgID, true
}

// ClearActiveOrg deletes the org-selector cookie.
func (s *SessionStore) ClearActiveOrg(r *http.Request, w http.ResponseWriter) error {
	session, err := s.selectorSession(r)
	if err != nil {
		return err
	}
	delete(session.Values, ActiveOrgKey)
	session.Options.MaxAge = -1
	return s.Save(r, w, session)
}

// IsAuthenticated checks if the session has a valid authenticated user.
func (s *SessionStore) IsAuthenticated(r *http.Request) bool {
	session, err := s.Get(r)
	if err != nil {
		return false
	}
	_, ok := session.Values[UserIDKey].(uuid.UUID)
	return ok
}
