// Package api provides the HTTP API for the Crewdesk server.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/crewdeskhq/crewdesk/internal/api/handlers"
	"github.com/crewdeskhq/crewdesk/internal/api/middleware"
	"github.com/crewdeskhq/crewdesk/internal/audit"
	"github.com/crewdeskhq/crewdesk/internal/auth"
	"github.com/crewdeskhq/crewdesk/internal/config"
	"github.com/crewdeskhq/crewdesk/internal/crypto"
	"github.com/crewdeskhq/crewdesk/internal/db"
	"github.com/crewdeskhq/crewdesk/internal/tenant"
)

// Config holds configuration for the API router.
type Config struct {
	// Environment controls production-only guards such as the CORS panic.
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m", "1h").
	RateLimitPeriod string
	// RedisURL, when set, backs rate limit counters with Redis.
	RedisURL string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:       config.EnvDevelopment,
		AllowedOrigins:    []string{},
		RateLimitRequests: 100,
		RateLimitPeriod:   "1m",
	}
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine   *gin.Engine
	logger   zerolog.Logger
	sessions *auth.SessionStore
	db       *db.DB
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(
	cfg Config,
	database *db.DB,
	sessions *auth.SessionStore,
	resolver *tenant.Resolver,
	switcher *tenant.Switcher,
	recorder *audit.Recorder,
	cipher *crypto.SecretCipher,
	logger zerolog.Logger,
) (*Router, error) {
	r := &Router{
		Engine:   gin.New(),
		logger:   logger.With().Str("component", "router").Logger(),
		sessions: sessions,
		db:       database,
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.SecurityHeaders())
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	// Rate limiting
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health check and metrics endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(database)
	healthHandler.RegisterPublicRoutes(r.Engine)
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes (no session required)
	authGroup := r.Engine.Group("/auth")
	authHandler := handlers.NewAuthHandler(database, sessions, recorder, logger)
	authHandler.RegisterRoutes(authGroup)

	// API v1 routes (auth required)
	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(sessions, logger))

	// Org-scoped routes additionally resolve the active organization.
	scoped := apiV1.Group("")
	scoped.Use(middleware.OrgContextMiddleware(resolver, sessions, logger))

	orgsHandler := handlers.NewOrganizationsHandler(database, switcher, sessions, recorder, logger)
	orgsHandler.RegisterRoutes(apiV1, scoped)

	auditLogsHandler := handlers.NewAuditLogsHandler(recorder, logger)
	auditLogsHandler.RegisterRoutes(scoped)

	credentialsHandler := handlers.NewCredentialsHandler(database, cipher, recorder, logger)
	credentialsHandler.RegisterRoutes(scoped)

	r.logger.Info().Msg("API router initialized")
	return r, nil
}
