// Package config provides configuration management for Crewdesk.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// ServerConfig holds server-level configuration loaded from environment variables.
type ServerConfig struct {
	Environment        Environment
	SessionMaxAge      int // auth session lifetime in seconds (default: 86400)
	SelectorMaxAge     int // org selector lifetime in seconds (default: 30 days)
	AuditRetentionDays int // audit log retention, 0 to disable cleanup (default: 365)
	RateLimitRequests  int64
	RateLimitPeriod    string
	RedisURL           string
	CORSOrigins        []string
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() ServerConfig {
	env := Environment(os.Getenv("ENV"))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	sessionMaxAge := getEnvInt("SESSION_MAX_AGE", 86400)
	if sessionMaxAge < 0 {
		sessionMaxAge = 86400
	}

	selectorMaxAge := getEnvInt("ORG_SELECTOR_MAX_AGE", 30*86400)
	if selectorMaxAge < 0 {
		selectorMaxAge = 30 * 86400
	}

	retentionDays := getEnvInt("AUDIT_RETENTION_DAYS", 365)
	if retentionDays < 0 {
		retentionDays = 365
	}

	rateLimitRequests := int64(getEnvInt("RATE_LIMIT_REQUESTS", 100))
	if rateLimitRequests <= 0 {
		rateLimitRequests = 100
	}

	rateLimitPeriod := os.Getenv("RATE_LIMIT_PERIOD")
	if rateLimitPeriod == "" {
		rateLimitPeriod = "1m"
	}

	var corsOrigins []string
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				corsOrigins = append(corsOrigins, origin)
			}
		}
	}

	return ServerConfig{
		Environment:        env,
		SessionMaxAge:      sessionMaxAge,
		SelectorMaxAge:     selectorMaxAge,
		AuditRetentionDays: retentionDays,
		RateLimitRequests:  rateLimitRequests,
		RateLimitPeriod:    rateLimitPeriod,
		RedisURL:           os.Getenv("REDIS_URL"),
		CORSOrigins:        corsOrigins,
	}
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
