package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewdeskhq/crewdesk/internal/api/middleware"
	"github.com/crewdeskhq/crewdesk/internal/audit"
	"github.com/crewdeskhq/crewdesk/internal/db"
)

const (
	defaultAuditLogLimit = 50
	maxAuditLogLimit     = 500
)

// AuditLogsHandler exposes the tenant-scoped audit trail. All reads go
// through the recorder, which stamps the organization from the resolved
// context; there is no way to ask it for another tenant's records.
type AuditLogsHandler struct {
	recorder *audit.Recorder
	logger   zerolog.Logger
}

// NewAuditLogsHandler creates a new AuditLogsHandler.
func NewAuditLogsHandler(recorder *audit.Recorder, logger zerolog.Logger) *AuditLogsHandler {
	return &AuditLogsHandler{
		recorder: recorder,
		logger:   logger.With().Str("component", "audit_logs_handler").Logger(),
	}
}

// RegisterRoutes registers audit log routes on the org-scoped group.
func (h *AuditLogsHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/audit-logs", h.List)
	g.GET("/audit-logs/:id", h.Get)
}

// parseFilter builds an AuditLogFilter from query parameters.
func parseFilter(c *gin.Context) (db.AuditLogFilter, error) {
	filter := db.AuditLogFilter{
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Severity: c.Query("severity"),
		Limit:    defaultAuditLogLimit,
	}

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid user_id")
		}
		filter.UserID = &id
	}

	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid start_date, expected RFC3339")
		}
		filter.StartDate = &t
	}

	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid end_date, expected RFC3339")
		}
		filter.EndDate = &t
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, errors.New("invalid limit")
		}
		if limit > maxAuditLogLimit {
			limit = maxAuditLogLimit
		}
		filter.Limit = limit
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}

// List returns audit logs for the caller's organization, newest first.
func (h *AuditLogsHandler) List(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}

	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logs, err := h.recorder.Logs(c.Request.Context(), orgCtx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list audit logs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit logs"})
		return
	}

	total, err := h.recorder.Count(c.Request.Context(), orgCtx, filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count audit logs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get returns one audit log entry by ID. Entries belonging to other
// organizations and system entries respond 404.
func (h *AuditLogsHandler) Get(c *gin.Context) {
	orgCtx := middleware.RequireOrgContext(c)
	if orgCtx == nil {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid audit log ID"})
		return
	}

	entry, err := h.recorder.Get(c.Request.Context(), orgCtx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "audit log not found"})
			return
		}
		h.logger.Error().Err(err).Str("audit_log_id", id.String()).Msg("failed to get audit log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get audit log"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
