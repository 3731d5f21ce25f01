package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ona-asso/ona-api/internal/models"
	"github.com/ona-asso/ona-api/pkg/middleware/requestid"
)

type auditRecorder interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

func auditAction(method string) string {
	switch method {
	case http.MethodPost:
		return models.AuditActionCreate
	case http.MethodDelete:
		return models.AuditActionDelete
	default:
		return models.AuditActionUpdate
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// Audit records successful mutating requests on resource. Reads pass through
// untouched. A failed write is logged and never fails the request.
func Audit(recorder auditRecorder, resource string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		start := time.Now().UTC()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			return
		}

		entry := &models.AuditLog{
			Action:     auditAction(c.Request.Method),
			Resource:   resource,
			ResourceID: optional(c.Param("id")),
			RequestID:  requestid.Value(c),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
			CreatedAt:  start,
		}
		if value, ok := c.Get(ContextUserKey); ok {
			if claims, ok := value.(*models.JWTClaims); ok {
				entry.UserID = optional(claims.UserID)
				entry.VolunteerID = optional(claims.VolunteerID)
			}
		}
		entry.ActingAs = optional(c.GetHeader(ActingAsHeader))
		entry.Payload, _ = json.Marshal(map[string]interface{}{
			"path":       c.FullPath(),
			"method":     c.Request.Method,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
		})

		if recorder == nil {
			return
		}
		if err := recorder.Create(c.Request.Context(), entry); err != nil {
			logger.Warn("failed to record audit log",
				zap.String("resource", resource),
				zap.String("action", entry.Action),
				zap.String("request_id", entry.RequestID),
				zap.Error(err),
			)
		}
	}
}
