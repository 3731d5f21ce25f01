package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ona-asso/ona-api/internal/models"
	appErrors "github.com/ona-asso/ona-api/pkg/errors"
	"github.com/ona-asso/ona-api/pkg/response"
)

type auditReader interface {
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

// AuditHandler exposes the change history of audited resources.
type AuditHandler struct {
	logs auditReader
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(logs auditReader) *AuditHandler {
	return &AuditHandler{logs: logs}
}

// History returns a handler listing the audit trail of resource for the :id path parameter.
//
// @Summary Change history of a resource
// @Tags Audit
// @Produce json
// @Param id path string true "Resource ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/history [get]
func (h *AuditHandler) History(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		logs, err := h.logs.ListByResource(c.Request.Context(), resource, c.Param("id"), limit)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs"))
			return
		}
		if logs == nil {
			logs = []models.AuditLog{}
		}
		response.JSON(c, http.StatusOK, logs, nil)
	}
}
