package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ona-asso/ona-api/internal/service"
)

type databasePinger interface {
	PingContext(ctx context.Context) error
}

type schemaVersioner interface {
	Version(ctx context.Context) (int64, error)
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics  *service.MetricsService
	db       databasePinger
	versions schemaVersioner
}

// NewMetricsHandler constructs a metrics handler. db and versions may be nil.
func NewMetricsHandler(metrics *service.MetricsService, db databasePinger, versions schemaVersioner) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db, versions: versions}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a liveness payload and the in-process counters.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "metrics": h.metrics.Snapshot()})
}

// Ready reports whether the database answers and which schema version it runs.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	payload := gin.H{"status": "ok"}
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		payload["database"] = "up"
	}
	if h.versions != nil {
		version, err := h.versions.Version(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "schema": err.Error()})
			return
		}
		payload["schema_version"] = version
	}
	c.JSON(http.StatusOK, payload)
}
