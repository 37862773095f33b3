package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster/internal/models"
	"github.com/noah-isme/sma-roster/internal/service"
	"github.com/noah-isme/sma-roster/pkg/response"
)

type statusReporter interface {
	Status(ctx context.Context) models.RosterStatus
}

type queueDepth interface {
	Pending() int
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	status  statusReporter
	exports queueDepth
}

// NewMetricsHandler constructs a metrics handler. exports may be nil when no export queue runs.
func NewMetricsHandler(metrics *service.MetricsService, status statusReporter, exports queueDepth) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, status: status, exports: exports}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for readiness/liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status godoc
// @Summary Backend reachability and fallback counters
// @Tags Status
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /status [get]
func (h *MetricsHandler) Status(c *gin.Context) {
	status := h.status.Status(c.Request.Context())
	status.Metrics = h.metrics.Snapshot()
	if h.exports != nil {
		status.ExportsPending = h.exports.Pending()
	}
	response.JSON(c, http.StatusOK, status)
}
