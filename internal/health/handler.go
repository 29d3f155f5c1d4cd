package health

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/txgw/internal/util"
)

// Readiness and liveness paths.
const (
	ReadinessPath = "/healthz/ready"
	LivenessPath  = "/healthz/live"
)

// DependencyUnavailableDetail is the readiness failure detail.
const DependencyUnavailableDetail = "one or more dependencies unavailable"

// Checker is what the handlers need from an Aggregator.
type Checker interface {
	Check(ctx context.Context) Report
}

// Handler serves the health endpoints.
type Handler struct {
	checker Checker
}

// NewHandler creates a new health handler.
func NewHandler(checker Checker) *Handler {
	return &Handler{checker: checker}
}

// ReadinessHandler recomputes the composite status on every call.
func (h *Handler) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		util.SetRouteName(c.Request.Context(), "readiness")
		report := h.checker.Check(c.Request.Context())
		if !report.Healthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": DependencyUnavailableDetail})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

// LivenessHandler reports that the process is serving. It makes no
// dependency calls.
func (h *Handler) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		util.SetRouteName(c.Request.Context(), "liveness")
		GetHealthMetrics().checksTotal.WithLabelValues("liveness").Inc()
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

// RegisterRoutes registers the health routes.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET(ReadinessPath, h.ReadinessHandler())
	r.GET(LivenessPath, h.LivenessHandler())
}
