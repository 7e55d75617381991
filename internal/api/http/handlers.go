package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/dispatch"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/domain/registry"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/ServiceHub/backend/internal/shared/utils"
)

// Version is reported by the root and health endpoints
const Version = "1.0.0"

// BreakerReporter exposes per-host circuit breaker states
type BreakerReporter interface {
	BreakerStates() map[string]string
}

// Handlers contains the hub's HTTP handlers
type Handlers struct {
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	metrics    *monitoring.Metrics
	breakers   BreakerReporter
	bodies     *utils.JSONSizeValidator
	instanceID string
	logger     *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(
	reg *registry.Registry,
	dispatcher *dispatch.Dispatcher,
	metrics *monitoring.Metrics,
	breakers BreakerReporter,
	instanceID string,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry:   reg,
		dispatcher: dispatcher,
		metrics:    metrics,
		breakers:   breakers,
		bodies:     utils.NewJSONSizeValidator(utils.MaxPayloadSize),
		instanceID: instanceID,
		logger:     logger,
	}
}

// Root handles the liveness probe
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ServiceHub",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	breakers := map[string]string{}
	if h.breakers != nil {
		breakers = h.breakers.BreakerStates()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"version":          Version,
		"instance_id":      h.instanceID,
		"uptime_seconds":   h.metrics.Uptime().Seconds(),
		"service_registry": h.registry.Stats(),
		"breakers":         breakers,
		"metrics":          h.metrics.Snapshot(),
	})
}

// MetricsSummary provides high-level metrics
type MetricsSummary struct {
	Timestamp        time.Time                  `json:"timestamp"`
	Counters         monitoring.MetricsSnapshot `json:"counters"`
	ErrorRate        float64                    `json:"error_rate"`
	DispatchFailRate float64                    `json:"dispatch_failure_rate"`
	UptimeSeconds    float64                    `json:"uptime_seconds"`
	Breakers         map[string]string          `json:"breakers"`
	Registry         map[string]interface{}     `json:"registry"`
}

// MetricsJSON returns the counters and derived rates as JSON
func (h *Handlers) MetricsJSON(c *gin.Context) {
	counters := h.metrics.Snapshot()

	summary := MetricsSummary{
		Timestamp:     time.Now(),
		Counters:      counters,
		UptimeSeconds: h.metrics.Uptime().Seconds(),
		Breakers:      map[string]string{},
		Registry:      h.registry.Stats(),
	}
	if counters.TotalRequests > 0 {
		summary.ErrorRate = float64(counters.TotalErrors) / float64(counters.TotalRequests)
	}
	if counters.TotalDispatches > 0 {
		summary.DispatchFailRate = float64(counters.FailedDispatches) / float64(counters.TotalDispatches)
	}
	if h.breakers != nil {
		summary.Breakers = h.breakers.BreakerStates()
	}

	c.JSON(http.StatusOK, summary)
}
