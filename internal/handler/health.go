package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/llm-gateway/internal/service"
	"go.uber.org/zap"
)

// HealthHandler handles liveness check requests.
type HealthHandler struct {
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		logger: logger.Named("health_handler"),
	}
}

// Handle processes GET /health requests.
func (h *HealthHandler) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyHandler probes configured vendors for readiness.
type ReadyHandler struct {
	pipeline *service.Pipeline
	logger   *zap.Logger
}

// NewReadyHandler creates a new ReadyHandler.
func NewReadyHandler(pipeline *service.Pipeline, logger *zap.Logger) *ReadyHandler {
	return &ReadyHandler{
		pipeline: pipeline,
		logger:   logger.Named("ready_handler"),
	}
}

// Handle processes GET /ready requests. Ready means every configured
// vendor answered its health probe.
func (h *ReadyHandler) Handle(c *gin.Context) {
	vendors := gin.H{}
	ready := true

	for vendor, err := range h.pipeline.Health(c.Request.Context()) {
		if err != nil {
			vendors[string(vendor)] = err.Error()
			ready = false
			continue
		}
		vendors[string(vendor)] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"vendors": vendors,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
