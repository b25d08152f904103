// Package handler contains HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/internal/service"
	"go.uber.org/zap"
)

// CompletionHandler serves chat-completion requests, blocking and streaming.
type CompletionHandler struct {
	pipeline *service.Pipeline
	logger   *zap.Logger
}

// NewCompletionHandler creates a new CompletionHandler.
func NewCompletionHandler(pipeline *service.Pipeline, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		pipeline: pipeline,
		logger:   logger.Named("completion_handler"),
	}
}

// Handle processes POST /api/v1/chat/completions requests.
func (h *CompletionHandler) Handle(c *gin.Context) {
	startTime := time.Now()
	logger := h.logger.With(zap.String("request_id", c.GetString("request_id")))

	var req domain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	if !req.Vendor.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported vendor %q", req.Vendor)})
		return
	}

	if req.Prompt == "" && len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either prompt or messages is required"})
		return
	}

	if req.Stream {
		h.handleStream(c, &req, logger)
		return
	}

	env, err := h.pipeline.Complete(c.Request.Context(), &req)
	if err != nil {
		status := statusFor(err)
		logger.Error("completion failed",
			zap.String("vendor", string(req.Vendor)),
			zap.String("model", req.Model),
			zap.Int("status", status),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": publicMessage(err)})
		return
	}

	logger.Info("completion succeeded",
		zap.String("vendor", string(req.Vendor)),
		zap.String("model", req.Model),
		zap.String("validation_level", string(env.Validation.Level)),
		zap.String("risk_level", string(env.Risk.Level)),
		zap.Duration("duration", time.Since(startTime)),
	)
	c.JSON(http.StatusOK, env)
}

// handleStream delivers deltas as server-sent events, then one terminal
// result event carrying the full envelope. Errors after the first delta
// cannot change the HTTP status; they surface as an error event.
func (h *CompletionHandler) handleStream(c *gin.Context, req *domain.Request, logger *zap.Logger) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	forward := func(delta string) error {
		payload, err := json.Marshal(gin.H{"delta": delta})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: delta\ndata: %s\n\n", payload); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	env, err := h.pipeline.CompleteStream(c.Request.Context(), req, forward)
	if err != nil {
		// Stream setup failed before any delta left; a plain error
		// response is still possible.
		status := statusFor(err)
		logger.Error("stream setup failed",
			zap.String("vendor", string(req.Vendor)),
			zap.Int("status", status),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": publicMessage(err)})
		return
	}

	payload, err := json.Marshal(env)
	if err != nil {
		logger.Error("envelope encoding failed", zap.Error(err))
		return
	}
	fmt.Fprintf(c.Writer, "event: result\ndata: %s\n\n", payload)
	c.Writer.Flush()

	logger.Info("stream completed",
		zap.String("vendor", string(req.Vendor)),
		zap.String("model", req.Model),
		zap.String("validation_level", string(env.Validation.Level)),
	)
}

// statusFor maps the pipeline error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindCredential:
		return http.StatusUnauthorized
	case domain.KindUpstream, domain.KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns an error string safe to echo to callers.
func publicMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindCredential:
		return "no credential configured for the requested vendor"
	case domain.KindUpstream:
		return "upstream vendor rejected the request"
	case domain.KindTransport:
		return "upstream vendor is unreachable"
	default:
		return "internal error"
	}
}
