// Package trace persists completed pipeline runs. Saves are fire-and-forget
// from the pipeline's perspective: failures are logged, never propagated.
package trace

import (
	"context"
	"time"

	"github.com/llm-gateway/internal/domain"
	"go.uber.org/zap"
)

// Record is one persisted pipeline run.
type Record struct {
	TraceID         string           `json:"trace_id"`
	RequestID       string           `json:"request_id"`
	WorkspaceID     string           `json:"workspace_id"`
	Vendor          domain.Vendor    `json:"vendor"`
	Model           string           `json:"model"`
	Prompt          string           `json:"prompt"`
	Answer          string           `json:"answer"`
	ValidationLevel domain.RuleLevel `json:"validation_level"`
	ValidationScore int              `json:"validation_score"`
	RiskLevel       domain.RiskLevel `json:"risk_level"`
	RiskScore       int              `json:"risk_score"`
	LatencyMs       int64            `json:"latency_ms"`
	PromptTokens    int              `json:"prompt_tokens"`
	TotalTokens     int              `json:"total_tokens"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Sink accepts completed traces and answers history lookups.
type Sink interface {
	// Save appends one trace.
	Save(ctx context.Context, rec *Record) error

	// HasRecentViolations reports whether the workspace produced any
	// BLOCK-level validation inside the lookback window.
	HasRecentViolations(ctx context.Context, workspaceID string, window time.Duration) (bool, error)
}

// LogSink logs traces instead of persisting them. Used when no database
// is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("trace_sink")}
}

func (s *LogSink) Save(_ context.Context, rec *Record) error {
	s.logger.Info("trace",
		zap.String("trace_id", rec.TraceID),
		zap.String("request_id", rec.RequestID),
		zap.String("workspace_id", rec.WorkspaceID),
		zap.String("vendor", string(rec.Vendor)),
		zap.String("model", rec.Model),
		zap.String("validation_level", string(rec.ValidationLevel)),
		zap.Int("validation_score", rec.ValidationScore),
		zap.String("risk_level", string(rec.RiskLevel)),
		zap.Int("risk_score", rec.RiskScore),
		zap.Int64("latency_ms", rec.LatencyMs),
		zap.Int("total_tokens", rec.TotalTokens),
	)
	return nil
}

func (s *LogSink) HasRecentViolations(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}
