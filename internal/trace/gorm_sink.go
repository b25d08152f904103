package trace

import (
	"context"
	"time"

	"github.com/llm-gateway/internal/domain"
	"gorm.io/gorm"
)

// traceRow is the persisted shape of a Record.
type traceRow struct {
	TraceID         string `gorm:"primaryKey;column:trace_id"`
	RequestID       string `gorm:"index"`
	WorkspaceID     string `gorm:"index;column:workspace_id"`
	Vendor          string
	Model           string
	Prompt          string `gorm:"type:text"`
	Answer          string `gorm:"type:text"`
	ValidationLevel string
	ValidationScore int
	RiskLevel       string
	RiskScore       int
	LatencyMs       int64
	PromptTokens    int
	TotalTokens     int
	CreatedAt       time.Time `gorm:"index"`
}

func (traceRow) TableName() string { return "traces" }

// GormSink persists traces to postgres.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink creates a sink over an open gorm connection and ensures the
// traces table exists.
func NewGormSink(db *gorm.DB) (*GormSink, error) {
	if err := db.AutoMigrate(&traceRow{}); err != nil {
		return nil, err
	}
	return &GormSink{db: db}, nil
}

func (s *GormSink) Save(ctx context.Context, rec *Record) error {
	row := traceRow{
		TraceID:         rec.TraceID,
		RequestID:       rec.RequestID,
		WorkspaceID:     rec.WorkspaceID,
		Vendor:          string(rec.Vendor),
		Model:           rec.Model,
		Prompt:          rec.Prompt,
		Answer:          rec.Answer,
		ValidationLevel: string(rec.ValidationLevel),
		ValidationScore: rec.ValidationScore,
		RiskLevel:       string(rec.RiskLevel),
		RiskScore:       rec.RiskScore,
		LatencyMs:       rec.LatencyMs,
		PromptTokens:    rec.PromptTokens,
		TotalTokens:     rec.TotalTokens,
		CreatedAt:       rec.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormSink) HasRecentViolations(ctx context.Context, workspaceID string, window time.Duration) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&traceRow{}).
		Where("workspace_id = ? AND validation_level = ? AND created_at > ?",
			workspaceID, string(domain.LevelBlock), time.Now().Add(-window)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
