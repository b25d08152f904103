package tenant

import (
	"context"
	"errors"

	"github.com/llm-gateway/internal/domain"
	"gorm.io/gorm"
)

// validationConfig is one weights/thresholds row per workspace.
type validationConfig struct {
	WorkspaceID      string `gorm:"primaryKey;column:workspace_id"`
	WeightConfidence *float64
	WeightEvidence   *float64
	WeightPII        *float64 `gorm:"column:weight_pii"`
	WeightHistorical *float64
	ThresholdHigh    *int
	ThresholdMedium  *int
}

func (validationConfig) TableName() string { return "validation_configs" }

// customPattern is one tenant-supplied detection regex.
type customPattern struct {
	ID          uint   `gorm:"primaryKey"`
	WorkspaceID string `gorm:"index;column:workspace_id"`
	Pattern     string
	Enabled     bool
}

func (customPattern) TableName() string { return "custom_patterns" }

// GormStore reads tenant configuration from postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over an open gorm connection and ensures
// the backing tables exist.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&validationConfig{}, &customPattern{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Weights(ctx context.Context, workspaceID string) (*domain.ScoringWeights, error) {
	row, err := s.load(ctx, workspaceID)
	if err != nil || row == nil {
		return nil, err
	}

	if row.WeightConfidence == nil && row.WeightEvidence == nil &&
		row.WeightPII == nil && row.WeightHistorical == nil {
		return nil, nil
	}

	w := domain.DefaultScoringWeights()
	if row.WeightConfidence != nil {
		w.Confidence = *row.WeightConfidence
	}
	if row.WeightEvidence != nil {
		w.Evidence = *row.WeightEvidence
	}
	if row.WeightPII != nil {
		w.PII = *row.WeightPII
	}
	if row.WeightHistorical != nil {
		w.Historical = *row.WeightHistorical
	}
	return &w, nil
}

func (s *GormStore) Thresholds(ctx context.Context, workspaceID string) (*domain.RiskLevelThresholds, error) {
	row, err := s.load(ctx, workspaceID)
	if err != nil || row == nil {
		return nil, err
	}

	if row.ThresholdHigh == nil && row.ThresholdMedium == nil {
		return nil, nil
	}

	t := domain.DefaultRiskThresholds()
	if row.ThresholdHigh != nil {
		t.High = *row.ThresholdHigh
	}
	if row.ThresholdMedium != nil {
		t.Medium = *row.ThresholdMedium
	}
	return &t, nil
}

func (s *GormStore) CustomPatterns(ctx context.Context, workspaceID string) ([]string, error) {
	var rows []customPattern
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND enabled", workspaceID).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	patterns := make([]string, 0, len(rows))
	for _, r := range rows {
		patterns = append(patterns, r.Pattern)
	}
	return patterns, nil
}

func (s *GormStore) load(ctx context.Context, workspaceID string) (*validationConfig, error) {
	var row validationConfig
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
