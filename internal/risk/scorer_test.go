package risk

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScore_DefaultWeights(t *testing.T) {
	s := NewScorer(nil, zap.NewNop())

	tests := []struct {
		name      string
		factors   domain.RiskFactors
		wantScore int
		wantLevel domain.RiskLevel
	}{
		{
			name:      "best case",
			factors:   domain.RiskFactors{Confidence: 100, EvidenceCount: 5},
			wantScore: 0,
			wantLevel: domain.RiskLow,
		},
		{
			name:      "worst case",
			factors:   domain.RiskFactors{Confidence: 0, EvidenceCount: 0, HasPII: true, HasHistoricalViolations: true},
			wantScore: 100,
			wantLevel: domain.RiskHigh,
		},
		{
			name: "middling answer",
			// 0.4*(100-70) + 0.3*(100-2*20) = 12 + 18 = 30
			factors:   domain.RiskFactors{Confidence: 70, EvidenceCount: 2},
			wantScore: 30,
			wantLevel: domain.RiskLow,
		},
		{
			name: "pii pushes into medium",
			// 0.4*30 + 0.3*60 + 0.2*100 = 12 + 18 + 20 = 50
			factors:   domain.RiskFactors{Confidence: 70, EvidenceCount: 2, HasPII: true},
			wantScore: 50,
			wantLevel: domain.RiskMedium,
		},
		{
			name: "everything bad but confident",
			// 0.4*0 + 0.3*100 + 0.2*100 + 0.1*100 = 60
			factors:   domain.RiskFactors{Confidence: 100, EvidenceCount: 0, HasPII: true, HasHistoricalViolations: true},
			wantScore: 60,
			wantLevel: domain.RiskMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.factors)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.NotEmpty(t, got.Explanation)
		})
	}
}

func TestScore_ClampsConfidence(t *testing.T) {
	s := NewScorer(nil, zap.NewNop())

	over := s.Score(domain.RiskFactors{Confidence: 250, EvidenceCount: 5})
	assert.Equal(t, 0, over.Score, "confidence above 100 must clamp, not go negative")

	under := s.Score(domain.RiskFactors{Confidence: -50, EvidenceCount: 5})
	assert.Equal(t, 40, under.Score, "negative confidence must clamp to 0")
}

func TestScore_EvidenceComponentFloorsAtZero(t *testing.T) {
	s := NewScorer(nil, zap.NewNop())

	// 10 evidence entries would be -100 unfloored.
	got := s.Score(domain.RiskFactors{Confidence: 100, EvidenceCount: 10})
	assert.Equal(t, 0, got.Score)
}

func TestScore_Explanation(t *testing.T) {
	s := NewScorer(nil, zap.NewNop())

	got := s.Score(domain.RiskFactors{Confidence: 30, EvidenceCount: 0, HasPII: true})
	assert.Contains(t, got.Explanation, "low confidence")
	assert.Contains(t, got.Explanation, "insufficient evidence")
	assert.Contains(t, got.Explanation, "sensitive data detected")
	assert.Contains(t, got.Explanation, "high risk")

	clean := s.Score(domain.RiskFactors{Confidence: 80, EvidenceCount: 3})
	assert.Equal(t, "low risk", clean.Explanation)
}

func TestScore_Deterministic(t *testing.T) {
	s := NewScorer(nil, zap.NewNop())
	factors := domain.RiskFactors{Confidence: 55, EvidenceCount: 1, HasPII: true}

	first := s.Score(factors)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(factors))
	}
}

func TestScoreForWorkspace_TenantOverrides(t *testing.T) {
	store := tenant.NewMemoryStore()
	store.WeightsByWorkspace["ws1"] = domain.ScoringWeights{
		Confidence: 1.0, Evidence: 0, PII: 0, Historical: 0,
	}
	store.ThresholdsByWorkspace["ws1"] = domain.RiskLevelThresholds{High: 50, Medium: 20}

	s := NewScorer(store, zap.NewNop())
	factors := domain.RiskFactors{Confidence: 40, EvidenceCount: 0, HasPII: true}

	got := s.ScoreForWorkspace(context.Background(), "ws1", factors)
	require.Equal(t, 60, got.Score, "override weights confidence only")
	assert.Equal(t, domain.RiskHigh, got.Level, "override thresholds lower the high bar")

	// A workspace without overrides gets the defaults.
	def := s.ScoreForWorkspace(context.Background(), "ws2", factors)
	assert.NotEqual(t, got.Score, def.Score)
}

// failingStore errors on every lookup.
type failingStore struct{}

func (failingStore) Weights(context.Context, string) (*domain.ScoringWeights, error) {
	return nil, errors.New("db down")
}

func (failingStore) Thresholds(context.Context, string) (*domain.RiskLevelThresholds, error) {
	return nil, errors.New("db down")
}

func (failingStore) CustomPatterns(context.Context, string) ([]string, error) {
	return nil, errors.New("db down")
}

func TestScoreForWorkspace_LookupFailureFallsBack(t *testing.T) {
	s := NewScorer(failingStore{}, zap.NewNop())
	factors := domain.RiskFactors{Confidence: 70, EvidenceCount: 2}

	got := s.ScoreForWorkspace(context.Background(), "ws1", factors)
	want := s.Score(factors)
	assert.Equal(t, want, got, "lookup failure must degrade to defaults")
}

func TestScore_LevelBoundaries(t *testing.T) {
	_ = NewScorer(nil, zap.NewNop())

	// 0.4*(100-c) score; pick confidence values that land on thresholds.
	tests := []struct {
		score int
		want  domain.RiskLevel
	}{
		{39, domain.RiskLow},
		{40, domain.RiskMedium},
		{69, domain.RiskMedium},
		{70, domain.RiskHigh},
	}

	for _, tt := range tests {
		level := levelFor(tt.score, domain.DefaultRiskThresholds())
		if level != tt.want {
			t.Errorf("levelFor(%d) = %v, want %v", tt.score, level, tt.want)
		}
	}
}

func TestExplain_SummaryMatchesLevel(t *testing.T) {
	for _, level := range []domain.RiskLevel{domain.RiskLow, domain.RiskMedium, domain.RiskHigh} {
		out := explain(domain.RiskFactors{Confidence: 70, EvidenceCount: 3}, level)
		assert.True(t, strings.Contains(out, string(level)), "explanation %q should name level %s", out, level)
	}
}
