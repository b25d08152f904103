// Package risk turns raw answer factors into a weighted 0-100 risk score.
// Scoring is deterministic and explainable: the same factors and resolved
// configuration always produce the same score and explanation.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/internal/tenant"
	"go.uber.org/zap"
)

// Fixed explanation thresholds. These are internal to the narrative and
// not tenant-tunable; only weights and level thresholds are.
const (
	lowConfidenceBelow     = 60
	highConfidenceAbove    = 90
	insufficientEvidenceLT = 2
	sufficientEvidenceGTE  = 5
)

// Scorer computes risk scores. The zero-configuration path uses built-in
// defaults; the workspace path resolves tenant overrides first.
type Scorer struct {
	store  tenant.Store
	logger *zap.Logger
}

// NewScorer creates a scorer. store may be nil when no tenant
// configuration source exists; the default path still works.
func NewScorer(store tenant.Store, logger *zap.Logger) *Scorer {
	return &Scorer{
		store:  store,
		logger: logger.Named("risk_scorer"),
	}
}

// Score computes a risk score with the built-in default weights and
// thresholds. Used when no tenant context is available.
func (s *Scorer) Score(factors domain.RiskFactors) domain.RiskScore {
	return compute(factors, domain.DefaultScoringWeights(), domain.DefaultRiskThresholds())
}

// ScoreForWorkspace resolves the workspace's weight and threshold
// overrides, then applies the same arithmetic. Lookup failures fall back
// to defaults; a missing configuration is not an error.
func (s *Scorer) ScoreForWorkspace(ctx context.Context, workspaceID string, factors domain.RiskFactors) domain.RiskScore {
	weights := domain.DefaultScoringWeights()
	thresholds := domain.DefaultRiskThresholds()

	if s.store != nil && workspaceID != "" {
		if w, err := s.store.Weights(ctx, workspaceID); err != nil {
			s.logger.Warn("weight lookup failed, using defaults",
				zap.String("workspace_id", workspaceID),
				zap.Error(err),
			)
		} else if w != nil {
			weights = *w
		}

		if t, err := s.store.Thresholds(ctx, workspaceID); err != nil {
			s.logger.Warn("threshold lookup failed, using defaults",
				zap.String("workspace_id", workspaceID),
				zap.Error(err),
			)
		} else if t != nil {
			thresholds = *t
		}
	}

	return compute(factors, weights, thresholds)
}

// compute applies the weighted component model:
//
//	confidence component: 100 - clamp(confidence, 0, 100)
//	evidence component:   max(0, 100 - evidenceCount*20)
//	pii component:        100 when PII is present
//	historical component: 100 when past violations exist
//
// Weights are applied as configured; no renormalization when a tenant
// override does not sum to 1.
func compute(f domain.RiskFactors, w domain.ScoringWeights, t domain.RiskLevelThresholds) domain.RiskScore {
	confidence := clamp(f.Confidence, 0, 100)

	confidenceComponent := 100 - confidence
	evidenceComponent := math.Max(0, 100-float64(f.EvidenceCount)*20)

	var piiComponent, historicalComponent float64
	if f.HasPII {
		piiComponent = 100
	}
	if f.HasHistoricalViolations {
		historicalComponent = 100
	}

	raw := confidenceComponent*w.Confidence +
		evidenceComponent*w.Evidence +
		piiComponent*w.PII +
		historicalComponent*w.Historical

	score := int(math.Round(clamp(raw, 0, 100)))
	level := levelFor(score, t)

	return domain.RiskScore{
		Score:       score,
		Level:       level,
		Explanation: explain(f, level),
	}
}

// levelFor applies thresholds from high downward.
func levelFor(score int, t domain.RiskLevelThresholds) domain.RiskLevel {
	switch {
	case score >= t.High:
		return domain.RiskHigh
	case score >= t.Medium:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// explain builds the additive factor narrative plus a level summary.
func explain(f domain.RiskFactors, level domain.RiskLevel) string {
	var parts []string

	if f.Confidence < lowConfidenceBelow {
		parts = append(parts, "low confidence")
	} else if f.Confidence > highConfidenceAbove {
		parts = append(parts, "high confidence")
	}

	if f.EvidenceCount < insufficientEvidenceLT {
		parts = append(parts, "insufficient evidence")
	} else if f.EvidenceCount >= sufficientEvidenceGTE {
		parts = append(parts, "sufficient evidence")
	}

	if f.HasPII {
		parts = append(parts, "sensitive data detected")
	}

	if f.HasHistoricalViolations {
		parts = append(parts, "workspace has recent violations")
	}

	var summary string
	switch level {
	case domain.RiskHigh:
		summary = "high risk: review before release"
	case domain.RiskMedium:
		summary = "medium risk: release with caution"
	default:
		summary = "low risk"
	}

	if len(parts) == 0 {
		return summary
	}
	return fmt.Sprintf("%s; %s", strings.Join(parts, ", "), summary)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
