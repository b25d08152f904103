package validation

import (
	"context"
	"fmt"

	"github.com/llm-gateway/internal/domain"
)

// ConfidenceRule checks that the reported confidence is consistent with the
// supplied evidence: very confident answers need backing, and very
// unconfident answers are flagged regardless of evidence.
type ConfidenceRule struct{}

// NewConfidenceRule creates the confidence/evidence-consistency rule.
func NewConfidenceRule() *ConfidenceRule {
	return &ConfidenceRule{}
}

func (r *ConfidenceRule) Name() string {
	return "confidence"
}

func (r *ConfidenceRule) Evaluate(_ context.Context, answer *domain.StructuredAnswer, _ *Context) (domain.RuleResult, error) {
	confidence := answer.Confidence
	evidence := len(answer.Evidence)

	switch {
	case confidence < 50:
		return domain.RuleResult{
			Rule:    r.Name(),
			Level:   domain.LevelWarn,
			Message: fmt.Sprintf("low confidence (%.0f)", confidence),
			Metadata: map[string]any{
				"confidence": confidence,
				"evidence":   evidence,
			},
		}, nil

	case confidence >= 90 && evidence < 2:
		return domain.RuleResult{
			Rule:    r.Name(),
			Level:   domain.LevelWarn,
			Message: fmt.Sprintf("high confidence (%.0f) with only %d evidence entries", confidence, evidence),
			Metadata: map[string]any{
				"confidence": confidence,
				"evidence":   evidence,
			},
		}, nil

	default:
		return domain.RuleResult{
			Rule:    r.Name(),
			Level:   domain.LevelPass,
			Message: "confidence is consistent with evidence",
		}, nil
	}
}
