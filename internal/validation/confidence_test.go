package validation

import (
	"context"
	"testing"

	"github.com/llm-gateway/internal/domain"
)

func TestConfidenceRule(t *testing.T) {
	rule := NewConfidenceRule()

	tests := []struct {
		name       string
		confidence float64
		evidence   int
		want       domain.RuleLevel
	}{
		{"zero confidence", 0, 0, domain.LevelWarn},
		{"low confidence", 40, 3, domain.LevelWarn},
		{"boundary 50 passes", 50, 2, domain.LevelPass},
		{"mid confidence", 75, 0, domain.LevelPass},
		{"boundary 90 with enough evidence", 90, 3, domain.LevelPass},
		{"boundary 90 with thin evidence", 90, 1, domain.LevelWarn},
		{"very confident no evidence", 95, 0, domain.LevelWarn},
		{"very confident two evidence", 95, 2, domain.LevelPass},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer := &domain.StructuredAnswer{
				Answer:     "x",
				Confidence: tt.confidence,
				Evidence:   make([]string, tt.evidence),
			}
			got, err := rule.Evaluate(context.Background(), answer, nil)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got.Level != tt.want {
				t.Errorf("Level = %v, want %v", got.Level, tt.want)
			}
			if got.Rule != "confidence" {
				t.Errorf("Rule = %q", got.Rule)
			}
		})
	}
}
