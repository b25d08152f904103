package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/llm-gateway/internal/domain"
	"go.uber.org/zap"
)

// staticRule returns a fixed level.
type staticRule struct {
	name  string
	level domain.RuleLevel
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, *domain.StructuredAnswer, *Context) (domain.RuleResult, error) {
	return domain.RuleResult{Rule: r.name, Level: r.level}, nil
}

// errorRule always fails with an error.
type errorRule struct{}

func (errorRule) Name() string { return "broken" }

func (errorRule) Evaluate(context.Context, *domain.StructuredAnswer, *Context) (domain.RuleResult, error) {
	return domain.RuleResult{}, errors.New("rule exploded")
}

// panicRule panics on evaluation.
type panicRule struct{}

func (panicRule) Name() string { return "panicky" }

func (panicRule) Evaluate(context.Context, *domain.StructuredAnswer, *Context) (domain.RuleResult, error) {
	panic("unexpected state")
}

func testAnswer() *domain.StructuredAnswer {
	return &domain.StructuredAnswer{Answer: "ok", Confidence: 80}
}

func TestValidate_Reduction(t *testing.T) {
	tests := []struct {
		name      string
		levels    []domain.RuleLevel
		wantLevel domain.RuleLevel
		wantScore int
	}{
		{
			name:      "all pass",
			levels:    []domain.RuleLevel{domain.LevelPass, domain.LevelPass},
			wantLevel: domain.LevelPass,
			wantScore: 100,
		},
		{
			name:      "worst level wins",
			levels:    []domain.RuleLevel{domain.LevelPass, domain.LevelWarn, domain.LevelFail},
			wantLevel: domain.LevelFail,
			wantScore: 60, // (100+60+20)/3
		},
		{
			name:      "block dominates",
			levels:    []domain.RuleLevel{domain.LevelPass, domain.LevelBlock},
			wantLevel: domain.LevelBlock,
			wantScore: 50, // (100+0)/2
		},
		{
			name:      "score rounds to nearest",
			levels:    []domain.RuleLevel{domain.LevelPass, domain.LevelPass, domain.LevelWarn},
			wantLevel: domain.LevelWarn,
			wantScore: 87, // 260/3 = 86.67
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := make([]Rule, len(tt.levels))
			for i, level := range tt.levels {
				rules[i] = staticRule{name: string(rune('a' + i)), level: level}
			}
			e := NewEngine(rules, zap.NewNop())

			got := e.Validate(context.Background(), testAnswer(), nil)
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %v, want %v", got.Level, tt.wantLevel)
			}
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
		})
	}
}

func TestValidate_ZeroRules(t *testing.T) {
	e := NewEngine(nil, zap.NewNop())

	got := e.Validate(context.Background(), testAnswer(), nil)
	if got.Level != domain.LevelPass || got.Score != 100 {
		t.Errorf("empty engine = %v/%d, want PASS/100", got.Level, got.Score)
	}
}

func TestValidate_ResultsInRegistrationOrder(t *testing.T) {
	e := NewEngine([]Rule{
		staticRule{name: "first", level: domain.LevelPass},
		staticRule{name: "second", level: domain.LevelWarn},
		staticRule{name: "third", level: domain.LevelPass},
	}, zap.NewNop())

	got := e.Validate(context.Background(), testAnswer(), nil)
	want := []string{"first", "second", "third"}
	for i, r := range got.Results {
		if r.Rule != want[i] {
			t.Errorf("Results[%d] = %q, want %q", i, r.Rule, want[i])
		}
	}
}

func TestValidate_ErrorIsolation(t *testing.T) {
	e := NewEngine([]Rule{
		staticRule{name: "healthy", level: domain.LevelPass},
		errorRule{},
	}, zap.NewNop())

	got := e.Validate(context.Background(), testAnswer(), nil)
	if len(got.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(got.Results))
	}
	if got.Results[0].Level != domain.LevelPass {
		t.Errorf("healthy rule affected by sibling failure")
	}
	if got.Results[1].Level != domain.LevelFail {
		t.Errorf("erroring rule level = %v, want FAIL", got.Results[1].Level)
	}
	if got.Level != domain.LevelFail {
		t.Errorf("overall level = %v, want FAIL", got.Level)
	}
}

func TestValidate_PanicIsolation(t *testing.T) {
	e := NewEngine([]Rule{
		panicRule{},
		staticRule{name: "healthy", level: domain.LevelPass},
	}, zap.NewNop())

	got := e.Validate(context.Background(), testAnswer(), nil)
	if got.Results[0].Level != domain.LevelFail {
		t.Errorf("panicking rule level = %v, want FAIL", got.Results[0].Level)
	}
	if got.Results[1].Level != domain.LevelPass {
		t.Errorf("healthy rule affected by sibling panic")
	}
}

func TestAddRule_RejectsDuplicates(t *testing.T) {
	e := NewEngine([]Rule{staticRule{name: "one", level: domain.LevelPass}}, zap.NewNop())

	if err := e.AddRule(staticRule{name: "one", level: domain.LevelWarn}); err == nil {
		t.Error("duplicate rule name should be rejected")
	}
	if err := e.AddRule(staticRule{name: "two", level: domain.LevelPass}); err != nil {
		t.Errorf("AddRule(two) error = %v", err)
	}
}

func TestRemoveRule(t *testing.T) {
	e := NewEngine([]Rule{staticRule{name: "one", level: domain.LevelPass}}, zap.NewNop())

	if err := e.RemoveRule("missing"); err == nil {
		t.Error("removing an unknown rule should error")
	}
	if err := e.RemoveRule("one"); err != nil {
		t.Errorf("RemoveRule(one) error = %v", err)
	}
	if names := e.RuleNames(); len(names) != 0 {
		t.Errorf("RuleNames() = %v, want empty", names)
	}
}
