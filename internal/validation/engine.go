package validation

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/llm-gateway/internal/domain"
	"go.uber.org/zap"
)

// Engine runs registered rules concurrently over an answer and reduces
// their verdicts. The registry is mutable at runtime; each Validate call
// snapshots it at invocation start, so rules added mid-flight do not
// affect in-progress evaluations.
type Engine struct {
	mu     sync.RWMutex
	rules  []Rule
	logger *zap.Logger
}

// NewEngine creates an engine with an initial ordered rule set.
func NewEngine(rules []Rule, logger *zap.Logger) *Engine {
	return &Engine{
		rules:  rules,
		logger: logger.Named("validation_engine"),
	}
}

// AddRule appends a rule. A rule with a duplicate name is rejected.
func (e *Engine) AddRule(rule Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range e.rules {
		if r.Name() == rule.Name() {
			return fmt.Errorf("rule %q is already registered", rule.Name())
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// RemoveRule removes a rule by name. Removing an unknown name is an error.
func (e *Engine) RemoveRule(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, r := range e.rules {
		if r.Name() == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("rule %q is not registered", name)
}

// RuleNames lists active rules in registration order.
func (e *Engine) RuleNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name()
	}
	return names
}

// Validate runs every registered rule concurrently against the answer.
// Results land in registration order regardless of completion order. A
// rule that errors or panics becomes a synthetic FAIL result carrying the
// error text; one misbehaving rule never aborts the others.
func (e *Engine) Validate(ctx context.Context, answer *domain.StructuredAnswer, vctx *Context) domain.ValidationResult {
	e.mu.RLock()
	snapshot := make([]Rule, len(e.rules))
	copy(snapshot, e.rules)
	e.mu.RUnlock()

	results := make([]domain.RuleResult, len(snapshot))

	var wg sync.WaitGroup
	for i, rule := range snapshot {
		wg.Add(1)
		go func(i int, rule Rule) {
			defer wg.Done()
			results[i] = e.runRule(ctx, rule, answer, vctx)
		}(i, rule)
	}
	wg.Wait()

	return reduce(results)
}

// runRule executes one rule with panic isolation.
func (e *Engine) runRule(ctx context.Context, rule Rule, answer *domain.StructuredAnswer, vctx *Context) (res domain.RuleResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule panicked",
				zap.String("rule", rule.Name()),
				zap.Any("panic", r),
			)
			res = domain.RuleResult{
				Rule:    rule.Name(),
				Level:   domain.LevelFail,
				Message: fmt.Sprintf("rule panicked: %v", r),
			}
		}
	}()

	result, err := rule.Evaluate(ctx, answer, vctx)
	if err != nil {
		e.logger.Warn("rule failed",
			zap.String("rule", rule.Name()),
			zap.Error(err),
		)
		return domain.RuleResult{
			Rule:    rule.Name(),
			Level:   domain.LevelFail,
			Message: err.Error(),
		}
	}
	return result
}

// reduce computes the worst level and the mean-constant score. With zero
// rules the evaluation is PASS with score 100.
func reduce(results []domain.RuleResult) domain.ValidationResult {
	if len(results) == 0 {
		return domain.ValidationResult{
			Level:   domain.LevelPass,
			Score:   100,
			Results: []domain.RuleResult{},
		}
	}

	level := domain.LevelPass
	sum := 0
	for _, r := range results {
		if r.Level.MoreSevere(level) {
			level = r.Level
		}
		sum += r.Level.ScoreConstant()
	}

	score := int(math.Round(float64(sum) / float64(len(results))))

	return domain.ValidationResult{
		Level:   level,
		Score:   score,
		Results: results,
	}
}
