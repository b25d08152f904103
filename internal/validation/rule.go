// Package validation classifies structured answers against a registered
// set of independent rules and reduces their verdicts to one result.
package validation

import (
	"context"

	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/internal/tenant"
)

// Context carries per-request inputs a rule may read. Rules must be pure
// with respect to the answer and this context; they never mutate either.
type Context struct {
	// WorkspaceID scopes tenant configuration lookups.
	WorkspaceID string

	// Tenants resolves custom patterns and tenant overrides. May be nil.
	Tenants tenant.Store
}

// Rule is one independent validation check. Evaluate receives the same
// immutable answer as every other rule and returns exactly one result.
// Returning an error (or panicking) is converted by the engine into a
// synthetic FAIL result; it never aborts sibling rules.
type Rule interface {
	// Name uniquely identifies the rule within an engine.
	Name() string

	// Evaluate checks the answer and produces a verdict.
	Evaluate(ctx context.Context, answer *domain.StructuredAnswer, vctx *Context) (domain.RuleResult, error)
}
