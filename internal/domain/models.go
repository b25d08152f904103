// Package domain contains the core domain models and types.
// These models represent the business logic contracts and are independent
// of any infrastructure concerns.
package domain

import "time"

// Vendor identifies an upstream LLM provider.
type Vendor string

const (
	VendorOpenAI    Vendor = "openai"
	VendorAnthropic Vendor = "anthropic"
	VendorGemini    Vendor = "gemini"
)

// IsValid checks if the vendor value is one of the supported providers.
func (v Vendor) IsValid() bool {
	switch v {
	case VendorOpenAI, VendorAnthropic, VendorGemini:
		return true
	default:
		return false
	}
}

// Message is a single chat message in a conversation.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Request represents an incoming chat-completion request.
// A Request is immutable once dispatched to an enforcer.
type Request struct {
	// Vendor selects the upstream provider.
	Vendor Vendor `json:"vendor" binding:"required"`

	// Model is the provider-native model identifier.
	Model string `json:"model" binding:"required"`

	// SystemPrompt is an optional system instruction prepended to the call.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages is the ordered conversation. Either Messages or Prompt
	// must be set.
	Messages []Message `json:"messages,omitempty"`

	// Prompt is a single-prompt shorthand for Messages.
	Prompt string `json:"prompt,omitempty"`

	// Temperature controls sampling randomness (0.0 - 2.0).
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens caps the completion length.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Stream requests token-by-token delivery.
	Stream bool `json:"stream,omitempty"`

	// WorkspaceID scopes tenant configuration, credentials and traces.
	WorkspaceID string `json:"workspace_id,omitempty"`
}

// UserText returns the conversation flattened into one prompt string.
func (r *Request) UserText() string {
	if r.Prompt != "" {
		return r.Prompt
	}
	var out string
	for _, m := range r.Messages {
		if m.Role == "user" {
			if out != "" {
				out += "\n"
			}
			out += m.Content
		}
	}
	return out
}

// FallbackNote is recorded in Evidence when a vendor response could not be
// decoded and the answer was materialized from raw text.
const FallbackNote = "unparsed vendor output: structured fields were defaulted"

// StructuredAnswer is the fixed-shape decoded output the pipeline guarantees
// for every request. Confidence is canonically 0-100; vendor values reported
// on a 0.0-1.0 scale are converted once at decode time.
type StructuredAnswer struct {
	// Answer is the model's response text. Required.
	Answer string `json:"answer"`

	// Confidence is the vendor-reported certainty, 0-100.
	Confidence float64 `json:"confidence"`

	// Evidence lists supporting statements. May be empty.
	Evidence []string `json:"evidence"`

	// Alternatives lists alternative answers or known risks. May be empty.
	Alternatives []string `json:"alternatives"`
}

// RuleLevel is the severity verdict produced by a validation rule.
type RuleLevel string

const (
	LevelPass  RuleLevel = "PASS"
	LevelWarn  RuleLevel = "WARN"
	LevelFail  RuleLevel = "FAIL"
	LevelBlock RuleLevel = "BLOCK"
)

// severityRank orders levels for worst-wins reduction.
var severityRank = map[RuleLevel]int{
	LevelPass:  0,
	LevelWarn:  1,
	LevelFail:  2,
	LevelBlock: 3,
}

// MoreSevere reports whether l outranks other.
func (l RuleLevel) MoreSevere(other RuleLevel) bool {
	return severityRank[l] > severityRank[other]
}

// ScoreConstant maps a level to its scoring constant.
func (l RuleLevel) ScoreConstant() int {
	switch l {
	case LevelPass:
		return 100
	case LevelWarn:
		return 60
	case LevelFail:
		return 20
	default:
		return 0
	}
}

// RuleResult is the outcome of one rule for one validation run.
// It is produced once and never mutated afterward.
type RuleResult struct {
	Rule     string         `json:"rule"`
	Level    RuleLevel      `json:"level"`
	Message  string         `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ValidationResult is the reduced verdict over all rule results.
type ValidationResult struct {
	// Level is the worst level among Results (BLOCK > FAIL > WARN > PASS).
	Level RuleLevel `json:"level"`

	// Score is round(mean of per-level constants); 100 when no rules ran.
	Score int `json:"score"`

	// Results are stored in rule registration order.
	Results []RuleResult `json:"results"`
}

// RiskLevel is the discrete risk classification.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskFactors are the raw inputs to the risk scorer. They are derived fresh
// per evaluation and not persisted independently of the score they produce.
type RiskFactors struct {
	Confidence              float64 `json:"confidence"`
	EvidenceCount           int     `json:"evidence_count"`
	HasPII                  bool    `json:"has_pii"`
	HasHistoricalViolations bool    `json:"has_historical_violations"`
	PromptComplexity        float64 `json:"prompt_complexity,omitempty"`
}

// RiskScore is the weighted numeric risk estimate, immutable once returned.
type RiskScore struct {
	Score       int       `json:"score"` // 0-100, clamped
	Level       RiskLevel `json:"level"`
	Explanation string    `json:"explanation"`
}

// ScoringWeights are the tenant-tunable factor weights. They need not sum
// to 1 after a tenant override; no renormalization is performed.
type ScoringWeights struct {
	Confidence float64 `json:"confidence"`
	Evidence   float64 `json:"evidence"`
	PII        float64 `json:"pii"`
	Historical float64 `json:"historical"`
}

// DefaultScoringWeights returns the built-in weights.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Confidence: 0.4,
		Evidence:   0.3,
		PII:        0.2,
		Historical: 0.1,
	}
}

// RiskLevelThresholds map a numeric score to a discrete level. The first
// threshold met from high downward determines the level.
type RiskLevelThresholds struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
}

// DefaultRiskThresholds returns the built-in level thresholds.
func DefaultRiskThresholds() RiskLevelThresholds {
	return RiskLevelThresholds{High: 70, Medium: 40}
}

// Usage carries token accounting reported by the vendor.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionEnvelope is the terminal payload returned to the caller for
// both the blocking and the streaming path.
type CompletionEnvelope struct {
	RequestID  string            `json:"request_id"`
	Vendor     Vendor            `json:"vendor"`
	Model      string            `json:"model"`
	Answer     *StructuredAnswer `json:"answer"`
	Validation *ValidationResult `json:"validation"`
	Risk       *RiskScore        `json:"risk"`
	Usage      Usage             `json:"usage"`
	LatencyMs  int64             `json:"latency_ms"`
	TraceID    string            `json:"trace_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
