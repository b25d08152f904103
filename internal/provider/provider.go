// Package provider implements per-vendor structured-output enforcement.
// Each vendor client translates the vendor-agnostic request into the
// vendor's wire format; the enforcer wraps it with escalation prompts,
// retry handling and decode fallbacks so the pipeline always receives a
// well-formed StructuredAnswer or a typed error.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/llm-gateway/internal/config"
	"github.com/llm-gateway/internal/domain"
	"go.uber.org/zap"
)

// Chunk is one element of a streamed completion. Exactly one of Text or Err
// is meaningful; Usage rides on the final chunk when the vendor reports it.
type Chunk struct {
	Text  string
	Usage *domain.Usage
	Err   error
}

// Enforcer produces a StructuredAnswer from one request, hiding
// vendor-specific request/response shapes. Implementations hold only an
// immutable credential and SDK client and are safe for concurrent use.
type Enforcer interface {
	// Vendor identifies the upstream this enforcer talks to.
	Vendor() domain.Vendor

	// Enforce issues a blocking completion and coerces the output into a
	// StructuredAnswer. Decode failures never surface as errors; credential,
	// upstream and transport failures do.
	Enforce(ctx context.Context, req *domain.Request) (*domain.StructuredAnswer, domain.Usage, error)

	// EnforceStream issues a streaming completion. The returned channel
	// carries text deltas in vendor order and closes at end of stream;
	// mid-stream vendor errors arrive as a Chunk with Err set.
	EnforceStream(ctx context.Context, req *domain.Request) (<-chan Chunk, error)

	// HealthCheck verifies the vendor is reachable.
	HealthCheck(ctx context.Context) error
}

// completion is a vendor-neutral blocking result.
type completion struct {
	Text  string
	Usage domain.Usage
}

// vendorClient is the minimal per-vendor surface the enforcer builds on.
type vendorClient interface {
	complete(ctx context.Context, req *domain.Request, system string, jsonMode bool) (*completion, error)
	stream(ctx context.Context, req *domain.Request, system string, jsonMode bool) (<-chan Chunk, error)
	healthCheck(ctx context.Context) error
}

// New resolves an enforcer for a vendor. Dispatch is an exhaustive switch;
// an unknown vendor is a request error, not a fallback.
func New(vendor domain.Vendor, cfg *config.ProviderConfig, logger *zap.Logger) (Enforcer, error) {
	if cfg.MockMode {
		return NewStub(vendor, logger), nil
	}

	key := cfg.KeyFor(vendor)
	if key == "" {
		if !vendor.IsValid() {
			return nil, domain.WrapError("resolve_provider", domain.KindInternal,
				fmt.Errorf("%w: %s", domain.ErrUnsupportedVendor, vendor), false)
		}
		return nil, domain.WrapError("resolve_provider", domain.KindCredential,
			fmt.Errorf("%w: no API key configured for vendor %s", domain.ErrMissingCredential, vendor), false)
	}

	var client vendorClient
	switch vendor {
	case domain.VendorOpenAI:
		client = newOpenAIClient(key, cfg.Timeout)
	case domain.VendorAnthropic:
		client = newAnthropicClient(key, cfg.Timeout)
	case domain.VendorGemini:
		c, err := newGeminiClient(key)
		if err != nil {
			return nil, domain.WrapError("resolve_provider", domain.KindInternal, err, false)
		}
		client = c
	default:
		return nil, domain.WrapError("resolve_provider", domain.KindInternal,
			fmt.Errorf("%w: %s", domain.ErrUnsupportedVendor, vendor), false)
	}

	return newEnforcer(vendor, client, cfg, logger), nil
}

// enforcer applies the escalation/fallback policy on top of a vendorClient.
type enforcer struct {
	vendor     domain.Vendor
	client     vendorClient
	jsonModels map[string]bool
	maxRetries int
	maxTokens  int
	logger     *zap.Logger
}

func newEnforcer(vendor domain.Vendor, client vendorClient, cfg *config.ProviderConfig, logger *zap.Logger) *enforcer {
	jsonModels := make(map[string]bool, len(jsonModeModels)+len(cfg.JSONModeModels))
	for _, m := range jsonModeModels {
		jsonModels[m] = true
	}
	for _, m := range cfg.JSONModeModels {
		jsonModels[m] = true
	}

	return &enforcer{
		vendor:     vendor,
		client:     client,
		jsonModels: jsonModels,
		maxRetries: cfg.MaxRetries,
		maxTokens:  cfg.MaxTokens,
		logger:     logger.Named(string(vendor) + "_enforcer"),
	}
}

// jsonModeModels are models trusted to honor native JSON output without
// prompt escalation. Extended via JSON_MODE_MODELS.
var jsonModeModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4.1",
	"gpt-4.1-mini",
	"gemini-2.0-flash",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
}

func (e *enforcer) Vendor() domain.Vendor {
	return e.vendor
}

// Enforce runs up to three attempts, one per escalation tier, stopping at
// the first output that parses into the required shape. Models on the
// JSON-mode allow-list make a single attempt and rely on the vendor's own
// guarantee. If every attempt fails to parse, the last attempt's raw text
// is materialized through the lenient fallback.
func (e *enforcer) Enforce(ctx context.Context, req *domain.Request) (*domain.StructuredAnswer, domain.Usage, error) {
	startTime := time.Now()

	jsonMode := e.jsonModels[req.Model]
	tiers := []PromptTier{TierStructured, TierStrict, TierEmergency}
	if jsonMode {
		tiers = tiers[:1]
	}

	effective := e.withDefaults(req)

	var lastText string
	var usage domain.Usage

	for i, tier := range tiers {
		system := SystemFor(tier, req.SystemPrompt)

		comp, err := e.callWithRetry(ctx, effective, system, jsonMode)
		if err != nil {
			return nil, domain.Usage{}, err
		}

		lastText = comp.Text
		usage.PromptTokens += comp.Usage.PromptTokens
		usage.CompletionTokens += comp.Usage.CompletionTokens
		usage.TotalTokens += comp.Usage.TotalTokens

		if answer, ok := DecodeStrict(comp.Text); ok {
			e.logger.Debug("enforcement succeeded",
				zap.Int("attempt", i+1),
				zap.String("tier", string(tier)),
				zap.Duration("duration", time.Since(startTime)),
			)
			return answer, usage, nil
		}

		e.logger.Warn("vendor output failed strict decode",
			zap.Int("attempt", i+1),
			zap.String("tier", string(tier)),
			zap.String("model", req.Model),
		)
	}

	// All tiers exhausted: materialize from the last raw text.
	answer := DecodeLenient(lastText)
	e.logger.Warn("all enforcement tiers failed, using fallback answer",
		zap.String("model", req.Model),
		zap.Duration("duration", time.Since(startTime)),
	)
	return answer, usage, nil
}

// EnforceStream issues the vendor call in streaming mode. Escalation cannot
// apply once deltas have been forwarded, so the strict tier is used
// directly; malformed output resolves through the aggregator's fallback.
func (e *enforcer) EnforceStream(ctx context.Context, req *domain.Request) (<-chan Chunk, error) {
	system := SystemFor(TierStrict, req.SystemPrompt)
	jsonMode := e.jsonModels[req.Model]

	out, err := e.client.stream(ctx, e.withDefaults(req), system, jsonMode)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *enforcer) HealthCheck(ctx context.Context) error {
	return e.client.healthCheck(ctx)
}

// withDefaults fills the completion cap when the request sets none. The
// original request is never mutated.
func (e *enforcer) withDefaults(req *domain.Request) *domain.Request {
	if req.MaxTokens > 0 {
		return req
	}
	r := *req
	r.MaxTokens = e.maxTokens
	return &r
}

// callWithRetry executes one vendor call with exponential backoff on
// retryable failures. Non-retryable errors abort immediately.
func (e *enforcer) callWithRetry(ctx context.Context, req *domain.Request, system string, jsonMode bool) (*completion, error) {
	var comp *completion
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			e.logger.Debug("retrying vendor request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, domain.WrapError("vendor_call", domain.KindTransport, ctx.Err(), false)
			case <-time.After(backoff):
			}
		}

		comp, lastErr = e.client.complete(ctx, req, system, jsonMode)
		if lastErr == nil {
			return comp, nil
		}

		if !domain.IsRetryable(lastErr) {
			break
		}
	}

	return nil, lastErr
}

// wrapStatusError maps a vendor HTTP status to the error taxonomy.
func wrapStatusError(op string, status int, err error) error {
	switch {
	case status == 401 || status == 403:
		return domain.WrapError(op, domain.KindUpstream,
			fmt.Errorf("%w: authentication rejected (status %d): %v", domain.ErrUpstream, status, err), false)
	case status == 429:
		return domain.WrapError(op, domain.KindUpstream,
			fmt.Errorf("%w: %v", domain.ErrRateLimited, err), true)
	case status >= 500:
		return domain.WrapError(op, domain.KindUpstream,
			fmt.Errorf("%w: status %d: %v", domain.ErrUpstream, status, err), true)
	default:
		return domain.WrapError(op, domain.KindUpstream,
			fmt.Errorf("%w: status %d: %v", domain.ErrUpstream, status, err), false)
	}
}

// wrapTransportError marks a network-level failure.
func wrapTransportError(op string, err error) error {
	return domain.WrapError(op, domain.KindTransport,
		fmt.Errorf("%w: %v", domain.ErrTransport, err), true)
}
