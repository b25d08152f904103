// Package service orchestrates the completion pipeline: enforce, validate,
// score, persist.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/llm-gateway/internal/config"
	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/internal/provider"
	"github.com/llm-gateway/internal/risk"
	"github.com/llm-gateway/internal/stream"
	"github.com/llm-gateway/internal/tenant"
	"github.com/llm-gateway/internal/trace"
	"github.com/llm-gateway/internal/validation"
	"go.uber.org/zap"
)

// traceSaveTimeout bounds the asynchronous trace write after the response
// has already been delivered.
const traceSaveTimeout = 5 * time.Second

// EnforcerFactory resolves an enforcer for a vendor. Swappable in tests.
type EnforcerFactory func(vendor domain.Vendor) (provider.Enforcer, error)

// Pipeline runs one request end to end. Enforcers are constructed lazily
// per vendor and cached for the process lifetime.
type Pipeline struct {
	cfg        *config.Config
	engine     *validation.Engine
	scorer     *risk.Scorer
	aggregator *stream.Aggregator
	tenants    tenant.Store
	traces     trace.Sink
	logger     *zap.Logger

	newEnforcer EnforcerFactory

	mu        sync.Mutex
	enforcers map[domain.Vendor]provider.Enforcer
}

// NewPipeline wires the pipeline with the default enforcer factory.
func NewPipeline(
	cfg *config.Config,
	engine *validation.Engine,
	scorer *risk.Scorer,
	tenants tenant.Store,
	traces trace.Sink,
	logger *zap.Logger,
) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		engine:     engine,
		scorer:     scorer,
		aggregator: stream.NewAggregator(logger),
		tenants:    tenants,
		traces:     traces,
		logger:     logger.Named("pipeline"),
		enforcers:  make(map[domain.Vendor]provider.Enforcer),
	}
	p.newEnforcer = func(vendor domain.Vendor) (provider.Enforcer, error) {
		return provider.New(vendor, &cfg.Providers, logger)
	}
	return p
}

// SetEnforcerFactory replaces enforcer construction. Testing only.
func (p *Pipeline) SetEnforcerFactory(f EnforcerFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newEnforcer = f
	p.enforcers = make(map[domain.Vendor]provider.Enforcer)
}

// Engine exposes the rule registry for the management surface.
func (p *Pipeline) Engine() *validation.Engine {
	return p.engine
}

// Complete runs the blocking path: enforce the structured answer, validate
// it, score its risk and persist a trace. The trace write happens after
// the envelope is final and never delays or fails the response.
func (p *Pipeline) Complete(ctx context.Context, req *domain.Request) (*domain.CompletionEnvelope, error) {
	started := time.Now()

	enf, err := p.enforcer(req.Vendor)
	if err != nil {
		return nil, err
	}

	answer, usage, err := enf.Enforce(ctx, req)
	if err != nil {
		return nil, err
	}

	env := p.finish(ctx, req, answer, usage, started)
	p.saveTrace(req, env)
	return env, nil
}

// CompleteStream runs the streaming path. Deltas are forwarded through the
// callback as they arrive; the returned envelope carries the final answer
// assembled from the full delta sequence. A cancelled stream still returns
// an envelope for the caller's logs but is not persisted.
func (p *Pipeline) CompleteStream(ctx context.Context, req *domain.Request, forward func(string) error) (*domain.CompletionEnvelope, error) {
	started := time.Now()

	enf, err := p.enforcer(req.Vendor)
	if err != nil {
		return nil, err
	}

	ch, err := enf.EnforceStream(ctx, req)
	if err != nil {
		return nil, err
	}

	res := p.aggregator.Consume(ctx, ch, forward)

	env := p.finish(ctx, req, res.Answer, res.Usage, started)
	if res.Cancelled {
		p.logger.Debug("stream cancelled, skipping trace",
			zap.String("request_id", env.RequestID),
			zap.Int("forwarded", res.Forwarded),
		)
		return env, nil
	}

	p.saveTrace(req, env)
	return env, nil
}

// Health probes every vendor that has a credential configured.
func (p *Pipeline) Health(ctx context.Context) map[domain.Vendor]error {
	out := make(map[domain.Vendor]error)
	for _, vendor := range []domain.Vendor{domain.VendorOpenAI, domain.VendorAnthropic, domain.VendorGemini} {
		if !p.cfg.Providers.MockMode && p.cfg.Providers.KeyFor(vendor) == "" {
			continue
		}
		enf, err := p.enforcer(vendor)
		if err != nil {
			out[vendor] = err
			continue
		}
		out[vendor] = enf.HealthCheck(ctx)
	}
	return out
}

// finish validates and scores an answer and assembles the envelope.
func (p *Pipeline) finish(ctx context.Context, req *domain.Request, answer *domain.StructuredAnswer, usage domain.Usage, started time.Time) *domain.CompletionEnvelope {
	vctx := &validation.Context{
		WorkspaceID: req.WorkspaceID,
		Tenants:     p.tenants,
	}
	vres := p.engine.Validate(ctx, answer, vctx)

	factors := domain.RiskFactors{
		Confidence:              answer.Confidence,
		EvidenceCount:           len(answer.Evidence),
		HasPII:                  hasPIIFinding(&vres),
		HasHistoricalViolations: p.recentViolations(ctx, req.WorkspaceID),
	}
	score := p.scorer.ScoreForWorkspace(ctx, req.WorkspaceID, factors)

	return &domain.CompletionEnvelope{
		RequestID:  uuid.NewString(),
		Vendor:     req.Vendor,
		Model:      req.Model,
		Answer:     answer,
		Validation: &vres,
		Risk:       &score,
		Usage:      usage,
		LatencyMs:  time.Since(started).Milliseconds(),
		TraceID:    uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
	}
}

// hasPIIFinding reports whether the pii rule produced anything above PASS.
func hasPIIFinding(vres *domain.ValidationResult) bool {
	for _, r := range vres.Results {
		if r.Rule == "pii" && r.Level != domain.LevelPass {
			return true
		}
	}
	return false
}

// recentViolations checks the workspace's trace history. Lookup errors
// degrade to false; history is an input signal, not a gate.
func (p *Pipeline) recentViolations(ctx context.Context, workspaceID string) bool {
	if workspaceID == "" {
		return false
	}
	found, err := p.traces.HasRecentViolations(ctx, workspaceID, p.cfg.Validation.HistoryWindow)
	if err != nil {
		p.logger.Warn("violation history lookup failed",
			zap.String("workspace_id", workspaceID),
			zap.Error(err),
		)
		return false
	}
	return found
}

// saveTrace persists the run asynchronously with its own deadline, so a
// slow sink cannot hold up the response path.
func (p *Pipeline) saveTrace(req *domain.Request, env *domain.CompletionEnvelope) {
	rec := &trace.Record{
		TraceID:         env.TraceID,
		RequestID:       env.RequestID,
		WorkspaceID:     req.WorkspaceID,
		Vendor:          env.Vendor,
		Model:           env.Model,
		Prompt:          req.UserText(),
		Answer:          env.Answer.Answer,
		ValidationLevel: env.Validation.Level,
		ValidationScore: env.Validation.Score,
		RiskLevel:       env.Risk.Level,
		RiskScore:       env.Risk.Score,
		LatencyMs:       env.LatencyMs,
		PromptTokens:    env.Usage.PromptTokens,
		TotalTokens:     env.Usage.TotalTokens,
		CreatedAt:       env.CreatedAt,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), traceSaveTimeout)
		defer cancel()

		if err := p.traces.Save(ctx, rec); err != nil {
			p.logger.Warn("trace save failed",
				zap.String("trace_id", rec.TraceID),
				zap.Error(err),
			)
		}
	}()
}

// enforcer returns the cached enforcer for a vendor, constructing it on
// first use.
func (p *Pipeline) enforcer(vendor domain.Vendor) (provider.Enforcer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if enf, ok := p.enforcers[vendor]; ok {
		return enf, nil
	}

	enf, err := p.newEnforcer(vendor)
	if err != nil {
		return nil, err
	}
	p.enforcers[vendor] = enf
	return enf, nil
}
