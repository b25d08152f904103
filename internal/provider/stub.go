package provider

import (
	"context"

	"github.com/llm-gateway/internal/domain"
	"go.uber.org/zap"
)

// Stub is a canned enforcer used in mock mode and by tests. It echoes a
// fixed structured answer without any network call.
type Stub struct {
	vendor domain.Vendor
	logger *zap.Logger

	// Answer overrides the canned answer when set.
	Answer *domain.StructuredAnswer

	// Deltas overrides the canned stream when set.
	Deltas []string

	// Err makes every call fail when set.
	Err error
}

// NewStub creates a stub enforcer for a vendor.
func NewStub(vendor domain.Vendor, logger *zap.Logger) *Stub {
	return &Stub{
		vendor: vendor,
		logger: logger.Named("stub_enforcer"),
	}
}

func (s *Stub) Vendor() domain.Vendor {
	return s.vendor
}

func (s *Stub) Enforce(ctx context.Context, req *domain.Request) (*domain.StructuredAnswer, domain.Usage, error) {
	if s.Err != nil {
		return nil, domain.Usage{}, s.Err
	}

	s.logger.Debug("stub enforcement", zap.String("model", req.Model))

	if s.Answer != nil {
		a := *s.Answer
		return &a, domain.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}, nil
	}

	return &domain.StructuredAnswer{
		Answer:       "This is a mock response. Unset MOCK_MODE to reach real vendors.",
		Confidence:   75,
		Evidence:     []string{"mock mode is enabled"},
		Alternatives: []string{},
	}, domain.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}, nil
}

func (s *Stub) EnforceStream(ctx context.Context, req *domain.Request) (<-chan Chunk, error) {
	if s.Err != nil {
		return nil, s.Err
	}

	deltas := s.Deltas
	if deltas == nil {
		deltas = []string{`{"answer":"mock stream",`, `"confidence":75,`, `"evidence":[],"alternatives":[]}`}
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for _, d := range deltas {
			select {
			case out <- Chunk{Text: d}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Stub) HealthCheck(ctx context.Context) error {
	return nil
}
