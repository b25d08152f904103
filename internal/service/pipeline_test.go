package service

import (
	"context"
	"testing"
	"time"

	"github.com/llm-gateway/internal/config"
	"github.com/llm-gateway/internal/domain"
	"github.com/llm-gateway/internal/provider"
	"github.com/llm-gateway/internal/risk"
	"github.com/llm-gateway/internal/tenant"
	"github.com/llm-gateway/internal/trace"
	"github.com/llm-gateway/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureSink records saved traces on a channel for synchronization.
type captureSink struct {
	saved      chan *trace.Record
	violations bool
}

func newCaptureSink() *captureSink {
	return &captureSink{saved: make(chan *trace.Record, 8)}
}

func (s *captureSink) Save(_ context.Context, rec *trace.Record) error {
	s.saved <- rec
	return nil
}

func (s *captureSink) HasRecentViolations(context.Context, string, time.Duration) (bool, error) {
	return s.violations, nil
}

func (s *captureSink) wait(t *testing.T) *trace.Record {
	t.Helper()
	select {
	case rec := <-s.saved:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("trace was not saved")
		return nil
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Providers: config.ProviderConfig{
			MockMode:   true,
			MaxRetries: 0,
			MaxTokens:  1024,
		},
		Validation: config.ValidationConfig{
			HistoryWindow: 30 * 24 * time.Hour,
		},
	}
}

func testPipeline(sink trace.Sink) *Pipeline {
	logger := zap.NewNop()
	engine := validation.NewEngine([]validation.Rule{
		validation.NewConfidenceRule(),
		validation.NewPIIRule(logger),
	}, logger)
	store := tenant.NewMemoryStore()
	scorer := risk.NewScorer(store, logger)
	return NewPipeline(testConfig(), engine, scorer, store, sink, logger)
}

func TestComplete(t *testing.T) {
	sink := newCaptureSink()
	p := testPipeline(sink)

	req := &domain.Request{
		Vendor:      domain.VendorOpenAI,
		Model:       "gpt-4o",
		Prompt:      "hello",
		WorkspaceID: "ws1",
	}

	env, err := p.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, env.RequestID)
	assert.NotEmpty(t, env.TraceID)
	assert.Equal(t, domain.VendorOpenAI, env.Vendor)
	require.NotNil(t, env.Answer)
	assert.Equal(t, float64(75), env.Answer.Confidence)
	require.NotNil(t, env.Validation)
	assert.Len(t, env.Validation.Results, 2)
	require.NotNil(t, env.Risk)
	assert.NotEmpty(t, env.Risk.Explanation)
	assert.Equal(t, 30, env.Usage.TotalTokens)

	rec := sink.wait(t)
	assert.Equal(t, env.TraceID, rec.TraceID)
	assert.Equal(t, "ws1", rec.WorkspaceID)
	assert.Equal(t, env.Validation.Level, rec.ValidationLevel)
}

func TestComplete_HistoricalViolationsRaiseRisk(t *testing.T) {
	cleanSink := newCaptureSink()
	clean := testPipeline(cleanSink)

	dirtySink := newCaptureSink()
	dirtySink.violations = true
	dirty := testPipeline(dirtySink)

	req := &domain.Request{
		Vendor:      domain.VendorOpenAI,
		Model:       "gpt-4o",
		Prompt:      "hello",
		WorkspaceID: "ws1",
	}

	cleanEnv, err := clean.Complete(context.Background(), req)
	require.NoError(t, err)
	dirtyEnv, err := dirty.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Greater(t, dirtyEnv.Risk.Score, cleanEnv.Risk.Score,
		"prior violations must raise the risk score")

	cleanSink.wait(t)
	dirtySink.wait(t)
}

func TestComplete_EnforcerErrorPropagates(t *testing.T) {
	sink := newCaptureSink()
	p := testPipeline(sink)
	p.SetEnforcerFactory(func(vendor domain.Vendor) (provider.Enforcer, error) {
		return nil, domain.WrapError("resolve_provider", domain.KindCredential,
			domain.ErrMissingCredential, false)
	})

	_, err := p.Complete(context.Background(), &domain.Request{
		Vendor: domain.VendorOpenAI,
		Model:  "gpt-4o",
		Prompt: "hello",
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindCredential, domain.KindOf(err))

	select {
	case <-sink.saved:
		t.Fatal("failed request must not be traced")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCompleteStream(t *testing.T) {
	sink := newCaptureSink()
	p := testPipeline(sink)

	var deltas []string
	env, err := p.CompleteStream(context.Background(), &domain.Request{
		Vendor: domain.VendorOpenAI,
		Model:  "gpt-4o",
		Prompt: "hello",
		Stream: true,
	}, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, deltas, 3, "stub stream emits three deltas")
	require.NotNil(t, env.Answer)
	assert.Equal(t, "mock stream", env.Answer.Answer)
	require.NotNil(t, env.Validation)
	require.NotNil(t, env.Risk)

	rec := sink.wait(t)
	assert.Equal(t, env.TraceID, rec.TraceID)
}

func TestCompleteStream_CancelledSkipsTrace(t *testing.T) {
	sink := newCaptureSink()
	p := testPipeline(sink)

	env, err := p.CompleteStream(context.Background(), &domain.Request{
		Vendor: domain.VendorOpenAI,
		Model:  "gpt-4o",
		Prompt: "hello",
		Stream: true,
	}, func(string) error {
		return context.Canceled
	})
	require.NoError(t, err)
	require.NotNil(t, env.Answer, "cancelled streams still produce an envelope")

	select {
	case <-sink.saved:
		t.Fatal("cancelled stream must not be traced")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHealth_MockMode(t *testing.T) {
	p := testPipeline(newCaptureSink())

	health := p.Health(context.Background())
	require.Len(t, health, 3, "mock mode probes every vendor")
	for vendor, err := range health {
		assert.NoError(t, err, "vendor %s", vendor)
	}
}

func TestPipeline_EnforcerIsCached(t *testing.T) {
	p := testPipeline(newCaptureSink())

	calls := 0
	p.SetEnforcerFactory(func(vendor domain.Vendor) (provider.Enforcer, error) {
		calls++
		return provider.NewStub(vendor, zap.NewNop()), nil
	})

	req := &domain.Request{Vendor: domain.VendorGemini, Model: "gemini-2.0-flash", Prompt: "hi"}
	for i := 0; i < 3; i++ {
		_, err := p.Complete(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls, "enforcer should be constructed once per vendor")
}
