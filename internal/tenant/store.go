// Package tenant resolves per-workspace validation configuration:
// scoring weights, risk thresholds and custom detection patterns.
package tenant

import (
	"context"

	"github.com/llm-gateway/internal/domain"
)

// Store reads tenant-scoped configuration. A nil return with a nil error
// means no override exists and defaults apply. Lookups are read-through;
// stale reads are acceptable since this configuration changes rarely.
type Store interface {
	// Weights returns the workspace's scoring weight override, if any.
	Weights(ctx context.Context, workspaceID string) (*domain.ScoringWeights, error)

	// Thresholds returns the workspace's risk level thresholds, if any.
	Thresholds(ctx context.Context, workspaceID string) (*domain.RiskLevelThresholds, error)

	// CustomPatterns returns the workspace's custom detection regexes.
	CustomPatterns(ctx context.Context, workspaceID string) ([]string, error)
}

// MemoryStore is an in-memory Store for tests and DB-less deployments.
type MemoryStore struct {
	WeightsByWorkspace    map[string]domain.ScoringWeights
	ThresholdsByWorkspace map[string]domain.RiskLevelThresholds
	PatternsByWorkspace   map[string][]string
}

// NewMemoryStore creates an empty in-memory store (all lookups miss).
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		WeightsByWorkspace:    map[string]domain.ScoringWeights{},
		ThresholdsByWorkspace: map[string]domain.RiskLevelThresholds{},
		PatternsByWorkspace:   map[string][]string{},
	}
}

func (s *MemoryStore) Weights(_ context.Context, workspaceID string) (*domain.ScoringWeights, error) {
	if w, ok := s.WeightsByWorkspace[workspaceID]; ok {
		return &w, nil
	}
	return nil, nil
}

func (s *MemoryStore) Thresholds(_ context.Context, workspaceID string) (*domain.RiskLevelThresholds, error) {
	if t, ok := s.ThresholdsByWorkspace[workspaceID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *MemoryStore) CustomPatterns(_ context.Context, workspaceID string) ([]string, error) {
	return s.PatternsByWorkspace[workspaceID], nil
}
