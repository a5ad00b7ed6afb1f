package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/ars/internal/metrics"
	"github.com/cartridge/ars/internal/policy"
	"github.com/cartridge/ars/internal/storage"
)

// CreatePolicyInput captures the payload required to create a policy.
type CreatePolicyInput struct {
	ID     string        `json:"id,omitempty"`
	Name   string        `json:"name"`
	Params policy.Params `json:"params"`
	// Seed makes initial weights reproducible; zero seeds from the clock.
	Seed int64 `json:"seed,omitempty"`
	// Weights optionally replaces the initial weights.
	Weights  []float64         `json:"weights,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PolicyInfo describes a stored policy without its weights.
type PolicyInfo struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Params        policy.Params     `json:"params"`
	NumParameters int               `json:"num_parameters"`
	Version       uint64            `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PredictInput is a batch of observations, one per row.
type PredictInput struct {
	Observations [][]float64 `json:"observations"`
	// Deterministic is accepted for compatibility and has no effect.
	Deterministic bool `json:"deterministic"`
}

// PredictResult holds continuous actions for Box action spaces and
// indices for Discrete ones.
type PredictResult struct {
	PolicyID        string      `json:"policy_id"`
	Version         uint64      `json:"version"`
	Actions         [][]float64 `json:"actions,omitempty"`
	DiscreteActions []int       `json:"discrete_actions,omitempty"`
}

type livePolicy struct {
	policy  *policy.ARSPolicy
	version uint64
}

// PolicyService keeps policies in storage and serves predictions from
// restored instances.
type PolicyService struct {
	store   storage.Backend
	metrics *metrics.Collector
	logger  *zerolog.Logger

	mu   sync.RWMutex
	live map[string]livePolicy

	// serialises weight updates and deletes so cache and store agree
	writeMu sync.Mutex
}

// NewPolicyService constructs a PolicyService instance.
func NewPolicyService(store storage.Backend, collector *metrics.Collector, logger *zerolog.Logger) *PolicyService {
	return &PolicyService{
		store:   store,
		metrics: collector,
		logger:  logger,
		live:    make(map[string]livePolicy),
	}
}

// Create builds a policy from its constructor params and stores it.
func (s *PolicyService) Create(ctx context.Context, input CreatePolicyInput) (PolicyInfo, error) {
	var opts []policy.Option
	if input.Seed != 0 {
		opts = append(opts, policy.WithSeed(input.Seed))
	}
	p, err := policy.FromParams(input.Params, opts...)
	if err != nil {
		return PolicyInfo{}, fmt.Errorf("build policy: %w", err)
	}
	if input.Weights != nil {
		if err := p.SetParameters(input.Weights); err != nil {
			return PolicyInfo{}, err
		}
	}

	checkpoint := storage.NewCheckpoint(input.Name, p)
	checkpoint.ID = input.ID
	checkpoint.Metadata = input.Metadata
	if err := s.store.Create(ctx, checkpoint); err != nil {
		return PolicyInfo{}, err
	}

	s.mu.Lock()
	s.live[checkpoint.ID] = livePolicy{policy: p, version: checkpoint.Version}
	s.mu.Unlock()

	s.metrics.PolicyCreated(checkpoint.ID, string(p.Shape()), p.NumParameters())
	s.logger.Info().
		Str("policy_id", checkpoint.ID).
		Str("name", checkpoint.Name).
		Stringer("network", p).
		Msg("policy created")

	return info(checkpoint), nil
}

// Get returns a stored policy's description.
func (s *PolicyService) Get(ctx context.Context, id string) (PolicyInfo, error) {
	checkpoint, err := s.store.Get(ctx, id)
	if err != nil {
		return PolicyInfo{}, err
	}
	return info(checkpoint), nil
}

// Weights returns a stored policy's flat weight vector.
func (s *PolicyService) Weights(ctx context.Context, id string) ([]float64, uint64, error) {
	checkpoint, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return checkpoint.Weights, checkpoint.Version, nil
}

// List returns all stored policies.
func (s *PolicyService) List(ctx context.Context) ([]PolicyInfo, error) {
	checkpoints, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PolicyInfo, 0, len(checkpoints))
	for _, c := range checkpoints {
		out = append(out, info(c))
	}
	return out, nil
}

// Delete removes a policy from storage and the live cache.
func (s *PolicyService) Delete(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	delete(s.live, id)

	s.logger.Info().Str("policy_id", id).Msg("policy deleted")
	return nil
}

// Predict runs a batch of observations through the policy.
func (s *PolicyService) Predict(ctx context.Context, id string, input PredictInput) (PredictResult, error) {
	start := time.Now()
	result, err := s.predict(ctx, id, input)
	s.metrics.Prediction(id, len(input.Observations), time.Since(start), err)
	return result, err
}

func (s *PolicyService) predict(ctx context.Context, id string, input PredictInput) (PredictResult, error) {
	lp, err := s.load(ctx, id)
	if err != nil {
		return PredictResult{}, err
	}
	batch, err := policy.NewBatch(input.Observations)
	if err != nil {
		return PredictResult{}, err
	}
	actions, err := lp.policy.Predict(batch, input.Deterministic)
	if err != nil {
		return PredictResult{}, err
	}
	return PredictResult{
		PolicyID:        id,
		Version:         lp.version,
		Actions:         actions.Rows(),
		DiscreteActions: actions.Discrete,
	}, nil
}

// UpdateWeights installs a new weight vector, as produced by an ARS
// update step. In-flight predictions keep using the previous instance.
func (s *PolicyService) UpdateWeights(ctx context.Context, id string, weights []float64) (PolicyInfo, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	lp, err := s.load(ctx, id)
	if err != nil {
		return PolicyInfo{}, err
	}
	next, err := lp.policy.Clone()
	if err != nil {
		return PolicyInfo{}, err
	}
	if err := next.SetParameters(weights); err != nil {
		return PolicyInfo{}, err
	}

	checkpoint, err := s.store.UpdateWeights(ctx, id, weights)
	if err != nil {
		return PolicyInfo{}, err
	}

	s.mu.Lock()
	s.live[id] = livePolicy{policy: next, version: checkpoint.Version}
	s.mu.Unlock()

	s.metrics.WeightsUpdated(id, checkpoint.Version)
	return info(checkpoint), nil
}

func (s *PolicyService) load(ctx context.Context, id string) (livePolicy, error) {
	s.mu.RLock()
	lp, ok := s.live[id]
	s.mu.RUnlock()
	if ok {
		return lp, nil
	}

	checkpoint, err := s.store.Get(ctx, id)
	if err != nil {
		return livePolicy{}, err
	}
	p, err := checkpoint.Restore()
	if err != nil {
		return livePolicy{}, fmt.Errorf("restore policy %s: %w", id, err)
	}
	lp = livePolicy{policy: p, version: checkpoint.Version}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.live[id]; ok && existing.version >= lp.version {
		return existing, nil
	}
	// Delete holds mu across its store call, so a checkpoint still
	// present here cannot be evicted before it is cached.
	if _, err := s.store.Get(ctx, id); err != nil {
		return livePolicy{}, err
	}
	s.live[id] = lp

	s.logger.Debug().Str("policy_id", id).Uint64("version", lp.version).Msg("policy restored from storage")
	return lp, nil
}

func info(c *storage.Checkpoint) PolicyInfo {
	return PolicyInfo{
		ID:            c.ID,
		Name:          c.Name,
		Params:        c.Params,
		NumParameters: len(c.Weights),
		Version:       c.Version,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		Metadata:      c.Metadata,
	}
}
