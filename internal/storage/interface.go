// Package storage persists policy checkpoints: constructor parameters
// plus the flat weight vector.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cartridge/ars/internal/policy"
)

var (
	// ErrNotFound indicates the requested checkpoint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a checkpoint with the same ID already exists.
	ErrConflict = errors.New("conflict")
)

// Checkpoint is a restorable snapshot of a policy
type Checkpoint struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Params    policy.Params     `json:"params"`
	Weights   []float64         `json:"weights"`
	Version   uint64            `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Restore builds the policy described by the checkpoint and loads its
// weights.
func (c *Checkpoint) Restore() (*policy.ARSPolicy, error) {
	p, err := policy.FromParams(c.Params)
	if err != nil {
		return nil, err
	}
	if err := p.SetParameters(c.Weights); err != nil {
		return nil, err
	}
	return p, nil
}

// NewCheckpoint snapshots a policy.
func NewCheckpoint(name string, p *policy.ARSPolicy) *Checkpoint {
	return &Checkpoint{
		Name:    name,
		Params:  p.ConstructorParams(),
		Weights: p.Parameters(),
	}
}

// Backend defines the interface for checkpoint storage implementations
type Backend interface {
	// Create stores a new checkpoint, assigning an ID when empty
	Create(ctx context.Context, checkpoint *Checkpoint) error

	// Get a checkpoint by ID
	Get(ctx context.Context, id string) (*Checkpoint, error)

	// List checkpoints ordered by creation time
	List(ctx context.Context) ([]*Checkpoint, error)

	// UpdateWeights replaces the weights and bumps the version
	UpdateWeights(ctx context.Context, id string, weights []float64) (*Checkpoint, error)

	// Delete a checkpoint
	Delete(ctx context.Context, id string) error

	// Close the backend and cleanup resources
	Close() error
}
