package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryBackend implements an in-memory checkpoint store
type MemoryBackend struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
	now         func() time.Time
}

// NewMemoryBackend creates a new in-memory storage backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		checkpoints: make(map[string]*Checkpoint),
		now:         time.Now,
	}
}

// Create implements Backend.Create
func (m *MemoryBackend) Create(ctx context.Context, checkpoint *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Generate ID if not provided
	if checkpoint.ID == "" {
		checkpoint.ID = uuid.New().String()
	}
	if _, exists := m.checkpoints[checkpoint.ID]; exists {
		return fmt.Errorf("checkpoint %s: %w", checkpoint.ID, ErrConflict)
	}

	now := m.now()
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = now
	}
	checkpoint.UpdatedAt = now
	if checkpoint.Version == 0 {
		checkpoint.Version = 1
	}

	m.checkpoints[checkpoint.ID] = copyCheckpoint(checkpoint)
	return nil
}

// Get implements Backend.Get
func (m *MemoryBackend) Get(ctx context.Context, id string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.checkpoints[id]
	if !ok {
		return nil, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	return copyCheckpoint(c), nil
}

// List implements Backend.List
func (m *MemoryBackend) List(ctx context.Context) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Checkpoint, 0, len(m.checkpoints))
	for _, c := range m.checkpoints {
		out = append(out, copyCheckpoint(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateWeights implements Backend.UpdateWeights
func (m *MemoryBackend) UpdateWeights(ctx context.Context, id string, weights []float64) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.checkpoints[id]
	if !ok {
		return nil, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	c.Weights = append([]float64(nil), weights...)
	c.Version++
	c.UpdatedAt = m.now()
	return copyCheckpoint(c), nil
}

// Delete implements Backend.Delete
func (m *MemoryBackend) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.checkpoints[id]; !ok {
		return fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	delete(m.checkpoints, id)
	return nil
}

// Close implements Backend.Close
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints = make(map[string]*Checkpoint)
	return nil
}

func copyCheckpoint(c *Checkpoint) *Checkpoint {
	out := *c
	out.Weights = append([]float64(nil), c.Weights...)
	if c.Params.NetArch != nil {
		out.Params.NetArch = append([]int{}, c.Params.NetArch...)
	}
	if c.Params.SquashOutput != nil {
		squash := *c.Params.SquashOutput
		out.Params.SquashOutput = &squash
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
