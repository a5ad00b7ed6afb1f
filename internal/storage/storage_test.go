package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/ars/internal/policy"
	"github.com/cartridge/ars/internal/space"
)

func testPolicy(t *testing.T, netArch []int) *policy.ARSPolicy {
	t.Helper()
	obs, err := space.NewBox([]float64{-1}, []float64{1}, 3)
	require.NoError(t, err)
	p, err := policy.New(obs, space.Discrete{N: 2}, policy.Config{NetArch: netArch}, policy.WithSeed(1))
	require.NoError(t, err)
	return p
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := NewSQLiteBackend(context.Background(), filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)

	all := map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
	t.Cleanup(func() {
		for _, b := range all {
			_ = b.Close()
		}
	})
	return all
}

func TestBackend_CreateAndGet(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := testPolicy(t, []int{4})

			checkpoint := NewCheckpoint("cartpole-mlp", p)
			checkpoint.Metadata = map[string]string{"env": "cartpole"}
			require.NoError(t, backend.Create(ctx, checkpoint))
			assert.NotEmpty(t, checkpoint.ID)
			assert.Equal(t, uint64(1), checkpoint.Version)
			assert.False(t, checkpoint.CreatedAt.IsZero())

			got, err := backend.Get(ctx, checkpoint.ID)
			require.NoError(t, err)
			assert.Equal(t, "cartpole-mlp", got.Name)
			assert.Equal(t, p.Parameters(), got.Weights)
			assert.Equal(t, []int{4}, got.Params.NetArch)
			assert.Equal(t, "cartpole", got.Metadata["env"])
			assert.True(t, checkpoint.CreatedAt.Equal(got.CreatedAt))

			restored, err := got.Restore()
			require.NoError(t, err)
			assert.Equal(t, p.Parameters(), restored.Parameters())
			assert.True(t, space.Equal(p.ActionSpace(), restored.ActionSpace()))
		})
	}
}

func TestBackend_PreservesEmptyNetArch(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			checkpoint := NewCheckpoint("no-hidden", testPolicy(t, []int{}))
			require.NoError(t, backend.Create(ctx, checkpoint))

			got, err := backend.Get(ctx, checkpoint.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Params.NetArch)
			assert.Empty(t, got.Params.NetArch)

			restored, err := got.Restore()
			require.NoError(t, err)
			assert.Empty(t, restored.NetArch())
		})
	}
}

func TestBackend_Conflict(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := testPolicy(t, nil)

			first := NewCheckpoint("a", p)
			first.ID = "fixed-id"
			require.NoError(t, backend.Create(ctx, first))

			second := NewCheckpoint("b", p)
			second.ID = "fixed-id"
			assert.ErrorIs(t, backend.Create(ctx, second), ErrConflict)
		})
	}
}

func TestBackend_NotFound(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := backend.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = backend.UpdateWeights(ctx, "missing", []float64{1})
			assert.ErrorIs(t, err, ErrNotFound)

			assert.ErrorIs(t, backend.Delete(ctx, "missing"), ErrNotFound)
		})
	}
}

func TestBackend_UpdateWeights(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := testPolicy(t, []int{2})
			checkpoint := NewCheckpoint("w", p)
			require.NoError(t, backend.Create(ctx, checkpoint))

			weights := make([]float64, p.NumParameters())
			for i := range weights {
				weights[i] = float64(i) / 10
			}
			updated, err := backend.UpdateWeights(ctx, checkpoint.ID, weights)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), updated.Version)
			assert.Equal(t, weights, updated.Weights)

			got, err := backend.Get(ctx, checkpoint.ID)
			require.NoError(t, err)
			assert.Equal(t, weights, got.Weights)
		})
	}
}

func TestBackend_ListAndDelete(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := testPolicy(t, []int{2})
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			for i, id := range []string{"c", "a", "b"} {
				c := NewCheckpoint(id, p)
				c.ID = id
				c.CreatedAt = base.Add(time.Duration(i) * time.Minute)
				require.NoError(t, backend.Create(ctx, c))
			}

			list, err := backend.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "c", list[0].ID)
			assert.Equal(t, "a", list[1].ID)
			assert.Equal(t, "b", list[2].ID)

			require.NoError(t, backend.Delete(ctx, "a"))
			list, err = backend.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)
		})
	}
}

func TestMemoryBackend_ReturnsCopies(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()
	ctx := context.Background()

	checkpoint := NewCheckpoint("copy", testPolicy(t, []int{2}))
	require.NoError(t, backend.Create(ctx, checkpoint))

	got, err := backend.Get(ctx, checkpoint.ID)
	require.NoError(t, err)
	got.Weights[0] = 42

	again, err := backend.Get(ctx, checkpoint.ID)
	require.NoError(t, err)
	assert.NotEqual(t, 42.0, again.Weights[0])
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	backend, err := NewSQLiteBackend(ctx, path)
	require.NoError(t, err)
	checkpoint := NewCheckpoint("persisted", testPolicy(t, nil))
	require.NoError(t, backend.Create(ctx, checkpoint))
	require.NoError(t, backend.Close())

	_, err = backend.Get(ctx, checkpoint.ID)
	assert.Error(t, err)

	reopened, err := NewSQLiteBackend(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, checkpoint.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{64, 64}, got.Params.NetArch)
	assert.Equal(t, checkpoint.Weights, got.Weights)
}
