package config

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/ars/internal/policy"
	"github.com/cartridge/ars/internal/space"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, StoreMemory, cfg.Store)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }},
		{"unknown store", func(c *Config) { c.Store = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Store = StoreSQLite; c.SQLitePath = "" }},
		{"zero timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"zero shutdown", func(c *Config) { c.ShutdownTimeout = 0 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_EnvAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ars.yaml")
	require.NoError(t, os.WriteFile(file, []byte("store: sqlite\nsqlite_path: /tmp/x.db\nread_timeout: 5s\n"), 0o644))

	t.Setenv("ARS_HTTP_ADDR", ":9999")
	t.Setenv("ARS_LOG_LEVEL", "debug")

	v := viper.New()
	v.SetEnvPrefix("ARS")
	v.AutomaticEnv()
	v.SetConfigFile(file)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	v := viper.New()
	v.Set("store", "redis")
	_, err := Load(v)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"service":"ars"`)
}

const pendulumYAML = `
name: pendulum
seed: 3
params:
  observation_space:
    type: box
    low: [-.inf]
    high: [.inf]
    shape: [3]
  action_space:
    type: box
    low: [-2]
    high: [2]
    shape: [1]
  net_arch: [8, 8]
  activation_fn: tanh
`

func TestLoadPolicyFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pendulum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(pendulumYAML), 0o644))

	pf, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pendulum", pf.Name)
	assert.Equal(t, []int{8, 8}, pf.Params.NetArch)
	assert.True(t, math.IsInf(pf.Params.ObservationSpace.Low[0], -1))

	p, err := pf.Build()
	require.NoError(t, err)
	assert.Equal(t, policy.ShapeMLP, p.Shape())
	assert.True(t, p.SquashOutput())
	// 3*8+8 + 8*8+8 + 8*1+1
	assert.Equal(t, 113, p.NumParameters())
}

func TestLoadPolicyFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cartpole.json")
	doc := `{"params": {
		"observation_space": {"type": "box", "low": ["-inf"], "high": ["inf"], "shape": [4]},
		"action_space": {"type": "discrete", "n": 2},
		"shape": "linear"
	}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	pf, err := LoadPolicyFile(path)
	require.NoError(t, err)
	p, err := pf.Build()
	require.NoError(t, err)
	assert.Equal(t, policy.ShapeLinear, p.Shape())
	assert.False(t, p.WithBias())
	assert.Equal(t, 8, p.NumParameters())
}

func TestWritePolicyFile_RoundTrip(t *testing.T) {
	obs, err := space.NewBox([]float64{-1}, []float64{1}, 2)
	require.NoError(t, err)
	p, err := policy.NewLinear(obs, space.Discrete{N: 3}, true, false, policy.WithSeed(9))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, WritePolicyFile(path, "saved", p))

	pf, err := LoadPolicyFile(path)
	require.NoError(t, err)
	restored, err := pf.Build()
	require.NoError(t, err)
	assert.Equal(t, p.Parameters(), restored.Parameters())
	assert.Equal(t, p.ConstructorParams(), restored.ConstructorParams())
}

func TestLoadPolicyFile_Errors(t *testing.T) {
	_, err := LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("params: [1, 2"), 0o644))
	_, err = LoadPolicyFile(path)
	assert.Error(t, err)
}
