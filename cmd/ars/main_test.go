package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/ars/internal/policy"
	"github.com/cartridge/ars/internal/space"
)

func TestParseObservations(t *testing.T) {
	rows, err := parseObservations("1, 2 ;3,4;")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, rows)

	_, err = parseObservations("1,x")
	assert.Error(t, err)

	_, err = parseObservations(" ; ")
	assert.ErrorIs(t, err, policy.ErrInvalidObservation)
}

func TestSelectEach_Random(t *testing.T) {
	act, err := space.NewBox([]float64{-1}, []float64{1}, 2)
	require.NoError(t, err)
	baseline, err := policy.NewRandom(act, 4)
	require.NoError(t, err)

	out, err := selectEach(baseline, act, [][]float64{{0}, {1}, {2}})
	require.NoError(t, err)
	require.Len(t, out.Actions, 3)
	for _, a := range out.Actions {
		assert.True(t, act.Contains(a), "%v outside box", a)
	}

	disc := space.Discrete{N: 5}
	baseline, err = policy.NewRandom(disc, 4)
	require.NoError(t, err)
	out, err = selectEach(baseline, disc, [][]float64{{0}, {1}})
	require.NoError(t, err)
	require.Len(t, out.DiscreteActions, 2)
	for _, a := range out.DiscreteActions {
		assert.True(t, disc.Contains(a))
	}
}

func TestWriteSummary(t *testing.T) {
	obs, err := space.NewBox([]float64{-1}, []float64{1}, 3)
	require.NoError(t, err)
	p, err := policy.NewLinear(obs, space.Discrete{N: 2}, true, false, policy.WithSeed(1))
	require.NoError(t, err)
	s := summarize("demo", p)
	assert.Equal(t, 8, s.NumParameters)
	assert.Equal(t, "linear", s.Shape)

	var buf bytes.Buffer
	require.NoError(t, writeSummary(&buf, "json", s))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "discrete", decoded["action_space"])

	buf.Reset()
	require.NoError(t, writeSummary(&buf, "text", s))
	assert.Contains(t, buf.String(), "Linear(in=3, out=2, bias=true)")

	buf.Reset()
	require.NoError(t, writeSummary(&buf, "yaml", s))
	assert.Contains(t, buf.String(), "num_parameters: 8")

	assert.Error(t, writeSummary(&buf, "xml", s))
}

func TestPredictCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cartpole.yaml")
	doc := `
params:
  observation_space: {type: box, low: [-10], high: [10], shape: [2]}
  action_space: {type: discrete, n: 2}
  shape: linear
  with_bias: true
weights: [1, 0, 0, 1, 0, 0]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"predict", "--policy", path, "--obs", "3,1;0,2"})
	require.NoError(t, rootCmd.Execute())

	var result predictOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, []int{0, 1}, result.DiscreteActions)
}
