// Package nn implements the small feed-forward building blocks used by
// ARS policies on top of gonum matrices. Batches are row-major: one
// sample per row.
package nn

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Layer maps a batch to a batch.
type Layer interface {
	Forward(x *mat.Dense) *mat.Dense

	// Parameters returns the backing slices of the layer's trainable
	// values. Writing to them changes the layer.
	Parameters() [][]float64

	String() string
}

// Linear is an affine map y = x·Wᵀ + b.
type Linear struct {
	In  int
	Out int

	// Weight has Out rows and In columns.
	Weight *mat.Dense
	// Bias is nil when the layer has no bias.
	Bias *mat.VecDense
}

// NewLinear creates a Linear layer with weights (and bias) drawn
// uniformly from ±1/sqrt(in).
func NewLinear(in, out int, bias bool, rng *rand.Rand) *Linear {
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("nn: linear layer dimensions must be positive, got %d -> %d", in, out))
	}
	bound := 1 / math.Sqrt(float64(in))

	w := make([]float64, out*in)
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * bound
	}
	l := &Linear{
		In:     in,
		Out:    out,
		Weight: mat.NewDense(out, in, w),
	}
	if bias {
		b := make([]float64, out)
		for i := range b {
			b[i] = (2*rng.Float64() - 1) * bound
		}
		l.Bias = mat.NewVecDense(out, b)
	}
	return l
}

func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, l.Out, nil)
	out.Mul(x, l.Weight.T())
	if l.Bias != nil {
		for i := 0; i < rows; i++ {
			row := out.RawRowView(i)
			for j := range row {
				row[j] += l.Bias.AtVec(j)
			}
		}
	}
	return out
}

func (l *Linear) Parameters() [][]float64 {
	params := [][]float64{l.Weight.RawMatrix().Data}
	if l.Bias != nil {
		params = append(params, l.Bias.RawVector().Data)
	}
	return params
}

func (l *Linear) String() string {
	return fmt.Sprintf("Linear(in=%d, out=%d, bias=%t)", l.In, l.Out, l.Bias != nil)
}

// Activation applies a registered elementwise function.
type Activation struct {
	Name string
	fn   ActivationFunc
}

// NewActivation looks up name in the activation registry.
func NewActivation(name string) (*Activation, error) {
	fn, err := GetActivation(name)
	if err != nil {
		return nil, err
	}
	return &Activation{Name: name, fn: fn}, nil
}

func (a *Activation) Forward(x *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return a.fn(v) }, x)
	return &out
}

func (a *Activation) Parameters() [][]float64 { return nil }

func (a *Activation) String() string { return a.Name }

// Sequential chains layers in order.
type Sequential struct {
	layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: append([]Layer(nil), layers...)}
}

// Add appends a layer.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
}

func (s *Sequential) Forward(x *mat.Dense) *mat.Dense {
	for _, layer := range s.layers {
		x = layer.Forward(x)
	}
	return x
}

func (s *Sequential) Parameters() [][]float64 {
	var params [][]float64
	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

func (s *Sequential) Layers() []Layer {
	return append([]Layer(nil), s.layers...)
}

func (s *Sequential) String() string {
	parts := make([]string, len(s.layers))
	for i, layer := range s.layers {
		parts[i] = layer.String()
	}
	return "Sequential(" + strings.Join(parts, ", ") + ")"
}
