package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/cartridge/ars/internal/space"
)

func TestGetActivation(t *testing.T) {
	tests := []struct {
		name string
		act  string
		x    float64
		want float64
	}{
		{name: "identity", act: ActivationIdentity, x: -2.5, want: -2.5},
		{name: "relu negative", act: ActivationReLU, x: -1, want: 0},
		{name: "relu positive", act: ActivationReLU, x: 3, want: 3},
		{name: "tanh", act: ActivationTanh, x: 0.5, want: math.Tanh(0.5)},
		{name: "sigmoid", act: ActivationSigmoid, x: 0, want: 0.5},
		{name: "leaky relu", act: ActivationLeakyReLU, x: -2, want: -0.02},
		{name: "elu", act: ActivationELU, x: -1, want: math.Exp(-1) - 1},
		{name: "softplus large", act: ActivationSoftplus, x: 100, want: 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn, err := GetActivation(tc.act)
			if err != nil {
				t.Fatalf("get activation: %v", err)
			}
			if got := fn(tc.x); math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("got=%f want=%f", got, tc.want)
			}
		})
	}
}

func TestGetActivationUnknown(t *testing.T) {
	if _, err := GetActivation("swishy"); !errors.Is(err, ErrActivationNotFound) {
		t.Fatalf("expected ErrActivationNotFound, got %v", err)
	}
}

func TestRegisterActivationDuplicate(t *testing.T) {
	if err := RegisterActivation(ActivationReLU, func(x float64) float64 { return x }); !errors.Is(err, ErrActivationExists) {
		t.Fatalf("expected ErrActivationExists, got %v", err)
	}
}

func TestLinearForward(t *testing.T) {
	l := &Linear{
		In:     2,
		Out:    2,
		Weight: mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
		Bias:   mat.NewVecDense(2, []float64{0.5, -0.5}),
	}
	x := mat.NewDense(2, 2, []float64{1, 1, 0, 2})

	got := l.Forward(x)
	want := mat.NewDense(2, 2, []float64{
		1 + 2 + 0.5, 3 + 4 - 0.5,
		4 + 0.5, 8 - 0.5,
	})
	if !mat.EqualApprox(got, want, 1e-12) {
		t.Fatalf("unexpected output:\n%v\nwant\n%v", mat.Formatted(got), mat.Formatted(want))
	}
}

func TestLinearInitBounds(t *testing.T) {
	l := NewLinear(16, 4, true, rand.New(rand.NewSource(1)))
	bound := 1 / math.Sqrt(16)
	for _, p := range l.Parameters() {
		for _, v := range p {
			if math.Abs(v) > bound {
				t.Fatalf("parameter %f outside ±%f", v, bound)
			}
		}
	}
	if NumParameters(l) != 16*4+4 {
		t.Fatalf("unexpected parameter count %d", NumParameters(l))
	}
}

func TestCreateMLPLayout(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	seq, err := CreateMLP(5, 3, []int{8, 4}, ActivationReLU, true, rng)
	if err != nil {
		t.Fatalf("create mlp: %v", err)
	}
	want := "Sequential(Linear(in=5, out=8, bias=true), relu, Linear(in=8, out=4, bias=true), relu, Linear(in=4, out=3, bias=true), tanh)"
	if seq.String() != want {
		t.Fatalf("layout mismatch:\n got %s\nwant %s", seq.String(), want)
	}
	if n := NumParameters(seq); n != (5*8+8)+(8*4+4)+(4*3+3) {
		t.Fatalf("unexpected parameter count %d", n)
	}

	out := seq.Forward(mat.NewDense(2, 5, nil))
	if r, c := out.Dims(); r != 2 || c != 3 {
		t.Fatalf("unexpected output dims %dx%d", r, c)
	}
}

func TestCreateMLPEmptyArch(t *testing.T) {
	seq, err := CreateMLP(3, 2, []int{}, ActivationTanh, false, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("create mlp: %v", err)
	}
	if len(seq.Layers()) != 1 {
		t.Fatalf("expected a single layer, got %s", seq)
	}
}

func TestCreateMLPErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := CreateMLP(3, 2, []int{4}, "nope", false, rng); !errors.Is(err, ErrActivationNotFound) {
		t.Fatalf("expected ErrActivationNotFound, got %v", err)
	}
	if _, err := CreateMLP(3, 2, []int{0}, ActivationReLU, false, rng); !errors.Is(err, ErrInvalidArchitecture) {
		t.Fatalf("expected ErrInvalidArchitecture for zero-width hidden layer, got %v", err)
	}
}

func TestFlattenExtractorBox(t *testing.T) {
	box, err := space.NewBox([]float64{-1}, []float64{1}, 2, 2)
	if err != nil {
		t.Fatalf("box: %v", err)
	}
	ext, err := NewFlattenExtractor(box)
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	if ext.FeaturesDim() != 4 || ext.InputDim() != 4 {
		t.Fatalf("unexpected dims in=%d features=%d", ext.InputDim(), ext.FeaturesDim())
	}
	if _, err := ext.Extract(mat.NewDense(1, 3, nil)); err == nil {
		t.Fatal("expected column mismatch error")
	}
}

func TestFlattenExtractorOneHot(t *testing.T) {
	ext, err := NewFlattenExtractor(space.MultiDiscrete{Nvec: []int{3, 2}})
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	got, err := ext.Extract(mat.NewDense(2, 2, []float64{2, 0, 0, 1}))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := mat.NewDense(2, 5, []float64{
		0, 0, 1, 1, 0,
		1, 0, 0, 0, 1,
	})
	if !mat.Equal(got, want) {
		t.Fatalf("unexpected one-hot:\n%v", mat.Formatted(got))
	}

	if _, err := ext.Extract(mat.NewDense(1, 2, []float64{3, 0})); err == nil {
		t.Fatal("expected out-of-range category error")
	}
}

func TestFlattenExtractorDict(t *testing.T) {
	d, err := space.NewDict(map[string]space.Space{"a": space.Discrete{N: 2}})
	if err != nil {
		t.Fatalf("dict: %v", err)
	}
	if _, err := NewFlattenExtractor(d); !errors.Is(err, ErrUnsupportedObservationSpace) {
		t.Fatalf("expected ErrUnsupportedObservationSpace, got %v", err)
	}
}

func TestLoadParametersRoundTrip(t *testing.T) {
	seq, err := CreateMLP(2, 2, []int{3}, ActivationReLU, false, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("create mlp: %v", err)
	}
	flat := FlattenParameters(seq)
	for i := range flat {
		flat[i] = float64(i)
	}
	if err := LoadParameters(seq, flat); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := FlattenParameters(seq)
	for i := range got {
		if got[i] != float64(i) {
			t.Fatalf("parameter %d = %f", i, got[i])
		}
	}
	if err := LoadParameters(seq, flat[1:]); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
