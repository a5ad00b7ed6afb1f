package nn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cartridge/ars/internal/space"
)

var ErrUnsupportedObservationSpace = errors.New("unsupported observation space")

// FeatureExtractor turns raw observation rows into fixed-width features.
type FeatureExtractor interface {
	// InputDim is the number of columns expected per observation row.
	InputDim() int
	// FeaturesDim is the number of columns produced per row.
	FeaturesDim() int
	Extract(obs *mat.Dense) (*mat.Dense, error)
}

// FlattenExtractor passes Box observations through as flat rows and
// one-hot encodes Discrete and MultiDiscrete observations.
type FlattenExtractor struct {
	kind space.Kind
	// nvec holds the category counts for discrete inputs.
	nvec        []int
	inputDim    int
	featuresDim int
}

// NewFlattenExtractor builds the extractor for an observation space.
func NewFlattenExtractor(obs space.Space) (*FlattenExtractor, error) {
	switch s := obs.(type) {
	case space.Box:
		return &FlattenExtractor{kind: space.KindBox, inputDim: s.Dim(), featuresDim: s.Dim()}, nil

	case space.Discrete:
		return &FlattenExtractor{kind: space.KindDiscrete, nvec: []int{s.N}, inputDim: 1, featuresDim: s.N}, nil

	case space.MultiDiscrete:
		total := 0
		for _, n := range s.Nvec {
			total += n
		}
		return &FlattenExtractor{
			kind:        space.KindMultiDiscrete,
			nvec:        append([]int(nil), s.Nvec...),
			inputDim:    len(s.Nvec),
			featuresDim: total,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedObservationSpace, obs)
	}
}

func (f *FlattenExtractor) InputDim() int { return f.inputDim }

func (f *FlattenExtractor) FeaturesDim() int { return f.featuresDim }

func (f *FlattenExtractor) Extract(obs *mat.Dense) (*mat.Dense, error) {
	rows, cols := obs.Dims()
	if cols != f.inputDim {
		return nil, fmt.Errorf("observation has %d columns, want %d", cols, f.inputDim)
	}
	if f.kind == space.KindBox {
		return mat.DenseCopyOf(obs), nil
	}

	out := mat.NewDense(rows, f.featuresDim, nil)
	for i := 0; i < rows; i++ {
		offset := 0
		for j, n := range f.nvec {
			v := obs.At(i, j)
			idx := int(v)
			if v != math.Trunc(v) || idx < 0 || idx >= n {
				return nil, fmt.Errorf("observation[%d][%d]=%g is not a category in [0, %d)", i, j, v, n)
			}
			out.Set(i, offset+idx, 1)
			offset += n
		}
	}
	return out, nil
}
