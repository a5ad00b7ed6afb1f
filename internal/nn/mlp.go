package nn

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidArchitecture indicates non-positive layer dimensions.
var ErrInvalidArchitecture = errors.New("invalid network architecture")

// CreateMLP builds Linear(in, h0), act, Linear(h0, h1), act, ...,
// Linear(hk, out), followed by a tanh when squash is set. An empty
// netArch gives a single Linear(in, out). Every linear layer has a bias.
func CreateMLP(inDim, outDim int, netArch []int, activation string, squash bool, rng *rand.Rand) (*Sequential, error) {
	if inDim <= 0 || outDim <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d -> %d", ErrInvalidArchitecture, inDim, outDim)
	}
	for i, width := range netArch {
		if width <= 0 {
			return nil, fmt.Errorf("%w: hidden layer %d width must be positive, got %d", ErrInvalidArchitecture, i, width)
		}
	}

	act, err := NewActivation(activation)
	if err != nil {
		return nil, err
	}

	seq := NewSequential()
	last := inDim
	for _, width := range netArch {
		seq.Add(NewLinear(last, width, true, rng))
		seq.Add(act)
		last = width
	}
	seq.Add(NewLinear(last, outDim, true, rng))

	if squash {
		tanh, err := NewActivation(ActivationTanh)
		if err != nil {
			return nil, err
		}
		seq.Add(tanh)
	}
	return seq, nil
}
