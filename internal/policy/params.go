package policy

import (
	"fmt"

	"github.com/cartridge/ars/internal/nn"
	"github.com/cartridge/ars/internal/space"
)

// Params is everything needed to rebuild an equivalent policy. Weights
// are not included.
type Params struct {
	ObservationSpace space.Spec   `json:"observation_space" yaml:"observation_space" mapstructure:"observation_space"`
	ActionSpace      space.Spec   `json:"action_space" yaml:"action_space" mapstructure:"action_space"`
	Shape            NetworkShape `json:"shape" yaml:"shape" mapstructure:"shape"`
	NetArch          []int        `json:"net_arch" yaml:"net_arch" mapstructure:"net_arch"`
	ActivationFn     string       `json:"activation_fn" yaml:"activation_fn" mapstructure:"activation_fn"`
	// SquashOutput defaults to true for mlp and false for linear when nil.
	SquashOutput *bool `json:"squash_output,omitempty" yaml:"squash_output,omitempty" mapstructure:"squash_output"`
	WithBias     bool  `json:"with_bias" yaml:"with_bias" mapstructure:"with_bias"`
}

// Squash resolves SquashOutput against the shape's default.
func (p Params) Squash() bool {
	if p.SquashOutput != nil {
		return *p.SquashOutput
	}
	return p.Shape != ShapeLinear
}

// ConstructorParams returns the parameters this policy was built from.
func (p *ARSPolicy) ConstructorParams() Params {
	squash := p.squashRequested
	return Params{
		ObservationSpace: p.observationSpace.Spec(),
		ActionSpace:      p.actionSpace.Spec(),
		Shape:            p.shape,
		NetArch:          p.NetArch(),
		ActivationFn:     p.activation,
		SquashOutput:     &squash,
		WithBias:         p.withBias,
	}
}

// FromParams builds a freshly initialised policy from params.
func FromParams(params Params, opts ...Option) (*ARSPolicy, error) {
	obs, err := space.Parse(params.ObservationSpace)
	if err != nil {
		return nil, fmt.Errorf("observation space: %w", err)
	}
	act, err := space.Parse(params.ActionSpace)
	if err != nil {
		return nil, fmt.Errorf("action space: %w", err)
	}

	switch params.Shape {
	case ShapeMLP, "":
		return New(obs, act, Config{
			NetArch:      params.NetArch,
			Activation:   params.ActivationFn,
			SquashOutput: params.Squash(),
		}, opts...)

	case ShapeLinear:
		return NewLinear(obs, act, params.WithBias, params.Squash(), opts...)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, params.Shape)
	}
}

// NumParameters returns the size of the flat weight vector.
func (p *ARSPolicy) NumParameters() int {
	return nn.NumParameters(p.actionNet)
}

// Parameters returns a copy of the action network's weights as one
// vector: each linear layer's weight matrix row-major, then its bias.
func (p *ARSPolicy) Parameters() []float64 {
	return nn.FlattenParameters(p.actionNet)
}

// SetParameters overwrites the action network's weights.
func (p *ARSPolicy) SetParameters(flat []float64) error {
	if err := nn.LoadParameters(p.actionNet, flat); err != nil {
		return fmt.Errorf("%w: %v", ErrParameterCount, err)
	}
	return nil
}

// Clone returns an independent copy of the policy with the same weights.
func (p *ARSPolicy) Clone() (*ARSPolicy, error) {
	clone, err := FromParams(p.ConstructorParams(), WithSeed(0))
	if err != nil {
		return nil, err
	}
	if err := clone.SetParameters(p.Parameters()); err != nil {
		return nil, err
	}
	return clone, nil
}
