package policy

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/cartridge/ars/internal/nn"
	"github.com/cartridge/ars/internal/space"
)

var (
	// ErrUnsupportedActionSpace indicates an action space that is
	// neither a Box nor Discrete.
	ErrUnsupportedActionSpace = errors.New("ars policy not implemented for action space")
	// ErrInvalidObservation indicates an observation batch that does not
	// match the observation space.
	ErrInvalidObservation = errors.New("invalid observation")
	// ErrUnknownShape indicates a network shape other than mlp or linear.
	ErrUnknownShape = errors.New("unknown network shape")
	// ErrParameterCount indicates a weight vector of the wrong length.
	ErrParameterCount = errors.New("parameter count mismatch")
)

// NetworkShape selects how the action network is built.
type NetworkShape string

const (
	ShapeMLP    NetworkShape = "mlp"
	ShapeLinear NetworkShape = "linear"
)

// DefaultNetArch is used when Config.NetArch is nil.
var DefaultNetArch = []int{64, 64}

// Config configures an MLP policy.
type Config struct {
	// NetArch holds the hidden layer widths. nil means DefaultNetArch;
	// an empty slice means no hidden layers.
	NetArch []int
	// Activation names a registered nn activation.
	Activation string
	// SquashOutput only matters for Box action spaces.
	SquashOutput bool
}

// DefaultConfig returns a two-layer 64-unit ReLU network with squashed
// output.
func DefaultConfig() Config {
	return Config{
		NetArch:      append([]int(nil), DefaultNetArch...),
		Activation:   nn.ActivationReLU,
		SquashOutput: true,
	}
}

type options struct {
	rng *rand.Rand
}

// Option customises policy construction.
type Option func(*options)

// WithSeed makes weight initialisation deterministic.
func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

// WithRand uses rng for weight initialisation.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// ARSPolicy maps observations to actions through a feature extractor and
// an action network. It is immutable after construction apart from its
// weights.
type ARSPolicy struct {
	observationSpace space.Space
	actionSpace      space.Space

	shape           NetworkShape
	netArch         []int
	activation      string
	squashRequested bool
	withBias        bool

	// squashOutput is the policy-level flag: Box action space and
	// squashing requested.
	squashOutput bool

	featuresExtractor nn.FeatureExtractor
	featuresDim       int
	actionNet         nn.Layer
}

// New builds an MLP policy.
func New(obs, act space.Space, cfg Config, opts ...Option) (*ARSPolicy, error) {
	return build(obs, act, ShapeMLP, cfg, false, opts)
}

// NewLinear builds a policy whose action network is a single affine map,
// optionally followed by tanh for Box action spaces.
func NewLinear(obs, act space.Space, withBias, squashOutput bool, opts ...Option) (*ARSPolicy, error) {
	cfg := DefaultConfig()
	cfg.SquashOutput = squashOutput
	return build(obs, act, ShapeLinear, cfg, withBias, opts)
}

func build(obs, act space.Space, shape NetworkShape, cfg Config, withBias bool, opts []Option) (*ARSPolicy, error) {
	o := buildOptions(opts)

	netArch := DefaultNetArch
	if cfg.NetArch != nil {
		netArch = cfg.NetArch
	}
	netArch = append([]int{}, netArch...)

	activation := cfg.Activation
	if activation == "" {
		activation = nn.ActivationReLU
	}

	extractor, err := nn.NewFlattenExtractor(obs)
	if err != nil {
		return nil, fmt.Errorf("build feature extractor: %w", err)
	}

	p := &ARSPolicy{
		observationSpace:  obs,
		actionSpace:       act,
		shape:             shape,
		netArch:           netArch,
		activation:        activation,
		squashRequested:   cfg.SquashOutput,
		withBias:          withBias,
		featuresExtractor: extractor,
		featuresDim:       extractor.FeaturesDim(),
	}
	_, isBox := act.(space.Box)
	p.squashOutput = isBox && cfg.SquashOutput

	p.actionNet, err = buildActionNet(shape, act, p.featuresDim, netConfig{
		netArch:    netArch,
		activation: activation,
		squash:     cfg.SquashOutput,
		withBias:   withBias,
	}, o.rng)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type netConfig struct {
	netArch    []int
	activation string
	squash     bool
	withBias   bool
}

// buildActionNet is the single construction path for both shapes. The
// MLP continuous branch always ends in tanh; the linear one only when
// squashing is requested.
func buildActionNet(shape NetworkShape, act space.Space, featuresDim int, cfg netConfig, rng *rand.Rand) (nn.Layer, error) {
	var outDim int
	var continuous bool
	switch s := act.(type) {
	case space.Box:
		outDim, continuous = s.Dim(), true
		// Predict indexes the bounds per output column
		if len(s.Low) != outDim || len(s.High) != outDim {
			return nil, fmt.Errorf("%w: box has %d low and %d high bounds for %d elements",
				space.ErrInvalidSpace, len(s.Low), len(s.High), outDim)
		}
	case space.Discrete:
		outDim = s.N
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedActionSpace, kindOf(act))
	}
	if featuresDim <= 0 || outDim <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d -> %d",
			nn.ErrInvalidArchitecture, featuresDim, outDim)
	}

	switch shape {
	case ShapeMLP:
		return nn.CreateMLP(featuresDim, outDim, cfg.netArch, cfg.activation, continuous, rng)

	case ShapeLinear:
		net := nn.NewSequential(nn.NewLinear(featuresDim, outDim, cfg.withBias, rng))
		if continuous && cfg.squash {
			tanh, err := nn.NewActivation(nn.ActivationTanh)
			if err != nil {
				return nil, err
			}
			net.Add(tanh)
		}
		return net, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
}

func kindOf(s space.Space) string {
	if s == nil {
		return "nil"
	}
	return s.Kind().String()
}

// Actions is a batch of actions. Continuous is set for Box action
// spaces, Discrete for Discrete ones.
type Actions struct {
	Continuous *mat.Dense
	Discrete   []int
}

// Len returns the batch size.
func (a Actions) Len() int {
	if a.Continuous != nil {
		r, _ := a.Continuous.Dims()
		return r
	}
	return len(a.Discrete)
}

// Rows returns continuous actions as nested slices.
func (a Actions) Rows() [][]float64 {
	if a.Continuous == nil {
		return nil
	}
	r, _ := a.Continuous.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, a.Continuous)
	}
	return rows
}

// Forward runs the network on a batch of observations, one per row.
// Box action spaces get the raw network output; Discrete ones get the
// arg-max index of each row, first maximum winning.
func (p *ARSPolicy) Forward(obs *mat.Dense) (Actions, error) {
	features, err := p.extractFeatures(obs)
	if err != nil {
		return Actions{}, err
	}

	switch p.actionSpace.(type) {
	case space.Box:
		return Actions{Continuous: p.actionNet.Forward(features)}, nil

	case space.Discrete:
		logits := p.actionNet.Forward(features)
		rows, _ := logits.Dims()
		idx := make([]int, rows)
		for i := range idx {
			idx[i] = floats.MaxIdx(logits.RawRowView(i))
		}
		return Actions{Discrete: idx}, nil

	default:
		return Actions{}, fmt.Errorf("%w: %s", ErrUnsupportedActionSpace, kindOf(p.actionSpace))
	}
}

func (p *ARSPolicy) extractFeatures(obs *mat.Dense) (*mat.Dense, error) {
	if obs == nil || obs.IsEmpty() {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidObservation)
	}
	features, err := p.featuresExtractor.Extract(obs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}
	return features, nil
}

// Predict returns actions ready to send to the environment. The
// deterministic flag is accepted for compatibility with other policy
// kinds and ignored: ARS policies have no stochastic path.
//
// For Box action spaces the output is rescaled from [-1, 1] to the
// space bounds when the policy squashes, and clipped to the bounds
// otherwise. Elements with infinite bounds are left unscaled.
func (p *ARSPolicy) Predict(obs *mat.Dense, deterministic bool) (Actions, error) {
	actions, err := p.Forward(obs)
	if err != nil {
		return Actions{}, err
	}
	box, ok := p.actionSpace.(space.Box)
	if !ok {
		return actions, nil
	}

	out := actions.Continuous
	out.Apply(func(_, j int, v float64) float64 {
		low, high := box.Low[j], box.High[j]
		if p.squashOutput {
			if math.IsInf(low, 0) || math.IsInf(high, 0) {
				return v
			}
			return low + 0.5*(v+1)*(high-low)
		}
		return math.Min(math.Max(v, low), high)
	}, out)
	return actions, nil
}

// NewBatch builds an observation batch from rows of equal length.
func NewBatch(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidObservation)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidObservation, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

func (p *ARSPolicy) ObservationSpace() space.Space { return p.observationSpace }

func (p *ARSPolicy) ActionSpace() space.Space { return p.actionSpace }

func (p *ARSPolicy) Shape() NetworkShape { return p.shape }

// NetArch returns a copy of the hidden layer widths.
func (p *ARSPolicy) NetArch() []int { return append([]int{}, p.netArch...) }

func (p *ARSPolicy) Activation() string { return p.activation }

// SquashOutput reports whether continuous outputs are treated as squashed
// into [-1, 1]. Always false for Discrete action spaces.
func (p *ARSPolicy) SquashOutput() bool { return p.squashOutput }

func (p *ARSPolicy) WithBias() bool { return p.withBias }

func (p *ARSPolicy) FeaturesDim() int { return p.featuresDim }

// InputDim is the number of values per observation row.
func (p *ARSPolicy) InputDim() int { return p.featuresExtractor.InputDim() }

func (p *ARSPolicy) ActionNet() nn.Layer { return p.actionNet }

func (p *ARSPolicy) String() string {
	return fmt.Sprintf("ARSPolicy(shape=%s, features_dim=%d, action_net=%s)", p.shape, p.featuresDim, p.actionNet)
}
