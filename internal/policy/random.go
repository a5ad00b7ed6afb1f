package policy

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/cartridge/ars/internal/space"
)

// RandomPolicy selects uniformly random valid actions. It is the
// baseline ARS runs are compared against.
type RandomPolicy struct {
	rng         *rand.Rand
	actionSpace space.Space
}

// NewRandom creates a new random policy for the given action space. A
// zero seed seeds from the clock.
func NewRandom(actionSpace space.Space, seed int64) (*RandomPolicy, error) {
	switch actionSpace.(type) {
	case space.Box, space.Discrete, space.MultiDiscrete:
	default:
		return nil, fmt.Errorf("unsupported action space type: %T", actionSpace)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomPolicy{
		rng:         rand.New(rand.NewSource(seed)),
		actionSpace: actionSpace,
	}, nil
}

// SelectAction implements Policy interface. The observation is ignored.
func (p *RandomPolicy) SelectAction(observation []byte) ([]byte, error) {
	switch s := p.actionSpace.(type) {
	case space.Discrete:
		return EncodeDiscreteAction(p.rng.Intn(s.N), s.N), nil
	case space.MultiDiscrete:
		return p.selectMultiDiscreteAction(s), nil
	case space.Box:
		return EncodeContinuousAction(p.sampleBox(s)), nil
	default:
		return nil, fmt.Errorf("unknown action space type")
	}
}

// selectMultiDiscreteAction encodes each sub-action as 4 bytes.
func (p *RandomPolicy) selectMultiDiscreteAction(s space.MultiDiscrete) []byte {
	actionBytes := make([]byte, 0, len(s.Nvec)*4)
	for _, n := range s.Nvec {
		actionBytes = binary.LittleEndian.AppendUint32(actionBytes, uint32(p.rng.Intn(n)))
	}
	return actionBytes
}

// sampleBox draws uniformly inside finite bounds, from an exponential
// past a single finite bound and from a standard normal when unbounded.
func (p *RandomPolicy) sampleBox(s space.Box) []float64 {
	out := make([]float64, len(s.Low))
	for i := range out {
		low, high := s.Low[i], s.High[i]
		lowInf, highInf := math.IsInf(low, 0), math.IsInf(high, 0)
		switch {
		case !lowInf && !highInf:
			out[i] = low + p.rng.Float64()*(high-low)
		case !lowInf:
			out[i] = low + p.rng.ExpFloat64()
		case !highInf:
			out[i] = high - p.rng.ExpFloat64()
		default:
			out[i] = p.rng.NormFloat64()
		}
	}
	return out
}
