package policy

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cartridge/ars/internal/space"
)

// DecodeObservation reads little-endian float32 values.
func DecodeObservation(b []byte) ([]float64, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of float32 values", ErrInvalidObservation, len(b))
	}
	out := make([]float64, len(b)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return out, nil
}

// EncodeObservation writes values as little-endian float32.
func EncodeObservation(obs []float64) []byte {
	return appendFloat32s(make([]byte, 0, len(obs)*4), obs)
}

func appendFloat32s(dst []byte, values []float64) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// EncodeDiscreteAction uses a single byte for spaces of up to 256
// choices and little-endian uint32 otherwise.
func EncodeDiscreteAction(action, n int) []byte {
	if n <= 256 {
		return []byte{byte(action)}
	}
	return binary.LittleEndian.AppendUint32(make([]byte, 0, 4), uint32(action))
}

// DecodeDiscreteAction is the inverse of EncodeDiscreteAction.
func DecodeDiscreteAction(b []byte) (int, error) {
	switch len(b) {
	case 1:
		return int(b[0]), nil
	case 4:
		return int(binary.LittleEndian.Uint32(b)), nil
	default:
		return 0, fmt.Errorf("discrete action must be 1 or 4 bytes, got %d", len(b))
	}
}

// EncodeContinuousAction writes values as little-endian float32.
func EncodeContinuousAction(action []float64) []byte {
	return appendFloat32s(make([]byte, 0, len(action)*4), action)
}

// DecodeContinuousAction reads little-endian float32 values.
func DecodeContinuousAction(b []byte) ([]float64, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("continuous action has %d bytes, not a multiple of 4", len(b))
	}
	out := make([]float64, len(b)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return out, nil
}

// SelectAction implements Policy for a single observation.
func (p *ARSPolicy) SelectAction(observation []byte) ([]byte, error) {
	obs, err := DecodeObservation(observation)
	if err != nil {
		return nil, err
	}
	batch, err := NewBatch([][]float64{obs})
	if err != nil {
		return nil, err
	}
	actions, err := p.Predict(batch, true)
	if err != nil {
		return nil, err
	}

	switch s := p.actionSpace.(type) {
	case space.Box:
		return EncodeContinuousAction(actions.Rows()[0]), nil
	case space.Discrete:
		return EncodeDiscreteAction(actions.Discrete[0], s.N), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedActionSpace, kindOf(p.actionSpace))
	}
}
