package space

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Type tags used in descriptors.
const (
	TypeBox           = "box"
	TypeDiscrete      = "discrete"
	TypeMultiDiscrete = "multi_discrete"
	TypeDict          = "dict"
)

// Spec is the serialisable form of a Space.
type Spec struct {
	Type   string          `json:"type" yaml:"type" mapstructure:"type"`
	Low    Bounds          `json:"low,omitempty" yaml:"low,omitempty" mapstructure:"low"`
	High   Bounds          `json:"high,omitempty" yaml:"high,omitempty" mapstructure:"high"`
	Shape  []int           `json:"shape,omitempty" yaml:"shape,omitempty" mapstructure:"shape"`
	N      int             `json:"n,omitempty" yaml:"n,omitempty" mapstructure:"n"`
	Nvec   []int           `json:"nvec,omitempty" yaml:"nvec,omitempty" mapstructure:"nvec"`
	Spaces map[string]Spec `json:"spaces,omitempty" yaml:"spaces,omitempty" mapstructure:"spaces"`
}

// Parse converts a descriptor into a Space.
func Parse(s Spec) (Space, error) {
	switch s.Type {
	case TypeBox:
		return NewBox(s.Low, s.High, s.Shape...)

	case TypeDiscrete:
		return NewDiscrete(s.N)

	case TypeMultiDiscrete:
		return NewMultiDiscrete(s.Nvec)

	case TypeDict:
		sub := make(map[string]Space, len(s.Spaces))
		for key, spec := range s.Spaces {
			parsed, err := Parse(spec)
			if err != nil {
				return nil, fmt.Errorf("dict entry %q: %w", key, err)
			}
			sub[key] = parsed
		}
		return NewDict(sub)

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownSpace)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpace, s.Type)
	}
}

// MustParse is like Parse but panics on error. Intended for tests and
// static tables.
func MustParse(s Spec) Space {
	sp, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sp
}

// Equal reports whether two spaces describe the same set.
func Equal(a, b Space) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a.Spec(), b.Spec())
}

// Bounds holds box limits. In JSON, infinities are written as the
// strings "inf" and "-inf".
type Bounds []float64

func (b Bounds) MarshalJSON() ([]byte, error) {
	out := make([]any, len(b))
	for i, v := range b {
		switch {
		case math.IsInf(v, 1):
			out[i] = "inf"
		case math.IsInf(v, -1):
			out[i] = "-inf"
		case math.IsNaN(v):
			return nil, fmt.Errorf("%w: NaN bound at index %d", ErrInvalidSpace, i)
		default:
			out[i] = v
		}
	}
	return json.Marshal(out)
}

func (b *Bounds) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Bounds, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			switch s {
			case "inf", "+inf":
				out[i] = math.Inf(1)
			case "-inf":
				out[i] = math.Inf(-1)
			default:
				return fmt.Errorf("%w: bound %q", ErrInvalidSpace, s)
			}
			continue
		}
		if err := json.Unmarshal(r, &out[i]); err != nil {
			return err
		}
	}
	*b = out
	return nil
}
