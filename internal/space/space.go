// Package space describes observation and action spaces.
//
// Spaces form a closed set of variants. Descriptors arrive as a Spec and
// are turned into a Space by Parse, which is the only place unknown
// kinds are rejected.
package space

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrUnknownSpace indicates a descriptor with an unrecognised type tag.
	ErrUnknownSpace = errors.New("unknown space type")
	// ErrInvalidSpace indicates a descriptor whose fields are inconsistent.
	ErrInvalidSpace = errors.New("invalid space")
)

// Kind tags a space variant.
type Kind int

const (
	KindBox Kind = iota
	KindDiscrete
	KindMultiDiscrete
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindBox:
		return TypeBox
	case KindDiscrete:
		return TypeDiscrete
	case KindMultiDiscrete:
		return TypeMultiDiscrete
	case KindDict:
		return TypeDict
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Space is implemented by Box, Discrete, MultiDiscrete and Dict.
type Space interface {
	Kind() Kind
	// Shape is the shape of a single sample.
	Shape() []int
	// Spec returns the serialisable descriptor of the space.
	Spec() Spec
}

// Box is a bounded real-valued tensor space. Low and High hold one
// value per element; build boxes with NewBox or Parse.
type Box struct {
	Low  []float64
	High []float64
	Dims []int
}

// NewBox builds a Box. With no dims the space is one-dimensional with
// len(low) elements. A single low or high value is broadcast to every
// element.
func NewBox(low, high []float64, dims ...int) (Box, error) {
	if len(dims) == 0 {
		n := len(low)
		if len(high) > n {
			n = len(high)
		}
		dims = []int{n}
	}
	size := 1
	for _, d := range dims {
		if d <= 0 {
			return Box{}, fmt.Errorf("%w: box dimension %d must be positive", ErrInvalidSpace, d)
		}
		size *= d
	}

	var err error
	if low, err = broadcast("low", low, size); err != nil {
		return Box{}, err
	}
	if high, err = broadcast("high", high, size); err != nil {
		return Box{}, err
	}
	for i := range low {
		if low[i] > high[i] {
			return Box{}, fmt.Errorf("%w: box low[%d]=%g exceeds high[%d]=%g", ErrInvalidSpace, i, low[i], i, high[i])
		}
	}

	return Box{
		Low:  low,
		High: high,
		Dims: append([]int(nil), dims...),
	}, nil
}

func broadcast(name string, values []float64, size int) ([]float64, error) {
	switch len(values) {
	case size:
		return append([]float64(nil), values...), nil
	case 1:
		out := make([]float64, size)
		for i := range out {
			out[i] = values[0]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: box %s has %d values, want 1 or %d", ErrInvalidSpace, name, len(values), size)
	}
}

func (b Box) Kind() Kind { return KindBox }

func (b Box) Shape() []int { return append([]int(nil), b.Dims...) }

// Dim is the number of scalar elements in a sample.
func (b Box) Dim() int {
	n := 1
	for _, d := range b.Dims {
		n *= d
	}
	return n
}

// Bounded reports whether every element has finite bounds.
func (b Box) Bounded() bool {
	for i := range b.Low {
		if math.IsInf(b.Low[i], 0) || math.IsInf(b.High[i], 0) {
			return false
		}
	}
	return true
}

// Contains reports whether x is a flattened sample inside the box.
func (b Box) Contains(x []float64) bool {
	if len(x) != len(b.Low) {
		return false
	}
	for i, v := range x {
		if v < b.Low[i] || v > b.High[i] {
			return false
		}
	}
	return true
}

func (b Box) Spec() Spec {
	return Spec{
		Type:  TypeBox,
		Low:   append([]float64(nil), b.Low...),
		High:  append([]float64(nil), b.High...),
		Shape: b.Shape(),
	}
}

// Discrete is a categorical space with N choices, 0..N-1.
type Discrete struct {
	N int
}

// NewDiscrete builds a Discrete space.
func NewDiscrete(n int) (Discrete, error) {
	if n <= 0 {
		return Discrete{}, fmt.Errorf("%w: discrete space needs n > 0, got %d", ErrInvalidSpace, n)
	}
	return Discrete{N: n}, nil
}

func (d Discrete) Kind() Kind { return KindDiscrete }

func (d Discrete) Shape() []int { return []int{} }

// Contains reports whether a is a valid choice.
func (d Discrete) Contains(a int) bool { return a >= 0 && a < d.N }

func (d Discrete) Spec() Spec { return Spec{Type: TypeDiscrete, N: d.N} }

// MultiDiscrete is a vector of independent categorical choices.
type MultiDiscrete struct {
	Nvec []int
}

// NewMultiDiscrete builds a MultiDiscrete space.
func NewMultiDiscrete(nvec []int) (MultiDiscrete, error) {
	if len(nvec) == 0 {
		return MultiDiscrete{}, fmt.Errorf("%w: multi-discrete space needs at least one dimension", ErrInvalidSpace)
	}
	for i, n := range nvec {
		if n <= 0 {
			return MultiDiscrete{}, fmt.Errorf("%w: multi-discrete nvec[%d]=%d must be positive", ErrInvalidSpace, i, n)
		}
	}
	return MultiDiscrete{Nvec: append([]int(nil), nvec...)}, nil
}

func (m MultiDiscrete) Kind() Kind { return KindMultiDiscrete }

func (m MultiDiscrete) Shape() []int { return []int{len(m.Nvec)} }

func (m MultiDiscrete) Spec() Spec {
	return Spec{Type: TypeMultiDiscrete, Nvec: append([]int(nil), m.Nvec...)}
}

// Entry is a named sub-space of a Dict.
type Entry struct {
	Key   string
	Space Space
}

// Dict is a collection of named sub-spaces, ordered by key.
type Dict struct {
	Entries []Entry
}

// NewDict builds a Dict from named sub-spaces.
func NewDict(spaces map[string]Space) (Dict, error) {
	if len(spaces) == 0 {
		return Dict{}, fmt.Errorf("%w: dict space needs at least one entry", ErrInvalidSpace)
	}
	keys := make([]string, 0, len(spaces))
	for k := range spaces {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if spaces[k] == nil {
			return Dict{}, fmt.Errorf("%w: dict entry %q is nil", ErrInvalidSpace, k)
		}
		entries = append(entries, Entry{Key: k, Space: spaces[k]})
	}
	return Dict{Entries: entries}, nil
}

func (d Dict) Kind() Kind { return KindDict }

func (d Dict) Shape() []int { return nil }

func (d Dict) Spec() Spec {
	sub := make(map[string]Spec, len(d.Entries))
	for _, e := range d.Entries {
		sub[e.Key] = e.Space.Spec()
	}
	return Spec{Type: TypeDict, Spaces: sub}
}
