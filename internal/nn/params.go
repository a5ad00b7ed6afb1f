package nn

import "fmt"

// NumParameters counts the trainable values of a layer.
func NumParameters(l Layer) int {
	n := 0
	for _, p := range l.Parameters() {
		n += len(p)
	}
	return n
}

// FlattenParameters copies a layer's parameters into one vector, in
// layer order.
func FlattenParameters(l Layer) []float64 {
	flat := make([]float64, 0, NumParameters(l))
	for _, p := range l.Parameters() {
		flat = append(flat, p...)
	}
	return flat
}

// LoadParameters writes flat back into the layer. flat must have
// exactly NumParameters(l) values.
func LoadParameters(l Layer, flat []float64) error {
	params := l.Parameters()
	want := 0
	for _, p := range params {
		want += len(p)
	}
	if len(flat) != want {
		return fmt.Errorf("got %d parameters, want %d", len(flat), want)
	}
	offset := 0
	for _, p := range params {
		offset += copy(p, flat[offset:offset+len(p)])
	}
	return nil
}
