package nn

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
)

// Names of built-in activations.
const (
	ActivationIdentity  = "identity"
	ActivationReLU      = "relu"
	ActivationTanh      = "tanh"
	ActivationSigmoid   = "sigmoid"
	ActivationLeakyReLU = "leaky_relu"
	ActivationELU       = "elu"
	ActivationSoftplus  = "softplus"
)

type ActivationFunc func(x float64) float64

var activationRegistry = struct {
	mu sync.RWMutex
	m  map[string]ActivationFunc
}{
	m: make(map[string]ActivationFunc),
}

func init() {
	MustRegisterActivation(ActivationIdentity, func(x float64) float64 { return x })
	MustRegisterActivation(ActivationReLU, func(x float64) float64 {
		if x < 0 {
			return 0
		}
		return x
	})
	MustRegisterActivation(ActivationTanh, math.Tanh)
	MustRegisterActivation(ActivationSigmoid, func(x float64) float64 {
		return 1.0 / (1.0 + math.Exp(-x))
	})
	MustRegisterActivation(ActivationLeakyReLU, func(x float64) float64 {
		if x < 0 {
			return 0.01 * x
		}
		return x
	})
	MustRegisterActivation(ActivationELU, func(x float64) float64 {
		if x < 0 {
			return math.Expm1(x)
		}
		return x
	})
	MustRegisterActivation(ActivationSoftplus, func(x float64) float64 {
		// log(1+e^x) without overflow for large x
		if x > 30 {
			return x
		}
		return math.Log1p(math.Exp(x))
	})
}

// RegisterActivation adds a named elementwise activation.
func RegisterActivation(name string, fn ActivationFunc) error {
	if name == "" {
		return errors.New("activation name is required")
	}
	if fn == nil {
		return errors.New("activation function is required")
	}

	activationRegistry.mu.Lock()
	defer activationRegistry.mu.Unlock()

	if _, exists := activationRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, name)
	}
	activationRegistry.m[name] = fn
	return nil
}

func MustRegisterActivation(name string, fn ActivationFunc) {
	if err := RegisterActivation(name, fn); err != nil {
		panic(err)
	}
}

// GetActivation looks up a registered activation by name.
func GetActivation(name string) (ActivationFunc, error) {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	fn, ok := activationRegistry.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return fn, nil
}

// ListActivations returns registered names in sorted order.
func ListActivations() []string {
	activationRegistry.mu.RLock()
	defer activationRegistry.mu.RUnlock()

	names := make([]string, 0, len(activationRegistry.m))
	for name := range activationRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
