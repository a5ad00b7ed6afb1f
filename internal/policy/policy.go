// Package policy provides action selection strategies: ARS policy
// networks and a uniform random baseline.
package policy

// Policy interface for action selection
type Policy interface {
	// SelectAction chooses an action given the current observation.
	// Observations are little-endian float32 values; the action is
	// returned in the same byte format the engine consumes.
	SelectAction(observation []byte) ([]byte, error)
}
