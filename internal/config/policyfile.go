package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cartridge/ars/internal/policy"
)

// PolicyFile is a policy description on disk: constructor params and,
// optionally, a seed or a full weight vector.
type PolicyFile struct {
	Name    string        `json:"name" yaml:"name"`
	Params  policy.Params `json:"params" yaml:"params"`
	Seed    int64         `json:"seed,omitempty" yaml:"seed,omitempty"`
	Weights []float64     `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// LoadPolicyFile reads a YAML or JSON policy file. JSON is chosen by
// the .json extension.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pf PolicyFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &pf)
	} else {
		err = yaml.Unmarshal(data, &pf)
	}
	if err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return &pf, nil
}

// Build constructs the policy the file describes.
func (pf *PolicyFile) Build() (*policy.ARSPolicy, error) {
	var opts []policy.Option
	if pf.Seed != 0 {
		opts = append(opts, policy.WithSeed(pf.Seed))
	}
	p, err := policy.FromParams(pf.Params, opts...)
	if err != nil {
		return nil, err
	}
	if pf.Weights != nil {
		if err := p.SetParameters(pf.Weights); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// WritePolicyFile saves p as YAML, including its current weights.
func WritePolicyFile(path, name string, p *policy.ARSPolicy) error {
	pf := PolicyFile{
		Name:    name,
		Params:  p.ConstructorParams(),
		Weights: p.Parameters(),
	}
	data, err := yaml.Marshal(&pf)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
