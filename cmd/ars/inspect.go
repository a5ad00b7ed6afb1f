package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cartridge/ars/internal/config"
	"github.com/cartridge/ars/internal/policy"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Build a policy from a file and describe its network",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().String("policy", "", "Policy file (yaml or json)")
	inspectCmd.Flags().String("output", "text", "Output format (text, json, yaml)")
	inspectCmd.Flags().String("save", "", "Write the built policy, weights included, to this file")
	_ = inspectCmd.MarkFlagRequired("policy")
}

type policySummary struct {
	Name             string        `json:"name,omitempty" yaml:"name,omitempty"`
	Shape            string        `json:"shape" yaml:"shape"`
	ObservationSpace string        `json:"observation_space" yaml:"observation_space"`
	ActionSpace      string        `json:"action_space" yaml:"action_space"`
	InputDim         int           `json:"input_dim" yaml:"input_dim"`
	FeaturesDim      int           `json:"features_dim" yaml:"features_dim"`
	SquashOutput     bool          `json:"squash_output" yaml:"squash_output"`
	NumParameters    int           `json:"num_parameters" yaml:"num_parameters"`
	Network          string        `json:"network" yaml:"network"`
	Params           policy.Params `json:"params" yaml:"params"`
}

func summarize(name string, p *policy.ARSPolicy) policySummary {
	return policySummary{
		Name:             name,
		Shape:            string(p.Shape()),
		ObservationSpace: p.ObservationSpace().Kind().String(),
		ActionSpace:      p.ActionSpace().Kind().String(),
		InputDim:         p.InputDim(),
		FeaturesDim:      p.FeaturesDim(),
		SquashOutput:     p.SquashOutput(),
		NumParameters:    p.NumParameters(),
		Network:          p.ActionNet().String(),
		Params:           p.ConstructorParams(),
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("policy")
	output, _ := cmd.Flags().GetString("output")
	save, _ := cmd.Flags().GetString("save")

	pf, err := config.LoadPolicyFile(path)
	if err != nil {
		return err
	}
	p, err := pf.Build()
	if err != nil {
		return err
	}

	if err := writeSummary(cmd.OutOrStdout(), output, summarize(pf.Name, p)); err != nil {
		return err
	}
	if save != "" {
		return config.WritePolicyFile(save, pf.Name, p)
	}
	return nil
}

func writeSummary(w io.Writer, format string, s policySummary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "text":
		_, err := fmt.Fprintf(w,
			"name:          %s\nshape:         %s\nobservation:   %s (input %d, features %d)\naction:        %s\nsquash:        %t\nparameters:    %d\nnetwork:       %s\n",
			s.Name, s.Shape, s.ObservationSpace, s.InputDim, s.FeaturesDim, s.ActionSpace, s.SquashOutput, s.NumParameters, s.Network)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
