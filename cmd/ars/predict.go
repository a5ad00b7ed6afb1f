package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cartridge/ars/internal/config"
	"github.com/cartridge/ars/internal/policy"
	"github.com/cartridge/ars/internal/space"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run observations through a policy file",
	Long: `predict builds the policy described by --policy and prints the
actions for the observations in --obs. Rows are separated by ';' and
values by ','. With --random the actions come from the uniform random
baseline over the same action space.`,
	RunE: runPredict,
}

func init() {
	predictCmd.Flags().String("policy", "", "Policy file (yaml or json)")
	predictCmd.Flags().String("obs", "", `Observation batch, e.g. "0.1,0.2;0.3,0.4"`)
	predictCmd.Flags().Bool("random", false, "Sample from the random baseline instead")
	predictCmd.Flags().Int64("seed", 0, "Seed for the random baseline (0 uses the clock)")
	_ = predictCmd.MarkFlagRequired("policy")
	_ = predictCmd.MarkFlagRequired("obs")
}

type predictOutput struct {
	Actions         [][]float64 `json:"actions,omitempty"`
	DiscreteActions []int       `json:"discrete_actions,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("policy")
	obsFlag, _ := cmd.Flags().GetString("obs")
	random, _ := cmd.Flags().GetBool("random")
	seed, _ := cmd.Flags().GetInt64("seed")

	_, logger, err := loadConfig()
	if err != nil {
		return err
	}

	pf, err := config.LoadPolicyFile(path)
	if err != nil {
		return err
	}
	p, err := pf.Build()
	if err != nil {
		return err
	}
	rows, err := parseObservations(obsFlag)
	if err != nil {
		return err
	}

	var out predictOutput
	if random {
		baseline, err := policy.NewRandom(p.ActionSpace(), seed)
		if err != nil {
			return err
		}
		out, err = selectEach(baseline, p.ActionSpace(), rows)
		if err != nil {
			return err
		}
	} else {
		batch, err := policy.NewBatch(rows)
		if err != nil {
			return err
		}
		actions, err := p.Predict(batch, true)
		if err != nil {
			return err
		}
		out = predictOutput{Actions: actions.Rows(), DiscreteActions: actions.Discrete}
	}

	logger.Debug().
		Str("policy", path).
		Int("batch", len(rows)).
		Bool("random", random).
		Msg("prediction complete")

	enc := json.NewEncoder(cmd.OutOrStdout())
	return enc.Encode(out)
}

// selectEach runs one observation at a time through the byte-level
// Policy interface.
func selectEach(pol policy.Policy, act space.Space, rows [][]float64) (predictOutput, error) {
	var out predictOutput
	for _, row := range rows {
		raw, err := pol.SelectAction(policy.EncodeObservation(row))
		if err != nil {
			return predictOutput{}, err
		}
		switch act.(type) {
		case space.Discrete:
			a, err := policy.DecodeDiscreteAction(raw)
			if err != nil {
				return predictOutput{}, err
			}
			out.DiscreteActions = append(out.DiscreteActions, a)
		case space.Box:
			a, err := policy.DecodeContinuousAction(raw)
			if err != nil {
				return predictOutput{}, err
			}
			out.Actions = append(out.Actions, a)
		default:
			return predictOutput{}, fmt.Errorf("%w: %s", policy.ErrUnsupportedActionSpace, act.Kind())
		}
	}
	return out, nil
}

func parseObservations(s string) ([][]float64, error) {
	var rows [][]float64
	for i, rowText := range strings.Split(s, ";") {
		rowText = strings.TrimSpace(rowText)
		if rowText == "" {
			continue
		}
		fields := strings.Split(rowText, ",")
		row := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("observation row %d value %d: %w", i, j, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no observations given", policy.ErrInvalidObservation)
	}
	return rows, nil
}
