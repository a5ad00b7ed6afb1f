package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/ars/internal/config"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "ars",
	Short: "Augmented Random Search policy networks",
	Long: `ars builds, stores and serves ARS policy networks.

A policy maps observations to actions through either a small MLP or a
single linear layer. Weights are supplied by an external ARS optimiser
and installed through the HTTP API or a policy file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if file := v.GetString("config"); file != "" {
			v.SetConfigFile(file)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, console)")

	// Bind flags to viper for environment variable support
	bindFlag(rootCmd, "config", "config")
	bindFlag(rootCmd, "log_level", "log-level")
	bindFlag(rootCmd, "log_format", "log-format")
	v.SetEnvPrefix("ARS")
	v.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, inspectCmd, predictCmd)
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// loadConfig resolves flags, environment and config file into a
// validated Config plus a logger built from it.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, cfg.NewLogger(os.Stderr), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
