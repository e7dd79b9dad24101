// Package cli wires the fuzzmon command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/s22625/fuzzmon/internal/config"
)

// Exit codes
const (
	ExitOK            = 0
	ExitConfigError   = 2
	ExitCampaignError = 10
)

var cfgPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fuzzmon",
	Short: "Parallel fuzzing campaign orchestrator",
	Long: `fuzzmon runs parallel fuzzing campaigns against contract targets.

It supervises a pool of fuzzing workers plus an optional symbolic
worker, fans campaign events out to an interactive dashboard, a status
reporter and a TCP event stream, and emits a final report when the
campaign ends.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (or set FUZZMON_* env vars)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitCampaignError)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
