package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/config"
	"github.com/ShayCichocki/quarry/internal/logging"
)

var (
	rootDebug      bool
	rootConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Recursive question decomposition and answering",
	Long: `Quarry answers a question by breaking it down.

Broad questions are split into concrete sub-questions, each answered from the
internal knowledge base or, failing that, from web search. Every answer can
spawn follow-up questions, explored breadth first up to a maximum depth.

Examples:
  quarry ask "How is Acme doing financially?"
  quarry ask --max-depth 1 --output json "What was Acme's revenue in 2023?"
  quarry history
  quarry kb show`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Read configuration from this file instead of the default locations")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and validates configuration, honoring --config.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if rootConfigPath != "" {
		cfg, err = config.LoadFromPath(rootConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. --debug switches to the development
// encoder at debug level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if rootDebug {
		level = "debug"
	}
	return logging.New(level, rootDebug)
}
