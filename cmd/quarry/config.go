package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quarry/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify quarry configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

List keys (not_found.phrases, not_found.error_prefixes) take comma-separated
values.

Configuration is stored at ~/.config/quarry/config.yaml
Project-specific overrides can be placed in .quarry.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, cfg)
			return nil
		case 1:
			value, err := displayValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			if err := config.Set(args[0], args[1]); err != nil {
				return fmt.Errorf("set %s: %w", args[0], err)
			}
			shown := args[1]
			if config.IsSecretKey(args[0]) {
				shown = config.MaskAPIKey(args[1])
			}
			fmt.Fprintf(out, "Set %s = %s\n", args[0], shown)
			return nil
		}
	},
}

// displayAllConfig prints every known key with its effective value.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range config.Keys() {
		value, err := displayValue(cfg, key)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	fmt.Fprintf(w, "(llm key source: %s)\n", config.GetAPIKeySource(cfg))
}

// displayValue returns the value of key with secrets masked.
func displayValue(cfg *config.Config, key string) (string, error) {
	value, err := cfg.Lookup(key)
	if err != nil {
		return "", err
	}
	if config.IsSecretKey(key) {
		return config.MaskAPIKey(value), nil
	}
	if value == "" {
		return "(not set)", nil
	}
	return value, nil
}
