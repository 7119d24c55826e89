package main

import (
	"fmt"

	"github.com/jpalmerr/playerpulse/config"
	"github.com/spf13/cobra"
)

// validateCmd validates configuration without starting anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate PlayerPulse configuration without connecting to anything.

This command parses the YAML (if given), applies environment overrides,
expands environment variables, and validates all fields. It's useful for
CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  playerpulse validate -c config.yaml
  playerpulse validate --config /etc/playerpulse/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (optional)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	health := "disabled"
	if cfg.HealthEnabled() {
		health = fmt.Sprintf("port %d", cfg.Health.Port)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Servers:    %d\n", len(cfg.Servers))
	fmt.Printf("  Recipients: %d\n", len(cfg.Recipients))
	fmt.Printf("  Interval:   %s\n", cfg.Interval.Duration())
	fmt.Printf("  Cache TTL:  %s\n", cfg.CacheTTL.Duration())
	fmt.Printf("  Messenger:  %s\n", cfg.Messenger.Type)
	fmt.Printf("  Health:     %s\n", health)

	return nil
}
