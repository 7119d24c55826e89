// Package main is the entry point for the playerpulse CLI.
//
// PlayerPulse can be run either as a library (SDK) or as a standalone binary
// configured with YAML and environment variables. This CLI provides the
// standalone binary approach.
//
// Usage:
//
//	playerpulse run -c config.yaml      # Watch servers and send notifications
//	playerpulse run                     # Configure from the environment only
//	playerpulse validate -c config.yaml # Validate configuration
//	playerpulse version                 # Show version info
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "playerpulse",
	Short: "Minecraft player notifications for Discord and Feishu",
	Long: `PlayerPulse watches Minecraft servers and messages you when players
join or leave.

It polls a status API at a configurable interval and sends a direct message
to every recipient whenever a server's roster changes. Users register by
sending the bot any direct message.

Quick start:
  1. Create a config file (playerpulse.yaml)
  2. Run: playerpulse run -c playerpulse.yaml
  3. Send your bot a direct message

Example config:
  interval: 60s
  servers: [mc.example.com]
  messenger:
    type: discord
    discord:
      token: ${DISCORD_TOKEN}`,
	PersistentPreRunE: loadEnvFile,
	// No Run/RunE means this just shows help when called without subcommands
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before configuration (ignored if missing)")
	rootCmd.AddCommand(versionCmd)
}

// loadEnvFile loads variables from the dotenv file without overriding ones
// already set in the environment.
func loadEnvFile(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Root().PersistentFlags().GetString("env-file")
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this playerpulse binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("playerpulse %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}
