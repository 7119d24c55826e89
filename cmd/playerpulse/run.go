package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jpalmerr/playerpulse"
	"github.com/jpalmerr/playerpulse/config"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// runCmd starts polling and delivering notifications.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch servers and send notifications",
	Long: `Start watching the configured Minecraft servers.

The process will:
  - Load configuration from the YAML file (if given) and the environment
  - Poll every server immediately, then at the configured interval
  - Message every recipient when a server's players change
  - Register and greet anyone who messages the bot
  - Serve a health check on the configured port

Environment variables (INTERVAL, CACHE_TTL, SERVERS, RECIPIENTS, MESSENGER,
DISCORD_TOKEN, FEISHU_APP_ID, FEISHU_APP_SECRET, LOG_LEVEL, LOG_FORMAT)
override the file. List values are separated by commas or semicolons.

The --servers, --recipients and --discord-token flags override both the
environment and the file. They may also be passed as key=value arguments.

The process runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  playerpulse run -c config.yaml
  SERVERS=mc.example.com DISCORD_TOKEN=... playerpulse run
  playerpulse run servers=mc.example.com discord-token=... "recipients=111;222"`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

// overrideEnv maps run flags to the environment variables they override.
var overrideEnv = map[string]string{
	"servers":       "SERVERS",
	"recipients":    "RECIPIENTS",
	"discord-token": "DISCORD_TOKEN",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "path to config file (optional)")
	addOverrideFlags(runCmd)
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().String("servers", "", "servers to watch, separated by commas or semicolons")
	cmd.Flags().String("recipients", "", "recipient IDs, separated by commas or semicolons")
	cmd.Flags().String("discord-token", "", "Discord bot token")
}

// applyOverrides sets override flags given as key=value arguments, then
// exports every changed override flag to its environment variable.
func applyOverrides(cmd *cobra.Command, args []string) error {
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("unexpected argument %q, want key=value", arg)
		}
		if _, known := overrideEnv[name]; !known {
			return fmt.Errorf("unknown argument %q", name)
		}
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("invalid argument %q: %w", name, err)
		}
	}

	for name, env := range overrideEnv {
		if !cmd.Flags().Changed(name) {
			continue
		}
		value, _ := cmd.Flags().GetString(name)
		if err := os.Setenv(env, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", env, err)
		}
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := applyOverrides(cmd, args); err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("config loaded",
		"servers", len(cfg.Servers),
		"recipients", len(cfg.Recipients),
		"messenger", cfg.Messenger.Type,
	)

	opts, err := config.BuildOptions(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}

	pp, err := playerpulse.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create PlayerPulse: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- pp.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("playerpulse error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("playerpulse error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
