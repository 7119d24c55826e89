package config

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jpalmerr/playerpulse"
	"github.com/jpalmerr/playerpulse/internal/discord"
	"github.com/jpalmerr/playerpulse/internal/feishu"
)

// NewLogger creates the logger described by log_format and log_level,
// writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch c.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), nil
}

// BuildMessenger creates the messenger selected by messenger.type.
func BuildMessenger(cfg *Config, logger *slog.Logger) (playerpulse.Messenger, error) {
	logger = logger.With("component", "messenger", "type", cfg.Messenger.Type)

	switch cfg.Messenger.Type {
	case MessengerDiscord:
		return discord.NewMessenger(cfg.Messenger.Discord.APIBase, cfg.Messenger.Discord.Token, logger), nil
	case MessengerFeishu:
		return feishu.NewMessenger(cfg.Messenger.Feishu.AppID, cfg.Messenger.Feishu.AppSecret, logger), nil
	case MessengerLog:
		return playerpulse.NewLogMessenger(logger), nil
	default:
		return nil, fmt.Errorf("unknown messenger type %q", cfg.Messenger.Type)
	}
}

// BuildOptions converts parsed configuration into SDK options.
//
// The messenger is built with [BuildMessenger]. logger is passed through
// with [playerpulse.WithLogger].
func BuildOptions(cfg *Config, logger *slog.Logger) ([]playerpulse.Option, error) {
	messenger, err := BuildMessenger(cfg, logger)
	if err != nil {
		return nil, err
	}

	healthPort := 0
	if cfg.HealthEnabled() {
		healthPort = cfg.Health.Port
	}

	opts := []playerpulse.Option{
		playerpulse.WithServers(cfg.Servers...),
		playerpulse.WithRecipients(cfg.Recipients...),
		playerpulse.WithPollingInterval(cfg.Interval.Duration()),
		playerpulse.WithCacheTTL(cfg.CacheTTL.Duration()),
		playerpulse.WithMaxConcurrency(cfg.MaxConcurrency),
		playerpulse.WithStatusAPI(cfg.StatusAPI),
		playerpulse.WithFetchTimeout(cfg.FetchTimeout.Duration()),
		playerpulse.WithFetchRate(cfg.FetchRate),
		playerpulse.WithMessenger(messenger),
		playerpulse.WithDebounce(cfg.Dispatch.Debounce.Duration()),
		playerpulse.WithRetryPolicy(playerpulse.RetryPolicy{
			MaxAttempts: cfg.Dispatch.MaxAttempts,
			Delay:       cfg.Dispatch.RetryDelay.Duration(),
		}),
		playerpulse.WithHealthPort(healthPort),
		playerpulse.WithLogger(logger),
	}
	return opts, nil
}
