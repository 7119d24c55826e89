// Package config provides YAML configuration parsing for PlayerPulse.
//
// This package enables running PlayerPulse as a standalone binary with a
// configuration file, environment variables, or both. Environment variables
// override values from the file.
//
// Example configuration:
//
//	interval: 60s
//	cache_ttl: 30000          # integer milliseconds also work
//	servers: [mc.example.com]
//	recipients: ["123456789012345678"]
//
//	messenger:
//	  type: discord
//	  discord:
//	    token: ${DISCORD_TOKEN}
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Messenger types.
const (
	MessengerDiscord = "discord"
	MessengerFeishu  = "feishu"
	MessengerLog     = "log"
)

// Defaults applied by [Parse] and [Load].
const (
	DefaultInterval       = 60 * time.Second
	DefaultCacheTTL       = 30 * time.Second
	DefaultStatusAPI      = "https://api.mcsrvstat.us/3"
	DefaultFetchTimeout   = 10 * time.Second
	DefaultMaxConcurrency = 4
	DefaultHealthPort     = 9339
	DefaultDebounce       = time.Second
	DefaultRetryDelay     = 5 * time.Second
)

// Config is the root configuration structure for PlayerPulse.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config.
type Config struct {
	// Interval is the time between polling cycles.
	Interval Duration `yaml:"interval"`

	// CacheTTL is how long a fetched status document is reused.
	// Zero disables caching.
	CacheTTL *Duration `yaml:"cache_ttl"`

	// Servers are the Minecraft server addresses to poll.
	Servers []string `yaml:"servers"`

	// Recipients are the user IDs notified of changes from the start.
	// More recipients register themselves by messaging the bot.
	Recipients []string `yaml:"recipients"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// LogFormat is json (default) or text.
	LogFormat string `yaml:"log_format"`

	// StatusAPI is the base URL of the mcsrvstat-compatible status API.
	// Supports environment variable substitution.
	StatusAPI string `yaml:"status_api"`

	// FetchTimeout bounds a single status API request.
	FetchTimeout Duration `yaml:"fetch_timeout"`

	// FetchRate limits requests per second to the status API. 0 is unlimited.
	FetchRate float64 `yaml:"fetch_rate"`

	// MaxConcurrency is the number of servers fetched in parallel per tick.
	MaxConcurrency int `yaml:"max_concurrency"`

	Health    HealthConfig    `yaml:"health"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Messenger MessengerConfig `yaml:"messenger"`
}

// HealthConfig configures the health check HTTP server.
type HealthConfig struct {
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`

	// Port defaults to 9339.
	Port int `yaml:"port"`
}

// DispatchConfig configures the notification dispatcher.
type DispatchConfig struct {
	// Debounce is the quiet period before pending messages are flushed.
	Debounce Duration `yaml:"debounce"`

	// RetryDelay is the pause between delivery attempts.
	RetryDelay Duration `yaml:"retry_delay"`

	// MaxAttempts bounds delivery attempts per flush. 0 retries until
	// success or shutdown.
	MaxAttempts int `yaml:"max_attempts"`
}

// MessengerConfig selects and configures the chat platform.
type MessengerConfig struct {
	// Type is discord, feishu or log. Defaults to discord.
	Type    string        `yaml:"type"`
	Discord DiscordConfig `yaml:"discord"`
	Feishu  FeishuConfig  `yaml:"feishu"`
}

// DiscordConfig holds the bot credentials.
type DiscordConfig struct {
	// Token is the bot token. Supports environment variable substitution.
	Token string `yaml:"token"`

	// APIBase overrides the REST API root, mainly for testing.
	APIBase string `yaml:"api_base"`
}

// FeishuConfig holds the Feishu app credentials.
type FeishuConfig struct {
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
}

// Duration wraps time.Duration for YAML unmarshalling.
//
// It accepts duration strings ("30s", "1m") and plain integers, which are
// read as milliseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

const (
	maxDurationMillis = math.MaxInt64 / int64(time.Millisecond)
	minDurationMillis = math.MinInt64 / int64(time.Millisecond)
)

// ParseDuration parses a duration string, treating a bare integer as
// milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms > maxDurationMillis || ms < minDurationMillis {
			return 0, fmt.Errorf("invalid duration %q: out of range", s)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return parsed, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// An empty path builds the configuration from environment variables alone.
// Returns an error if the file cannot be read or the result is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data, applies environment overrides and
// defaults, and validates the result.
//
// Environment variables are expanded in status_api and in the messenger
// credentials.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides fields from environment variables. List values are
// separated by commas or semicolons.
func (c *Config) applyEnv() error {
	durations := []struct {
		name string
		set  func(Duration)
	}{
		{"INTERVAL", func(d Duration) { c.Interval = d }},
		{"CACHE_TTL", func(d Duration) { c.CacheTTL = &d }},
	}
	for _, d := range durations {
		if v, ok := os.LookupEnv(d.name); ok && v != "" {
			parsed, err := ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", d.name, err)
			}
			d.set(Duration(parsed))
		}
	}

	if v, ok := os.LookupEnv("SERVERS"); ok && v != "" {
		c.Servers = splitList(v)
	}
	if v, ok := os.LookupEnv("RECIPIENTS"); ok && v != "" {
		c.Recipients = splitList(v)
	}

	strs := map[string]*string{
		"LOG_LEVEL":         &c.LogLevel,
		"LOG_FORMAT":        &c.LogFormat,
		"MESSENGER":         &c.Messenger.Type,
		"DISCORD_TOKEN":     &c.Messenger.Discord.Token,
		"FEISHU_APP_ID":     &c.Messenger.Feishu.AppID,
		"FEISHU_APP_SECRET": &c.Messenger.Feishu.AppSecret,
	}
	for name, field := range strs {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*field = v
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = Duration(DefaultInterval)
	}
	if c.CacheTTL == nil {
		ttl := Duration(DefaultCacheTTL)
		c.CacheTTL = &ttl
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.StatusAPI == "" {
		c.StatusAPI = DefaultStatusAPI
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = Duration(DefaultFetchTimeout)
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Health.Enabled == nil {
		enabled := true
		c.Health.Enabled = &enabled
	}
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Dispatch.Debounce == 0 {
		c.Dispatch.Debounce = Duration(DefaultDebounce)
	}
	if c.Dispatch.RetryDelay == 0 {
		c.Dispatch.RetryDelay = Duration(DefaultRetryDelay)
	}
	if c.Messenger.Type == "" {
		c.Messenger.Type = MessengerDiscord
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Interval.Duration() <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval.Duration())
	}
	if c.CacheTTL.Duration() < 0 {
		return fmt.Errorf("cache_ttl cannot be negative, got %s", c.CacheTTL.Duration())
	}
	if c.FetchTimeout.Duration() < 0 {
		return fmt.Errorf("fetch_timeout cannot be negative, got %s", c.FetchTimeout.Duration())
	}
	if c.FetchRate < 0 {
		return fmt.Errorf("fetch_rate cannot be negative, got %v", c.FetchRate)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if len(c.Servers) == 0 {
		return errors.New("at least one server must be defined")
	}
	seen := make(map[string]struct{}, len(c.Servers))
	for i, s := range c.Servers {
		s = strings.TrimSpace(s)
		if s == "" {
			return fmt.Errorf("servers[%d]: address is empty", i)
		}
		if _, exists := seen[s]; exists {
			return fmt.Errorf("servers[%d]: duplicate server %q", i, s)
		}
		seen[s] = struct{}{}
		c.Servers[i] = s
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log_format must be json or text, got %q", c.LogFormat)
	}

	expanded, err := expandEnvVars(c.StatusAPI)
	if err != nil {
		return fmt.Errorf("status_api: %w", err)
	}
	c.StatusAPI = expanded
	parsedURL, err := url.Parse(c.StatusAPI)
	if err != nil {
		return fmt.Errorf("status_api: invalid url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("status_api: url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if c.HealthEnabled() && (c.Health.Port < 1 || c.Health.Port > 65535) {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	if c.Dispatch.Debounce.Duration() < 0 {
		return fmt.Errorf("dispatch.debounce cannot be negative, got %s", c.Dispatch.Debounce.Duration())
	}
	if c.Dispatch.RetryDelay.Duration() < 0 {
		return fmt.Errorf("dispatch.retry_delay cannot be negative, got %s", c.Dispatch.RetryDelay.Duration())
	}
	if c.Dispatch.MaxAttempts < 0 {
		return fmt.Errorf("dispatch.max_attempts cannot be negative, got %d", c.Dispatch.MaxAttempts)
	}

	return c.validateMessenger()
}

func (c *Config) validateMessenger() error {
	m := &c.Messenger
	expand := func(field string, s *string) error {
		v, err := expandEnvVars(*s)
		if err != nil {
			return fmt.Errorf("messenger.%s: %w", field, err)
		}
		*s = v
		return nil
	}

	switch m.Type {
	case MessengerDiscord:
		if err := expand("discord.token", &m.Discord.Token); err != nil {
			return err
		}
		if m.Discord.Token == "" {
			return errors.New("messenger.discord.token is required")
		}
		if err := expand("discord.api_base", &m.Discord.APIBase); err != nil {
			return err
		}
	case MessengerFeishu:
		if err := expand("feishu.app_id", &m.Feishu.AppID); err != nil {
			return err
		}
		if err := expand("feishu.app_secret", &m.Feishu.AppSecret); err != nil {
			return err
		}
		if m.Feishu.AppID == "" || m.Feishu.AppSecret == "" {
			return errors.New("messenger.feishu.app_id and app_secret are required")
		}
	case MessengerLog:
	default:
		return fmt.Errorf("messenger.type must be discord, feishu or log, got %q", m.Type)
	}
	return nil
}

// HealthEnabled reports whether the health check server should run.
func (c *Config) HealthEnabled() bool {
	return c.Health.Enabled == nil || *c.Health.Enabled
}

// ParseLevel converts a log_level value to a [slog.Level].
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", s)
	}
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
