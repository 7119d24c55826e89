package playerpulse

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// ppConfig holds mutable state during PlayerPulse construction.
type ppConfig struct {
	servers         []string
	recipients      []string
	pollingInterval time.Duration
	cacheTTL        time.Duration
	maxConcurrency  int
	fetcher         Fetcher
	statusAPI       string
	fetchTimeout    time.Duration
	fetchRate       float64
	messenger       Messenger
	debounce        time.Duration
	retry           RetryPolicy
	healthPort      int
	logger          *slog.Logger
	statusCallbacks []func([]ServerStatus)
}

// Option is a function that configures a [PlayerPulse] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*ppConfig) error

// WithServers adds Minecraft server addresses to the polling list.
//
// Can be called multiple times. At least one server must be configured for
// [New] to succeed, and addresses must be unique.
//
// Example:
//
//	pp, err := playerpulse.New(
//	    playerpulse.WithServers("mc.example.com", "play.example.org:25566"),
//	)
func WithServers(servers ...string) Option {
	return func(cfg *ppConfig) error {
		for _, s := range servers {
			if s == "" {
				return errors.New("server address cannot be empty")
			}
		}
		cfg.servers = append(cfg.servers, servers...)
		return nil
	}
}

// WithRecipients adds recipient IDs that are notified from the start.
//
// With a messenger that implements [Inbox], more recipients register
// themselves at runtime by messaging the bot.
func WithRecipients(ids ...string) Option {
	return func(cfg *ppConfig) error {
		cfg.recipients = append(cfg.recipients, ids...)
		return nil
	}
}

// WithPollingInterval sets how often all servers are polled.
//
// Each polling cycle polls all servers concurrently (up to the
// [WithMaxConcurrency] limit). Defaults to 60 seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *ppConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithCacheTTL sets how long a fetched status document is reused.
//
// A TTL of zero fetches on every read. When a refresh fails, the last
// document is served even if it is older than the TTL. Defaults to 30
// seconds.
//
// Returns an error if the duration is negative.
func WithCacheTTL(d time.Duration) Option {
	return func(cfg *ppConfig) error {
		if d < 0 {
			return errors.New("cache TTL cannot be negative")
		}
		cfg.cacheTTL = d
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of servers fetched at once.
//
// Defaults to 4 if not specified.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *ppConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithFetcher replaces the status API client with a custom [Fetcher].
//
// When set, [WithStatusAPI], [WithFetchTimeout] and [WithFetchRate] have no
// effect.
//
// Returns an error if fetcher is nil.
func WithFetcher(fetcher Fetcher) Option {
	return func(cfg *ppConfig) error {
		if fetcher == nil {
			return errors.New("fetcher cannot be nil")
		}
		cfg.fetcher = fetcher
		return nil
	}
}

// WithStatusAPI sets the base URL of an mcsrvstat-compatible status API.
// Defaults to https://api.mcsrvstat.us/3.
//
// Returns an error if the URL is not http or https.
func WithStatusAPI(baseURL string) Option {
	return func(cfg *ppConfig) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid status API url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("status API url scheme must be http or https, got %q", u.Scheme)
		}
		cfg.statusAPI = baseURL
		return nil
	}
}

// WithFetchTimeout bounds each status API request. Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *ppConfig) error {
		if d <= 0 {
			return errors.New("fetch timeout must be positive")
		}
		cfg.fetchTimeout = d
		return nil
	}
}

// WithFetchRate limits requests per second to the status API. Zero, the
// default, is unlimited.
//
// Returns an error if rps is negative.
func WithFetchRate(rps float64) Option {
	return func(cfg *ppConfig) error {
		if rps < 0 {
			return errors.New("fetch rate cannot be negative")
		}
		cfg.fetchRate = rps
		return nil
	}
}

// WithMessenger sets the chat platform notifications are delivered through.
//
// Defaults to a messenger that only logs, see [NewLogMessenger].
//
// Returns an error if m is nil.
func WithMessenger(m Messenger) Option {
	return func(cfg *ppConfig) error {
		if m == nil {
			return errors.New("messenger cannot be nil")
		}
		cfg.messenger = m
		return nil
	}
}

// WithDebounce sets the quiet period after the last queued notification
// before the pending batch is sent. Defaults to 1 second.
//
// Returns an error if the duration is zero or negative.
func WithDebounce(d time.Duration) Option {
	return func(cfg *ppConfig) error {
		if d <= 0 {
			return errors.New("debounce must be positive")
		}
		cfg.debounce = d
		return nil
	}
}

// WithRetryPolicy sets how failed recipient lookups and sends are retried.
// Defaults to [DefaultRetryPolicy].
//
// Returns an error if MaxAttempts or Delay is negative.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(cfg *ppConfig) error {
		if p.MaxAttempts < 0 {
			return errors.New("retry max attempts cannot be negative")
		}
		if p.Delay < 0 {
			return errors.New("retry delay cannot be negative")
		}
		cfg.retry = p
		return nil
	}
}

// WithHealthPort sets the port of the health check server. Zero disables
// it. Defaults to 9339.
//
// Returns an error if the port is outside 0-65535.
func WithHealthPort(port int) Option {
	return func(cfg *ppConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("health port must be between 1 and 65535, or 0 to disable")
		}
		cfg.healthPort = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the PlayerPulse instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *ppConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusCallback registers a function to be called whenever a server's
// status changes.
//
// The callback receives the full snapshot of all known servers, sorted by
// address. Unchanged polls do not invoke it.
//
// Multiple callbacks may be registered by calling WithStatusCallback multiple
// times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. Blocking callbacks delay later
// snapshots, and a slow consumer only sees the latest one.
//
// Callbacks are invoked synchronously from a single goroutine. Panics within
// callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func([]ServerStatus)) Option {
	return func(cfg *ppConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}
