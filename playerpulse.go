package playerpulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/playerpulse/internal/notify"
	"github.com/jpalmerr/playerpulse/internal/poller"
	"github.com/jpalmerr/playerpulse/internal/server"
	"github.com/jpalmerr/playerpulse/internal/store"
)

const (
	defaultPollingInterval = 60 * time.Second
	defaultCacheTTL        = 30 * time.Second
	defaultFetchTimeout    = 10 * time.Second
	defaultMaxConcurrency  = 4
)

// PlayerPulse polls Minecraft servers and notifies recipients when the
// players online change.
//
// It is created using [New] with functional options and started with
// [PlayerPulse.Start].
//
// The typical lifecycle is:
//
//	pp, err := playerpulse.New(
//	    playerpulse.WithServers("mc.example.com"),
//	    playerpulse.WithRecipients("123456789012345678"),
//	    playerpulse.WithMessenger(messenger),
//	)
//	if err != nil {
//	    slog.Error("failed to create playerpulse", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	pp.Start(ctx) // blocks until context cancelled
type PlayerPulse struct {
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

// New creates a new [PlayerPulse] instance with the given options.
//
// At least one server must be configured via [WithServers]. Other options
// have sensible defaults:
//   - Polling interval: 60 seconds
//   - Cache TTL: 30 seconds
//   - Max concurrency: 4
//   - Status API: https://api.mcsrvstat.us/3
//   - Messenger: log only
//   - Debounce: 1 second
//   - Retry: forever, 5 seconds apart
//   - Health port: 9339
//
// Returns an error if no servers are configured or if any option is invalid.
func New(opts ...Option) (*PlayerPulse, error) {
	cfg := &ppConfig{
		pollingInterval: defaultPollingInterval,
		cacheTTL:        defaultCacheTTL,
		maxConcurrency:  defaultMaxConcurrency,
		statusAPI:       poller.DefaultStatusAPI,
		fetchTimeout:    defaultFetchTimeout,
		debounce:        notify.DefaultDebounce,
		retry:           notify.DefaultRetryPolicy(),
		healthPort:      server.DefaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.servers) == 0 {
		return nil, errors.New("at least one server is required")
	}

	// servers are the store key, so they must be unique
	seen := make(map[string]bool, len(cfg.servers))
	for _, s := range cfg.servers {
		if seen[s] {
			return nil, fmt.Errorf("duplicate server: %q", s)
		}
		seen[s] = true
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	messenger := cfg.messenger
	if messenger == nil {
		messenger = notify.NewLogMessenger(logger.With("component", "messenger"))
	}

	return &PlayerPulse{
		servers:         cfg.servers,
		recipients:      cfg.recipients,
		pollingInterval: cfg.pollingInterval,
		cacheTTL:        cfg.cacheTTL,
		maxConcurrency:  cfg.maxConcurrency,
		fetcher:         cfg.fetcher,
		statusAPI:       cfg.statusAPI,
		fetchTimeout:    cfg.fetchTimeout,
		fetchRate:       cfg.fetchRate,
		messenger:       messenger,
		debounce:        cfg.debounce,
		retry:           cfg.retry,
		healthPort:      cfg.healthPort,
		logger:          logger,
		statusCallbacks: cfg.statusCallbacks,
	}, nil
}

// Start begins polling servers and delivering notifications.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - All servers are polled immediately, then at the configured interval
//   - Every real status change is queued for every recipient
//   - Queued notifications are sent after a quiet period, retried on failure
//   - The health check server listens on the configured port (unless 0)
//   - A messenger implementing [Inbox] registers and greets new senders
//
// On cancellation polling stops, in-flight retries are abandoned and
// undelivered notifications are dropped.
//
// Returns nil on graceful shutdown. Returns an error if the health check
// server fails to start.
func (pp *PlayerPulse) Start(ctx context.Context) error {
	pp.logger.Info("playerpulse starting", "server_count", len(pp.servers), "recipient_count", len(pp.recipients))
	pp.logger.Info("polling configured", "interval", pp.pollingInterval.String(), "cache_ttl", pp.cacheTTL.String())

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	statusStore := store.NewMemoryStore(pp.logger.With("component", "store"))

	if pp.healthPort > 0 {
		httpServer := server.NewServer(statusStore, pp.healthPort, pp.logger.With("component", "http"))
		if err := httpServer.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start health check server: %w", err)
		}
	}

	fetch := pp.fetcher
	if fetch == nil {
		client := poller.NewClient(pp.statusAPI, pp.fetchTimeout, pp.fetchRate)
		defer client.Close()
		fetch = client.FetchStatus
	}
	statusClient := poller.NewStatusClient(fetch, pp.cacheTTL, pp.logger.With("component", "status-client"))

	recipients := notify.NewRecipients(pp.recipients...)
	dispatcher := notify.NewDispatcher(pp.messenger, pp.debounce, pp.retry, pp.logger.With("component", "dispatcher"))
	notifier := notify.NewNotifier(statusStore, dispatcher, recipients, pp.logger.With("component", "notifier"))

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(runCtx); err != nil {
				pp.logger.Error("component stopped", "component", name, "error", err)
			}
		}()
	}

	var greetings taskGroup
	run("dispatcher", dispatcher.Run)
	run("notifier", notifier.Run)

	if inbox, ok := pp.messenger.(Inbox); ok {
		greeter := notify.NewGreeter(pp.messenger, recipients, pp.retry, pp.logger.With("component", "greeter"))
		inbox.OnMessage(func(msg InboundMessage) {
			// greeting retries must not block the receive loop
			greetings.Go(func() { greeter.Register(runCtx, msg) })
		})
	}
	if runner, ok := pp.messenger.(Runner); ok {
		run("messenger", runner.Run)
	}

	if len(pp.statusCallbacks) > 0 {
		// subscribe before polling starts so no change is missed
		updates := statusStore.Subscribe()
		run("callbacks", func(ctx context.Context) error {
			pp.consumeCallbacks(ctx, statusStore, updates)
			return nil
		})
	}

	scheduler := poller.NewScheduler(pp.servers, pp.pollingInterval, pp.maxConcurrency,
		statusClient, statusStore, pp.logger.With("component", "poller"))
	scheduler.Start(runCtx)

	<-ctx.Done()
	scheduler.Stop()
	cancel()
	wg.Wait()
	greetings.Close()
	pp.logger.Info("playerpulse stopped", "undelivered", dispatcher.Pending())
	return nil
}

// taskGroup runs short-lived goroutines and waits for them on Close.
// Go after Close is a no-op.
type taskGroup struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func (g *taskGroup) Go(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

func (g *taskGroup) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}

// consumeCallbacks invokes status callbacks for every published snapshot.
// The first snapshot of the subscription is the state at subscribe time,
// before any poll, and is skipped.
func (pp *PlayerPulse) consumeCallbacks(ctx context.Context, st store.Store, updates <-chan []ServerStatus) {
	defer st.Unsubscribe(updates)

	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if first {
				first = false
				continue
			}
			for _, cb := range pp.statusCallbacks {
				invokeCallbackSafe(cb, snapshot, pp.logger)
			}
		}
	}
}

// Servers returns a copy of the configured server addresses.
func (pp *PlayerPulse) Servers() []string {
	cp := make([]string, len(pp.servers))
	copy(cp, pp.servers)
	return cp
}

// PollingInterval returns the configured interval between polling cycles.
func (pp *PlayerPulse) PollingInterval() time.Duration {
	return pp.pollingInterval
}

// CacheTTL returns the configured status cache time-to-live.
func (pp *PlayerPulse) CacheTTL() time.Duration {
	return pp.cacheTTL
}

// HealthPort returns the health check port, or 0 if it is disabled.
func (pp *PlayerPulse) HealthPort() int {
	return pp.healthPort
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func([]ServerStatus), snapshot []ServerStatus, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
				"server_count", len(snapshot),
			)
		}
	}()

	// each callback gets its own copy
	cp := make([]ServerStatus, len(snapshot))
	for i, s := range snapshot {
		cp[i] = s.Clone()
	}
	cb(cp)
}
