package poller

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jpalmerr/playerpulse/internal/store"
)

// Updater receives derived server statuses. [store.Store] satisfies it.
type Updater interface {
	Update(status store.ServerStatus) bool
}

// Scheduler polls every configured server on a fixed interval and writes the
// derived [store.ServerStatus] into an [Updater].
//
// Each tick polls all servers concurrently through a bounded worker pool and
// waits for the tick to finish before the next one starts, so updates for a
// single server are always applied in tick order. A failed server is logged
// and skipped; it never affects the others.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	servers        []string
	interval       time.Duration
	maxConcurrency int
	client         *StatusClient
	updater        Updater
	logger         *slog.Logger
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a new polling [Scheduler].
//
// Parameters:
//   - servers: Server addresses to poll
//   - interval: Time between polling cycles
//   - maxConcurrency: Maximum number of concurrent fetches per tick
//   - client: Status client (cache-or-fetch) used for every read
//   - updater: Destination of derived statuses, normally the store
//   - logger: Logger for poll events
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(servers []string, interval time.Duration, maxConcurrency int, client *StatusClient, updater Updater, logger *slog.Logger) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		servers:        servers,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		client:         client,
		updater:        updater,
		logger:         logger,
	}
}

// Start begins the polling loop in a background goroutine.
//
// Start is non-blocking. The scheduler polls all servers immediately, then
// once per interval until [Scheduler.Stop] is called or ctx is cancelled.
// Start is idempotent; if Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		s.PollAll(pollCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				s.PollAll(pollCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for the in-flight tick to complete.
//
// Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// PollAll runs one tick: every server is polled, respecting maxConcurrency,
// and PollAll returns once all of them are done.
func (s *Scheduler) PollAll(ctx context.Context) {
	jobs := make(chan string, len(s.servers))

	var wg sync.WaitGroup
	for i := 0; i < s.maxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for server := range jobs {
				if ctx.Err() != nil {
					return
				}
				s.pollServer(ctx, server)
			}
		}()
	}

	for _, server := range s.servers {
		jobs <- server
	}
	close(jobs)

	wg.Wait()
}

// pollServer reads both projections for server and updates the store.
func (s *Scheduler) pollServer(ctx context.Context, server string) {
	online := s.client.OnlinePlayers(ctx, server)
	if !online.Success {
		s.logger.Warn("could not read number of players", "server", server)
		return
	}
	s.logger.Info("players online", "server", server, "online", online.Online)

	players := s.client.PlayersList(ctx, server)
	if !players.Success {
		s.logger.Warn("could not read player list", "server", server)
		return
	}

	status := store.ServerStatus{Server: server, Online: online.Online}
	if players.Listed {
		status.Players = players.Players
		if len(players.Players) > 0 {
			s.logger.Info("players listed", "server", server, "players", playerNames(players.Players))
		}
	} else if online.Online > 0 {
		s.logger.Warn("can't list names of online players", "server", server)
	}

	if s.updater.Update(status) {
		s.logger.Info("server status changed", "server", server, "online", status.Online)
	}
}

func playerNames(players []store.Player) string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}
