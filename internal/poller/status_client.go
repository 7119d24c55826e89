package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/playerpulse/internal/cache"
	"github.com/jpalmerr/playerpulse/internal/store"
)

// Fetcher retrieves the status document for a server.
//
// [Client.FetchStatus] is the production implementation; tests inject fakes.
type Fetcher func(ctx context.Context, server string) (*StatusResponse, error)

// OnlineResult is the outcome of [StatusClient.OnlinePlayers].
// Online is meaningful only when Success is true.
type OnlineResult struct {
	Success bool
	Online  int
}

// PlayersResult is the outcome of [StatusClient.PlayersList].
//
// Players is empty (never nil) on success when the document had no roster;
// Listed distinguishes that case from a roster that is known to be empty.
type PlayersResult struct {
	Success bool
	Players []store.Player
	Listed  bool
}

// StatusClient answers player-count and roster queries for servers, sharing
// one cached status document per server between both projections.
type StatusClient struct {
	cache  *cache.Cache[*StatusResponse]
	logger *slog.Logger
	now    func() time.Time
}

// NewStatusClient creates a [StatusClient] that caches fetch results for ttl.
//
// Documents are validated once, when fetched; an invalid document counts as a
// fetch failure and is never cached. Panics inside fetch are recovered.
func NewStatusClient(fetch Fetcher, ttl time.Duration, logger *slog.Logger) *StatusClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &StatusClient{
		logger: logger,
		now:    time.Now,
	}
	c.cache = cache.New(ttl, func(ctx context.Context, server string) (*StatusResponse, error) {
		return c.safeFetch(ctx, fetch, server)
	}, logger.With("component", "status-cache"))
	return c
}

// OnlinePlayers returns the number of players online on server.
func (c *StatusClient) OnlinePlayers(ctx context.Context, server string) OnlineResult {
	resp, err := c.cache.Get(ctx, server, c.now())
	if err != nil {
		return OnlineResult{}
	}
	return OnlineResult{Success: true, Online: resp.Players.Online}
}

// PlayersList returns the roster of server.
func (c *StatusClient) PlayersList(ctx context.Context, server string) PlayersResult {
	resp, err := c.cache.Get(ctx, server, c.now())
	if err != nil {
		return PlayersResult{}
	}
	if resp.Players.List == nil {
		return PlayersResult{Success: true, Players: []store.Player{}}
	}
	players := make([]store.Player, len(resp.Players.List))
	copy(players, resp.Players.List)
	return PlayersResult{Success: true, Players: players, Listed: true}
}

// safeFetch calls fetch with panic recovery and validates the result.
// A recovered panic is logged with a correlation ID and returned as an error.
func (c *StatusClient) safeFetch(ctx context.Context, fetch Fetcher, server string) (resp *StatusResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			c.logger.Error("status fetcher panic",
				"correlation_id", correlationID,
				"server", server,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			resp = nil
			err = fmt.Errorf("status fetcher panic (correlation_id: %s)", correlationID)
		}
	}()

	resp, err = fetch(ctx, server)
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	return resp, nil
}
