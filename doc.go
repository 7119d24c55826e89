// Package playerpulse watches Minecraft servers and tells people when
// players join or leave.
//
// PlayerPulse polls a status API for each configured server, keeps the
// latest status per server, and sends a chat message to every recipient when
// a server's player count or roster really changes. Unchanged polls never
// produce a message, and bursts of changes are batched.
//
// # Quick Start
//
//	pp, _ := playerpulse.New(
//	    playerpulse.WithServers("mc.example.com"),
//	    playerpulse.WithRecipients("123456789012345678"),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	pp.Start(ctx) // blocks until context is cancelled
//
// Without [WithMessenger], notifications are only logged. The cmd/playerpulse
// binary wires Discord and Feishu messengers from a configuration file.
//
// # Configuration
//
// PlayerPulse uses the functional options pattern for configuration:
//
//	pp, err := playerpulse.New(
//	    playerpulse.WithServers("mc.example.com", "play.example.org"),
//	    playerpulse.WithPollingInterval(30 * time.Second),
//	    playerpulse.WithCacheTTL(30 * time.Second),
//	    playerpulse.WithMessenger(messenger),
//	    playerpulse.WithRetryPolicy(playerpulse.RetryPolicy{MaxAttempts: 5, Delay: 10 * time.Second}),
//	)
//
// # Pipeline
//
// Each tick polls every server through a TTL cache that serves the last good
// document when a refresh fails. The derived [ServerStatus] goes into a store
// that publishes only on real change. A notifier turns each published change
// into one message per recipient; a dispatcher deduplicates identical pending
// messages, waits for a quiet period and delivers the batch with retries.
//
// # Architecture
//
// PlayerPulse consists of several internal packages (under internal/):
//
//   - internal/cache: Generic TTL cache with stale-on-error
//   - internal/poller: Status API client, cached projections and scheduler
//   - internal/store: In-memory status store with change-gated pub/sub
//   - internal/notify: Messages, dispatcher, notifier and retry policy
//   - internal/discord, internal/feishu: Chat platform messengers
//   - internal/server: Health check, REST API and Server-Sent Events
//
// The internal packages are not part of the public API and may change
// without notice.
package playerpulse
