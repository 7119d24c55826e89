package playerpulse

import (
	"log/slog"

	"github.com/jpalmerr/playerpulse/internal/notify"
	"github.com/jpalmerr/playerpulse/internal/poller"
	"github.com/jpalmerr/playerpulse/internal/store"
)

// Player is a single player listed in a server's roster.
type Player = store.Player

// ServerStatus is the latest known state of one Minecraft server.
//
// Players is nil when the status API did not list players and empty when
// nobody is online.
type ServerStatus = store.ServerStatus

// StatusResponse is a validated status document, as returned by a [Fetcher].
type StatusResponse = poller.StatusResponse

// StatusPlayers is the players section of a [StatusResponse].
type StatusPlayers = poller.StatusPlayers

// Fetcher retrieves the status document for a server address.
//
// The default fetcher queries the mcsrvstat.us v3 API. Custom fetchers are
// called within a panic recovery boundary; a panicking or failing fetcher
// only affects its own server for that tick.
type Fetcher = poller.Fetcher

// Messenger delivers notifications to recipients on a chat platform.
//
// A Messenger that also implements [Inbox] lets users register themselves by
// sending the bot a direct message. One that implements [Runner] is run for
// the lifetime of [PlayerPulse.Start].
type Messenger = notify.Messenger

// InboundMessage is a direct message received by an [Inbox].
type InboundMessage = notify.InboundMessage

// Inbox is implemented by messengers that receive direct messages.
type Inbox = notify.Inbox

// Runner is implemented by messengers that hold a long-lived connection.
type Runner = notify.Runner

// RetryPolicy controls how delivery is retried. MaxAttempts == 0 retries
// until success or shutdown; attempts are at least Delay apart.
type RetryPolicy = notify.RetryPolicy

// DefaultRetryPolicy retries forever, five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return notify.DefaultRetryPolicy()
}

// NewLogMessenger returns a [Messenger] that only logs what it would send.
func NewLogMessenger(logger *slog.Logger) Messenger {
	return notify.NewLogMessenger(logger)
}
