package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpalmerr/playerpulse/internal/notify"
)

// Messenger delivers notifications as Discord direct messages and receives
// DMs through the gateway. It implements [notify.Messenger], [notify.Inbox]
// and [notify.Runner].
type Messenger struct {
	client  *Client
	gateway *Gateway
}

var (
	_ notify.Messenger = (*Messenger)(nil)
	_ notify.Inbox     = (*Messenger)(nil)
	_ notify.Runner    = (*Messenger)(nil)
)

// NewMessenger creates a bot messenger authenticated with token.
// An empty apiBase uses [DefaultAPIBase].
func NewMessenger(apiBase, token string, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	client := NewClient(apiBase, token, 15*time.Second)
	return &Messenger{
		client:  client,
		gateway: NewGateway(client, token, logger.With("component", "discord-gateway")),
	}
}

// ResolveRecipient returns the DM channel ID for the user recipientID.
func (m *Messenger) ResolveRecipient(ctx context.Context, recipientID string) (string, error) {
	return m.client.CreateDM(ctx, recipientID)
}

// Send posts body to the DM channel address.
func (m *Messenger) Send(ctx context.Context, address, body string) error {
	return m.client.CreateMessage(ctx, address, body)
}

// OnMessage sets the handler for incoming direct messages.
func (m *Messenger) OnMessage(handler func(notify.InboundMessage)) {
	m.gateway.OnMessage(handler)
}

// Run serves the gateway until ctx is cancelled.
func (m *Messenger) Run(ctx context.Context) error {
	return m.gateway.Run(ctx)
}
