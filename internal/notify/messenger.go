package notify

import (
	"context"
	"errors"
	"log/slog"
)

// Messenger is the outbound side of a chat platform.
//
// ResolveRecipient turns a recipient ID (a user ID, an open_id, ...) into an
// address that Send accepts, such as a direct-message channel ID.
// Both methods may fail transiently; the [Dispatcher] retries them.
type Messenger interface {
	ResolveRecipient(ctx context.Context, recipientID string) (string, error)
	Send(ctx context.Context, address, body string) error
}

// InboundMessage is a direct message received from a user.
type InboundMessage struct {
	SenderID   string
	SenderName string
	Body       string
}

// Inbox is implemented by messengers that can receive direct messages.
// The handler is called from the messenger's receive loop and must not block.
type Inbox interface {
	OnMessage(handler func(InboundMessage))
}

// Runner is implemented by messengers that hold a long-lived connection.
// Run blocks until ctx is cancelled or the connection fails for good.
type Runner interface {
	Run(ctx context.Context) error
}

// LogMessenger is a [Messenger] that only logs what it would send.
type LogMessenger struct {
	logger *slog.Logger
}

// NewLogMessenger returns a [LogMessenger]. If logger is nil, [slog.Default]
// is used.
func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMessenger{logger: logger}
}

// ResolveRecipient returns recipientID unchanged.
func (m *LogMessenger) ResolveRecipient(_ context.Context, recipientID string) (string, error) {
	if recipientID == "" {
		return "", errors.New("empty recipient id")
	}
	return recipientID, nil
}

// Send logs body at info level.
func (m *LogMessenger) Send(_ context.Context, address, body string) error {
	m.logger.Info("message", "recipient", address, "body", body)
	return nil
}
