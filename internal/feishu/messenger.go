// Package feishu implements the Feishu (Lark) transport for PlayerPulse.
//
// Notifications are sent as text messages to users' open_ids through the
// IM API. Direct messages are received over the long-lived websocket event
// connection, so no public callback endpoint is needed.
package feishu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/jpalmerr/playerpulse/internal/notify"
)

// Messenger implements [notify.Messenger], [notify.Inbox] and
// [notify.Runner] on top of a Feishu app.
type Messenger struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	logger    *slog.Logger

	mu      sync.RWMutex
	handler func(notify.InboundMessage)
}

var (
	_ notify.Messenger = (*Messenger)(nil)
	_ notify.Inbox     = (*Messenger)(nil)
	_ notify.Runner    = (*Messenger)(nil)
)

// NewMessenger creates a messenger for the app identified by appID and
// appSecret. If logger is nil, [slog.Default] is used.
func NewMessenger(appID, appSecret string, logger *slog.Logger) *Messenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messenger{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret),
		logger:    logger,
	}
}

// ResolveRecipient returns the open_id itself; Feishu addresses users directly.
func (m *Messenger) ResolveRecipient(_ context.Context, recipientID string) (string, error) {
	if recipientID == "" {
		return "", errors.New("empty open_id")
	}
	return recipientID, nil
}

// Send posts body as a text message to the user with open_id address.
func (m *Messenger) Send(ctx context.Context, address, body string) error {
	content, err := json.Marshal(map[string]string{"text": body})
	if err != nil {
		return err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeOpenId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(address).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("send message error: code %d: %s", resp.Code, resp.Msg)
	}
	return nil
}

// OnMessage sets the handler for incoming direct messages.
func (m *Messenger) OnMessage(handler func(notify.InboundMessage)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Run opens the websocket event connection and blocks until ctx is cancelled.
func (m *Messenger) Run(ctx context.Context) error {
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			m.handleMessage(event)
			return nil
		})

	wsCli := larkws.NewClient(m.appID, m.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	m.logger.Info("starting feishu event connection")
	errCh := make(chan error, 1)
	go func() { errCh <- wsCli.Start(ctx) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("feishu event connection: %w", err)
	}
}

func (m *Messenger) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil || event.Event.Sender == nil {
		return
	}
	sender := event.Event.Sender
	if value(sender.SenderType) == "app" || sender.SenderId == nil {
		return
	}
	msg := event.Event.Message
	if value(msg.ChatType) == "group" {
		return
	}

	openID := value(sender.SenderId.OpenId)
	if openID == "" {
		return
	}

	var body string
	if value(msg.MessageType) == "text" {
		var text struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(value(msg.Content)), &text); err != nil {
			m.logger.Warn("failed to parse message content", "error", err)
		}
		body = text.Text
	}

	m.mu.RLock()
	handler := m.handler
	m.mu.RUnlock()
	if handler == nil {
		return
	}
	handler(notify.InboundMessage{SenderID: openID, Body: body})
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
