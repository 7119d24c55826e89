package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jpalmerr/playerpulse/internal/notify"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// intentDirectMessages subscribes to MESSAGE_CREATE events in DMs.
const intentDirectMessages = 1 << 12

var errReconnect = errors.New("gateway requested reconnect")

type gatewayPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
}

type outgoingPayload struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type identifyData struct {
	Token      string             `json:"token"`
	Intents    int                `json:"intents"`
	Properties identifyProperties `json:"properties"`
}

type identifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type messageCreate struct {
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
	Content   string `json:"content"`
	Author    struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Bot        bool   `json:"bot"`
	} `json:"author"`
}

// Gateway receives direct messages over the Discord websocket gateway.
//
// Run keeps a session open, heartbeating at the interval the gateway asks
// for, and reconnects with a doubling backoff when the connection drops.
type Gateway struct {
	client *Client
	token  string
	dialer websocket.Dialer
	logger *slog.Logger

	reconnectInterval    time.Duration
	maxReconnectInterval time.Duration

	mu      sync.RWMutex
	handler func(notify.InboundMessage)
}

// NewGateway creates a gateway client. client is used to look up the
// gateway URL. If logger is nil, [slog.Default] is used.
func NewGateway(client *Client, token string, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client:               client,
		token:                token,
		dialer:               websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:               logger,
		reconnectInterval:    time.Second,
		maxReconnectInterval: time.Minute,
	}
}

// OnMessage sets the handler for direct messages from non-bot users.
func (g *Gateway) OnMessage(handler func(notify.InboundMessage)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handler = handler
}

// Run connects and serves the gateway until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	backoff := g.reconnectInterval
	for {
		connected, err := g.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = g.reconnectInterval
		}
		g.logger.Warn("gateway disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > g.maxReconnectInterval {
			backoff = g.maxReconnectInterval
		}
	}
}

// session runs one gateway connection. connected reports whether the
// handshake completed, which resets the reconnect backoff.
func (g *Gateway) session(ctx context.Context) (connected bool, err error) {
	gatewayURL, err := g.client.GatewayURL(ctx)
	if err != nil {
		return false, err
	}

	conn, _, err := g.dialer.DialContext(ctx, gatewayURL+"?v=10&encoding=json", nil)
	if err != nil {
		return false, fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()

	var hello gatewayPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return false, fmt.Errorf("read hello: %w", err)
	}
	if hello.Op != opHello {
		return false, fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var helloData struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(hello.D, &helloData); err != nil || helloData.HeartbeatInterval <= 0 {
		return false, fmt.Errorf("invalid hello payload: %s", hello.D)
	}

	var writeMu sync.Mutex
	write := func(p outgoingPayload) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(p)
	}

	err = write(outgoingPayload{Op: opIdentify, D: identifyData{
		Token:      g.token,
		Intents:    intentDirectMessages,
		Properties: identifyProperties{OS: "linux", Browser: "playerpulse", Device: "playerpulse"},
	}})
	if err != nil {
		return false, fmt.Errorf("identify: %w", err)
	}
	g.logger.Info("connected to gateway", "heartbeat_interval_ms", helloData.HeartbeatInterval)

	var seqMu sync.Mutex
	var seq *int64
	heartbeat := func() error {
		seqMu.Lock()
		s := seq
		seqMu.Unlock()
		return write(outgoingPayload{Op: opHeartbeat, D: s})
	}

	go func() {
		ticker := time.NewTicker(time.Duration(helloData.HeartbeatInterval) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-sessionCtx.Done():
				return
			case <-ticker.C:
				if err := heartbeat(); err != nil {
					g.logger.Warn("heartbeat failed", "error", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		var p gatewayPayload
		if err := conn.ReadJSON(&p); err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if p.S != nil {
			seqMu.Lock()
			seq = p.S
			seqMu.Unlock()
		}

		switch p.Op {
		case opDispatch:
			if p.T == "MESSAGE_CREATE" {
				g.handleMessage(p.D)
			}
		case opHeartbeat:
			if err := heartbeat(); err != nil {
				return true, fmt.Errorf("heartbeat: %w", err)
			}
		case opReconnect, opInvalidSession:
			return true, errReconnect
		case opHeartbeatAck:
		}
	}
}

func (g *Gateway) handleMessage(data json.RawMessage) {
	var msg messageCreate
	if err := json.Unmarshal(data, &msg); err != nil {
		g.logger.Warn("failed to parse message", "error", err)
		return
	}
	if msg.Author.Bot || msg.GuildID != "" || msg.Author.ID == "" {
		return
	}

	g.mu.RLock()
	handler := g.handler
	g.mu.RUnlock()
	if handler == nil {
		return
	}

	name := msg.Author.GlobalName
	if name == "" {
		name = msg.Author.Username
	}
	handler(notify.InboundMessage{
		SenderID:   msg.Author.ID,
		SenderName: name,
		Body:       msg.Content,
	})
}
