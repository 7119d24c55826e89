package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIBase is the Discord REST API root.
const DefaultAPIBase = "https://discord.com/api/v10"

// maxErrorBody caps how much of an error response is kept for the error message.
const maxErrorBody = 4 * 1024

// APIError is returned for any non-2xx response from the REST API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client is a minimal Discord REST client authenticated as a bot.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a REST client. An empty baseURL uses [DefaultAPIBase].
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBase
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// CreateDM opens (or reuses) the direct-message channel with userID and
// returns its channel ID.
func (c *Client) CreateDM(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("create dm: empty user id")
	}
	var channel struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/users/@me/channels", map[string]string{"recipient_id": userID}, &channel)
	if err != nil {
		return "", fmt.Errorf("create dm with %s: %w", userID, err)
	}
	if channel.ID == "" {
		return "", fmt.Errorf("create dm with %s: response has no channel id", userID)
	}
	return channel.ID, nil
}

// CreateMessage posts content to channelID.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, nil); err != nil {
		return fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return nil
}

// GatewayURL returns the websocket URL the bot should connect to.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	var gw struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/gateway/bot", nil, &gw); err != nil {
		return "", fmt.Errorf("get gateway: %w", err)
	}
	if gw.URL == "" {
		return "", fmt.Errorf("get gateway: empty url")
	}
	return gw.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/jpalmerr/playerpulse, 1.0)")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
