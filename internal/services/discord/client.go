package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"loreforge/internal/services"
)

const (
	userAgent             = "loreforge-gate/1.0"
	defaultAPIBaseURL     = "https://discord.com/api/v10"
	defaultRequestTimeout = 20 * time.Second
	maxMessageLimit       = 100
)

// Config captures the Discord settings.
type Config struct {
	APIBaseURL     string
	BotToken       string
	TimeoutSeconds int
}

// Client talks to Discord webhooks and the bot REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLimiter overrides the request limiter (one request per 500ms, burst 2
// by default).
func WithLimiter(limiter *rate.Limiter) Option {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// New constructs a client.
func New(cfg Config, opts ...Option) *Client {
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	timeout := defaultRequestTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// EmbedFooter is the small print under an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Embed is a rich message block.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// WebhookMessage is the body posted to an incoming webhook.
type WebhookMessage struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

// User is a message author.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// Message is a channel message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Author    User   `json:"author"`
}

// PostWebhook posts msg to webhookURL. With wait set, Discord answers with
// the created message, which is returned; otherwise the zero Message is.
func (c *Client) PostWebhook(ctx context.Context, webhookURL string, msg WebhookMessage, wait bool) (Message, error) {
	target := NormalizeWebhookURL(webhookURL)
	if target == "" {
		return Message{}, services.Wrap(services.ErrConfiguration, "discord", "webhook", "webhook url is empty", nil)
	}
	if wait {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "wait=true"
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("encode webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return Message{}, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req, "webhook")
	if err != nil {
		return Message{}, err
	}
	var out Message
	if wait && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return Message{}, services.Wrap(services.ErrExternalTool, "discord", "webhook", "decode response", err)
		}
	}
	return out, nil
}

// ChannelMessages returns up to limit recent messages of channelID, newest
// first as Discord returns them.
func (c *Client) ChannelMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if strings.TrimSpace(c.cfg.BotToken) == "" || strings.TrimSpace(channelID) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "discord", "messages", "bot token and channel id are required", nil)
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages?%s", c.cfg.APIBaseURL,
		url.PathEscape(strings.TrimSpace(channelID)), url.Values{"limit": {strconv.Itoa(limit)}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+strings.TrimSpace(c.cfg.BotToken))

	raw, err := c.do(req, "messages")
	if err != nil {
		return nil, err
	}
	var out []Message
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "discord", "messages", "decode response", err)
	}
	return out, nil
}

func (c *Client) do(req *http.Request, operation string) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, services.Wrap(services.ErrTimeout, "discord", operation, "rate limiter", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "discord", operation, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "discord", operation, "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		if snippet == "" {
			snippet = "(empty)"
		}
		return nil, services.Wrap(services.ErrExternalTool, "discord", operation,
			fmt.Sprintf("http=%d body=%s", resp.StatusCode, snippet), nil)
	}
	return body, nil
}
