package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"loreforge/internal/logging"
	"loreforge/internal/services"
)

const (
	stageName       = "polish"
	defaultEndpoint = "https://api.openai.com/v1/chat/completions"
	defaultTimeout  = 60 * time.Second
	defaultAttempts = 5
	maxErrorBody    = 512
)

// Config captures the runtime settings required to talk to the model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	TimeoutSeconds int
	MaxAttempts    int
}

// Client talks to an OpenAI-compatible chat completion endpoint and always
// asks for a JSON object reply.
type Client struct {
	apiKey      string
	endpoint    string
	model       string
	temperature float64
	attempts    int

	http    *http.Client
	backoff backoff
	wait    func(context.Context, time.Duration) error
	logger  *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithBackoff overrides the retry delays. A zero base disables waiting.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.backoff = backoff{base: base, ceiling: ceiling}
	}
}

// WithWait replaces the context-aware sleep between attempts.
func WithWait(wait func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if wait != nil {
			c.wait = wait
		}
	}
}

// WithLogger attaches a logger for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "llm")
	}
}

// NewClient builds a client from cfg, filling in defaults for blank fields.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		endpoint:    strings.TrimSpace(cfg.BaseURL),
		model:       strings.TrimSpace(cfg.Model),
		temperature: cfg.Temperature,
		attempts:    cfg.MaxAttempts,
		http:        &http.Client{Timeout: timeout},
		backoff:     defaultBackoff,
		wait:        sleepContext,
		logger:      logging.NewNop(),
	}
	if c.endpoint == "" {
		c.endpoint = defaultEndpoint
	}
	if c.attempts <= 0 {
		c.attempts = defaultAttempts
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the two prompts and returns the model's JSON reply
// verbatim. Transient failures are retried; the final error carries
// services.ErrTimeout or services.ErrExternalTool.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case c.apiKey == "":
		return "", services.Wrap(services.ErrConfiguration, stageName, "complete", "api key required", nil)
	case systemPrompt == "" || userPrompt == "":
		return "", services.Wrap(services.ErrValidation, stageName, "complete", "system and user prompts required", nil)
	}

	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    c.temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "encode request", "", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		content, err := c.post(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		delay, ok := c.retryDelay(ctx, err, attempt)
		if !ok {
			break
		}
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "polish request retry", "polish_retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", c.attempts),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldImpact, "script polish delayed"),
			logging.String(logging.FieldErrorHint, "check model endpoint availability and rate limits"),
		)
		if err := c.wait(ctx, delay); err != nil {
			return "", services.Wrap(services.ErrTimeout, stageName, "complete", "cancelled while waiting to retry", err)
		}
	}
	return "", classify(lastErr)
}

// Decode calls Complete and unmarshals the reply into target. The raw reply
// is returned even when decoding fails so callers can log it.
func (c *Client) Decode(ctx context.Context, systemPrompt, userPrompt string, target any) (string, error) {
	content, err := c.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if err := DecodeJSON(content, target); err != nil {
		return content, services.Wrap(services.ErrExternalTool, stageName, "decode reply", "", err)
	}
	return content, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &statusError{
			code:       resp.StatusCode,
			body:       snippet(string(raw), maxErrorBody),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	var decoded completionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil && strings.TrimSpace(decoded.Error.Message) != "" {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	return decoded.content()
}

// classify tags the final failure so callers can route it.
func classify(err error) error {
	if err == nil {
		return services.Wrap(services.ErrExternalTool, stageName, "complete", "no attempts made", nil)
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return services.Wrap(services.ErrTimeout, stageName, "complete", "", err)
	}
	return services.Wrap(services.ErrExternalTool, stageName, "complete", "", err)
}

type completionRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// content returns the first non-blank choice. A blank reply is an
// emptyReplyError so the caller can retry it.
func (r completionResponse) content() (string, error) {
	if len(r.Choices) == 0 {
		return "", &emptyReplyError{reason: "no choices"}
	}
	for _, choice := range r.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			return text, nil
		}
	}
	first := r.Choices[0]
	reason := "finish_reason=" + first.FinishReason
	if refusal := strings.TrimSpace(first.Message.Refusal); refusal != "" {
		reason += " refusal=" + snippet(refusal, 120)
	}
	return "", &emptyReplyError{reason: reason}
}

type emptyReplyError struct {
	reason string
}

func (e *emptyReplyError) Error() string {
	return "empty reply (" + e.reason + ")"
}

type statusError struct {
	code       int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusRequestTimeout ||
		e.code == http.StatusTooManyRequests ||
		e.code >= http.StatusInternalServerError
}
