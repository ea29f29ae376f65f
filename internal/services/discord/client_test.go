package discord_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"loreforge/internal/services"
	"loreforge/internal/services/discord"
)

func newClient(baseURL, token string) *discord.Client {
	return discord.New(discord.Config{APIBaseURL: baseURL, BotToken: token, TimeoutSeconds: 5},
		discord.WithLimiter(rate.NewLimiter(rate.Inf, 1)))
}

func TestPostWebhookWaitReturnsMessage(t *testing.T) {
	var got discord.WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/webhooks/1/token" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Fatalf("expected wait=true, got %s", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"id":"9001","content":"hi"}`))
	}))
	defer server.Close()

	client := newClient(server.URL, "")
	msg, err := client.PostWebhook(context.Background(), `"`+server.URL+`/api/webhooks/1/token"`, discord.WebhookMessage{
		Username: "gate",
		Content:  "hello",
		Embeds:   []discord.Embed{{Title: "Request", Fields: []discord.EmbedField{{Name: "Hook", Value: "x"}}}},
	}, true)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.ID != "9001" {
		t.Fatalf("unexpected message %#v", msg)
	}
	if got.Username != "gate" || len(got.Embeds) != 1 || got.Embeds[0].Fields[0].Name != "Hook" {
		t.Fatalf("unexpected payload %#v", got)
	}
}

func TestPostWebhookWithoutWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Fatalf("unexpected query %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	msg, err := newClient(server.URL, "").PostWebhook(context.Background(), server.URL+"/api/webhooks/1/t", discord.WebhookMessage{Content: "x"}, false)
	if err != nil || msg.ID != "" {
		t.Fatalf("unexpected result %#v, %v", msg, err)
	}
}

func TestPostWebhookRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Unknown Webhook"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newClient(server.URL, "").PostWebhook(context.Background(), server.URL+"/api/webhooks/1/t", discord.WebhookMessage{Content: "x"}, true)
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "http=404") {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestChannelMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/42/messages" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "80" {
			t.Fatalf("unexpected limit %q", r.URL.Query().Get("limit"))
		}
		if auth := r.Header.Get("Authorization"); auth != "Bot secret" {
			t.Fatalf("unexpected auth %q", auth)
		}
		_, _ = w.Write([]byte(`[{"id":"2","content":"approve","author":{"id":"u1"}},{"id":"1","content":"hello","author":{"id":"u2"}}]`))
	}))
	defer server.Close()

	msgs, err := newClient(server.URL, "secret").ChannelMessages(context.Background(), "42", 80)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Author.ID != "u1" || msgs[1].Content != "hello" {
		t.Fatalf("unexpected messages %#v", msgs)
	}
}

func TestChannelMessagesRequiresCredentials(t *testing.T) {
	_, err := newClient("http://127.0.0.1:1", "").ChannelMessages(context.Background(), "42", 10)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestWebhookURLHelpers(t *testing.T) {
	if got := discord.NormalizeWebhookURL(" 'https://discordapp.com/api/webhooks/1/x' "); got != "https://discord.com/api/webhooks/1/x" {
		t.Fatalf("unexpected normalized url %q", got)
	}
	placeholders := []string{
		"",
		"https://discord.com/api/webhooks/YOUR_WEBHOOK",
		"https://discord.com/api/webhooks/...",
		"ftp://discord.com/api/webhooks/1/x",
		"https://discord.com/channels/1",
		"REPLACE_ME",
	}
	for _, u := range placeholders {
		if !discord.LooksLikePlaceholder(u) {
			t.Fatalf("expected %q to be a placeholder", u)
		}
	}
	if discord.LooksLikePlaceholder("https://discord.com/api/webhooks/123/abc") {
		t.Fatal("real webhook flagged as placeholder")
	}
}

func TestShort(t *testing.T) {
	if got := discord.Short("  a   b  c ", 10); got != "a b c" {
		t.Fatalf("unexpected %q", got)
	}
	if got := discord.Short("alpha beta gamma", 12); got != "alpha beta…" {
		t.Fatalf("unexpected %q", got)
	}
}
