package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"loreforge/internal/config"
	"loreforge/internal/notifications"
	"loreforge/internal/services/discord"
)

func TestNewServiceReturnsNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Discord.WebhookURL = "https://discord.com/api/webhooks/YOUR_WEBHOOK"
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventPublishCompleted, notifications.Payload{"day": "2024-04-02"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestDiscordNotifierFormatsEvents(t *testing.T) {
	tests := []struct {
		name          string
		event         notifications.Event
		payload       notifications.Payload
		expectContent string
	}{
		{
			name:          "approval accepted",
			event:         notifications.EventApprovalAccepted,
			payload:       notifications.Payload{"day": "2024-04-02", "content_id": "bgp-x", "by": "42"},
			expectContent: "✅ Approval accepted for `2024-04-02` (`bgp-x`) by <@42>.",
		},
		{
			name:          "rejected",
			event:         notifications.EventApprovalRejected,
			payload:       notifications.Payload{"day": "2024-04-02", "content_id": "bgp-x", "by": "7"},
			expectContent: "🛑 Rejected `2024-04-02` (`bgp-x`) by <@7>.",
		},
		{
			name:          "publish failed",
			event:         notifications.EventPublishFailed,
			payload:       notifications.Payload{"day": "2024-04-02", "content_id": "bgp-x", "rc": 4},
			expectContent: "❌ Publish failed for `2024-04-02` (`bgp-x`), rc=4. Check logs.",
		},
		{
			name:          "publish complete",
			event:         notifications.EventPublishCompleted,
			payload:       notifications.Payload{"day": "2024-04-02", "content_id": "bgp-x", "url": "https://www.youtube.com/watch?v=abc"},
			expectContent: "🎉 Publish complete for `2024-04-02` (`bgp-x`).\nhttps://www.youtube.com/watch?v=abc",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured discord.WebhookMessage
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
					t.Fatalf("decode: %v", err)
				}
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			client := discord.New(discord.Config{}, discord.WithLimiter(rate.NewLimiter(rate.Inf, 1)))
			svc := notifications.NewDiscordNotifier(client, server.URL+"/api/webhooks/1/t")
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if captured.Content != tc.expectContent {
				t.Fatalf("expected content %q, got %q", tc.expectContent, captured.Content)
			}
			if captured.Username != "Loreforge Publish Gate" {
				t.Fatalf("unexpected username %q", captured.Username)
			}
		})
	}
}

func TestDiscordNotifierHealthEmbed(t *testing.T) {
	var captured discord.WebhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := discord.New(discord.Config{}, discord.WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	svc := notifications.NewDiscordNotifier(client, server.URL+"/api/webhooks/1/t")
	payload := notifications.Payload{"day": "2024-04-02", "overall": "GREEN", "atom": "validated", "gate": "published", "registry": "ok"}
	if err := svc.Publish(context.Background(), notifications.EventHealthReport, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(captured.Embeds) != 1 {
		t.Fatalf("expected one embed, got %#v", captured)
	}
	embed := captured.Embeds[0]
	if embed.Title != "🟢 Loreforge Pipeline Health" || embed.Color != 0x2ECC71 {
		t.Fatalf("unexpected embed %#v", embed)
	}
	if embed.Fields[4].Name != "Gate" || embed.Fields[4].Value != "published" {
		t.Fatalf("unexpected gate field %#v", embed.Fields[4])
	}
}

func TestDiscordNotifierIgnoresUnknownEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for unknown event: %s", r.URL.String())
	}))
	defer server.Close()

	client := discord.New(discord.Config{}, discord.WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	svc := notifications.NewDiscordNotifier(client, server.URL+"/api/webhooks/1/t")
	if err := svc.Publish(context.Background(), notifications.Event("mystery"), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
	auth bool
}

func TestEmailNotifierSendsAlerts(t *testing.T) {
	var sent []capturedMail
	send := func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg), auth: auth != nil})
		return nil
	}
	cfg := config.Email{SMTPHost: "mail.example.com", SMTPPort: 587, Username: "bot", Password: "pw", To: []string{"ops@example.com"}}
	svc := notifications.NewEmailNotifier(cfg, send)

	if err := svc.Publish(context.Background(), notifications.EventApprovalAccepted, notifications.Payload{"day": "2024-04-02"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("approvals should not be mailed, got %d", len(sent))
	}

	err := svc.Publish(context.Background(), notifications.EventHealthReport, notifications.Payload{
		"day": "2024-04-02", "overall": "RED", "atom": "failed", "details": "atom failed validation",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(sent))
	}
	mail := sent[0]
	if mail.addr != "mail.example.com:587" || mail.from != "ops@example.com" || !mail.auth {
		t.Fatalf("unexpected envelope %#v", mail)
	}
	if !strings.Contains(mail.msg, "Subject: [Loreforge Pipeline] RED | ") || !strings.Contains(mail.msg, "| 2024-04-02\r\n") {
		t.Fatalf("unexpected subject in %q", mail.msg)
	}
	if !strings.Contains(mail.msg, "atom=failed\r\n") || !strings.Contains(mail.msg, "atom failed validation") {
		t.Fatalf("unexpected body %q", mail.msg)
	}
}

type failingService struct{ err error }

func (f failingService) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return f.err
}

type countingService struct{ calls *int }

func (c countingService) Publish(context.Context, notifications.Event, notifications.Payload) error {
	*c.calls++
	return nil
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	svc := notifications.Multi(failingService{err: boom}, countingService{calls: &calls})
	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected second notifier to run, got %d calls", calls)
	}
}
