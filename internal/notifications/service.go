package notifications

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"loreforge/internal/config"
	"loreforge/internal/services/discord"
)

const gateUsername = "Loreforge Publish Gate"

// Event enumerates pipeline milestones that can be notified.
type Event string

// Pipeline events.
const (
	EventApprovalAccepted Event = "approval_accepted"
	EventApprovalRejected Event = "approval_rejected"
	EventApprovalQueued   Event = "approval_queued"
	EventPublishStarted   Event = "publish_started"
	EventPublishCompleted Event = "publish_completed"
	EventPublishFailed    Event = "publish_failed"
	EventAtomFailed       Event = "atom_failed"
	EventHealthReport     Event = "health_report"
	EventTest             Event = "test"
)

// Payload carries event details keyed by name.
type Payload map[string]any

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) textOr(key, fallback string) string {
	if v := p.text(key); v != "" {
		return v
	}
	return fallback
}

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds the configured notifiers: the Discord webhook when it
// is set to a real URL, and SMTP email when a host and recipients are set.
func NewService(cfg *config.Config) Service {
	var notifiers []Service
	if url := discord.NormalizeWebhookURL(cfg.Discord.WebhookURL); !discord.LooksLikePlaceholder(url) {
		client := discord.New(discord.Config{
			APIBaseURL:     cfg.Discord.APIBaseURL,
			TimeoutSeconds: cfg.Discord.RequestTimeout,
		})
		notifiers = append(notifiers, NewDiscordNotifier(client, url))
	}
	if cfg.EmailConfigured() {
		notifiers = append(notifiers, NewEmailNotifier(cfg.Email, nil))
	}
	return Multi(notifiers...)
}

// Multi fans an event out to every notifier and joins their errors.
func Multi(notifiers ...Service) Service {
	switch len(notifiers) {
	case 0:
		return noopService{}
	case 1:
		return notifiers[0]
	default:
		return multiService(notifiers)
	}
}

type multiService []Service

func (m multiService) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

func hostname() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		return "unknown"
	}
	return host
}
