package notifications

import (
	"context"
	"fmt"
	"time"

	"loreforge/internal/services/discord"
)

const (
	colorGreen = 0x2ECC71
	colorRed   = 0xE74C3C
)

// DiscordNotifier posts events to an incoming webhook.
type DiscordNotifier struct {
	client     *discord.Client
	webhookURL string
	now        func() time.Time
}

// NewDiscordNotifier posts through client to webhookURL.
func NewDiscordNotifier(client *discord.Client, webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{client: client, webhookURL: webhookURL, now: time.Now}
}

// Publish implements Service. Events without a Discord rendering are
// dropped.
func (d *DiscordNotifier) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := d.render(event, payload)
	if !ok {
		return nil
	}
	if _, err := d.client.PostWebhook(ctx, d.webhookURL, msg, false); err != nil {
		return fmt.Errorf("discord notification %s: %w", event, err)
	}
	return nil
}

func (d *DiscordNotifier) render(event Event, p Payload) (discord.WebhookMessage, bool) {
	day := p.text("day")
	contentID := p.text("content_id")
	msg := discord.WebhookMessage{Username: gateUsername}

	switch event {
	case EventApprovalAccepted:
		msg.Content = fmt.Sprintf("✅ Approval accepted for `%s` (`%s`) by <@%s>.", day, contentID, p.text("by"))
	case EventApprovalRejected:
		msg.Content = fmt.Sprintf("🛑 Rejected `%s` (`%s`) by <@%s>.", day, contentID, p.text("by"))
	case EventApprovalQueued:
		msg.Content = fmt.Sprintf("ℹ️ `%s` approved and queued; publish was not run in this check.", day)
	case EventPublishStarted:
		msg.Content = fmt.Sprintf("🚀 Publish started for `%s` (`%s`).", day, contentID)
	case EventPublishCompleted:
		msg.Content = fmt.Sprintf("🎉 Publish complete for `%s` (`%s`).", day, contentID)
		if url := p.text("url"); url != "" {
			msg.Content += "\n" + url
		}
	case EventPublishFailed:
		msg.Content = fmt.Sprintf("❌ Publish failed for `%s` (`%s`), rc=%s. Check logs.", day, contentID, p.textOr("rc", "?"))
	case EventAtomFailed:
		msg.Content = fmt.Sprintf("⚠️ Atom for `%s` failed validation: %s", day, p.textOr("reason", "unknown"))
	case EventHealthReport:
		msg.Username = "Loreforge Pipeline Bot"
		msg.Embeds = []discord.Embed{d.healthEmbed(p)}
	case EventTest:
		msg.Content = "🧪 Notification system test"
	default:
		return discord.WebhookMessage{}, false
	}
	return msg, true
}

func (d *DiscordNotifier) healthEmbed(p Payload) discord.Embed {
	overall := p.textOr("overall", "RED")
	icon, color := "🔴", colorRed
	if overall == "GREEN" {
		icon, color = "🟢", colorGreen
	}
	fields := []discord.EmbedField{
		{Name: "Host", Value: hostname(), Inline: true},
		{Name: "Day", Value: p.textOr("day", "unknown"), Inline: true},
		{Name: "Overall", Value: overall, Inline: true},
		{Name: "Atom", Value: p.textOr("atom", "unknown"), Inline: true},
		{Name: "Gate", Value: p.textOr("gate", "unknown"), Inline: true},
		{Name: "Registry", Value: p.textOr("registry", "unknown"), Inline: true},
	}
	if details := p.text("details"); details != "" {
		fields = append(fields, discord.EmbedField{Name: "Details", Value: "```" + discord.Short(details, 1000) + "```"})
	}
	if next := p.text("next"); next != "" {
		fields = append(fields, discord.EmbedField{Name: "Suggested Next Command", Value: "```bash\n" + next + "\n```"})
	}
	return discord.Embed{
		Title:       icon + " Loreforge Pipeline Health",
		Description: fmt.Sprintf("Status check for `%s`", p.textOr("day", "today")),
		Color:       color,
		Fields:      fields,
		Footer:      &discord.EmbedFooter{Text: "UTC " + d.now().UTC().Format(time.RFC3339)},
	}
}
