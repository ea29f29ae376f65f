package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/logging"
	"loreforge/internal/notifications"
	"loreforge/internal/services"
	"loreforge/internal/services/discord"
)

const (
	requestColor     = 0x5865F2
	requestUsername  = "Loreforge Publish Gate"
	maxPublishOutput = 800
)

// DiscordAPI is the subset of the Discord client the gate needs.
type DiscordAPI interface {
	PostWebhook(ctx context.Context, webhookURL string, msg discord.WebhookMessage, wait bool) (discord.Message, error)
	ChannelMessages(ctx context.Context, channelID string, limit int) ([]discord.Message, error)
}

// PublishOutcome is what an in-process upload reports back to the gate.
type PublishOutcome struct {
	RC     int
	Output string
	URL    string
}

// Publisher uploads the validated atom of a day.
type Publisher interface {
	Publish(ctx context.Context, day string) PublishOutcome
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, day string) PublishOutcome

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, day string) PublishOutcome { return f(ctx, day) }

// Options configures a Gate.
type Options struct {
	WebhookURL   string
	ChannelID    string
	ApproverIDs  []string
	MessageLimit int
}

// Gate runs the human approval loop over Discord.
type Gate struct {
	opts      Options
	state     StateStore
	atoms     *atom.Store
	discord   DiscordAPI
	notifier  notifications.Service
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a gate. notifier and publisher may be nil.
func New(opts Options, state StateStore, atoms *atom.Store, client DiscordAPI, notifier notifications.Service, publisher Publisher, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Multi()
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = 80
	}
	return &Gate{
		opts:      opts,
		state:     state,
		atoms:     atoms,
		discord:   client,
		notifier:  notifier,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "gate"),
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	if now != nil {
		g.now = now
	}
	return g
}

func (g *Gate) utc() string {
	return g.now().UTC().Format(time.RFC3339)
}

// RequestResult describes a posted (or skipped) approval request.
type RequestResult struct {
	RequestedDay string `json:"requested_day"`
	Day          string `json:"day"`
	ContentID    string `json:"content_id"`
	MessageID    string `json:"message_id,omitempty"`
	Status       Status `json:"status"`
	Existing     bool   `json:"existing"`
}

// Request posts an approval request for day. When day has no validated atom
// the latest validated day is used instead.
func (g *Gate) Request(ctx context.Context, day string, force bool) (RequestResult, error) {
	webhook := discord.NormalizeWebhookURL(g.opts.WebhookURL)
	if webhook == "" {
		return RequestResult{}, services.Wrap(services.ErrConfiguration, "gate", "request", "discord webhook url is not set", nil)
	}
	if discord.LooksLikePlaceholder(webhook) {
		return RequestResult{}, services.Wrap(services.ErrConfiguration, "gate", "request", "discord webhook url looks like a placeholder; set a real webhook", nil)
	}

	result := RequestResult{RequestedDay: day, Day: day}
	a, err := g.atoms.Load(atom.Validated, day)
	if errors.Is(err, services.ErrNotFound) {
		latest, latestErr := g.atoms.LatestDay(atom.Validated)
		if latestErr != nil {
			return RequestResult{}, services.Wrap(services.ErrNotFound, "gate", "request",
				fmt.Sprintf("validated atom missing for %s and no fallback atom exists", day), latestErr)
		}
		logging.WarnWithContext(g.logger, "requested day missing, using latest validated day", "gate_day_fallback",
			logging.String("requested_day", day),
			logging.String(logging.FieldDay, latest),
			logging.String(logging.FieldImpact, "approval is requested for an earlier draft"),
		)
		result.Day = latest
		a, err = g.atoms.Load(atom.Validated, latest)
	}
	if err != nil {
		return RequestResult{}, err
	}
	if a.Content == nil || strings.TrimSpace(a.Content.ContentID) == "" {
		return RequestResult{}, services.Wrap(services.ErrValidation, "gate", "request",
			"content_id missing in "+g.atoms.Path(atom.Validated, result.Day), nil)
	}
	result.ContentID = a.Content.ContentID

	state, err := g.state.Load(ctx)
	if err != nil {
		return RequestResult{}, err
	}
	if existing := state.Approvals[result.Day]; existing != nil && !force &&
		existing.ContentID == result.ContentID && existing.Status.blocksRerequest() {
		g.logger.Info("approval request already exists", logging.Args(
			logging.String(logging.FieldDay, result.Day),
			logging.String(logging.FieldContentID, result.ContentID),
			logging.String("status", string(existing.Status)),
		)...)
		result.Status = existing.Status
		result.MessageID = existing.RequestMessageID
		result.Existing = true
		return result, nil
	}

	msg, err := g.discord.PostWebhook(ctx, webhook, g.requestMessage(result.Day, a), true)
	if err != nil {
		return RequestResult{}, services.Wrap(services.ErrExternalTool, "gate", "request", "failed to send approval request webhook", err)
	}

	state.Approvals[result.Day] = &Record{
		Day:              result.Day,
		ContentID:        result.ContentID,
		Category:         a.Category,
		Angle:            a.Angle,
		Status:           StatusPending,
		RequestedUTC:     g.utc(),
		RequestMessageID: msg.ID,
	}
	if err := g.state.Save(ctx, state); err != nil {
		return RequestResult{}, err
	}
	result.Status = StatusPending
	result.MessageID = msg.ID
	g.logger.Info("approval requested", logging.Args(
		logging.String(logging.FieldDay, result.Day),
		logging.String(logging.FieldContentID, result.ContentID),
		logging.String("message_id", msg.ID),
	)...)
	return result, nil
}

func (g *Gate) requestMessage(day string, a *atom.Atom) discord.WebhookMessage {
	contentID := a.Content.ContentID
	var hook, body, cta string
	if a.Script != nil {
		hook = discord.Short(a.Script.Hook, 220)
		body = discord.Short(a.Script.Body, 340)
		cta = discord.Short(a.Script.CTA, 180)
	}
	host, _ := os.Hostname()
	return discord.WebhookMessage{
		Username: requestUsername,
		Content: fmt.Sprintf("Daily draft ready for approval on `%s`\n"+
			"Reply with: `approve %s` or `approve %s`\n"+
			"Reject with: `reject %s`\n"+
			"(Post directly in this channel; reply/thread not required.)", day, day, contentID, day),
		Embeds: []discord.Embed{{
			Title:       "🎬 Publish Approval Request",
			Description: fmt.Sprintf("`%s` • `%s` • `%s`", a.Category, a.Angle, contentID),
			Color:       requestColor,
			Fields: []discord.EmbedField{
				{Name: "Expected Responses", Value: fmt.Sprintf("`approve %s`\n`approve %s`\n`reject %s`\n`reject %s`", day, contentID, day, contentID)},
				{Name: "Hook", Value: orEmpty(hook)},
				{Name: "Body", Value: orEmpty(body)},
				{Name: "CTA", Value: orEmpty(cta)},
			},
			Footer: &discord.EmbedFooter{Text: fmt.Sprintf("host=%s utc=%s", host, g.utc())},
		}},
	}
}

func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return s
}

// Decision is one transition applied by Check.
type Decision struct {
	Day       string `json:"day"`
	ContentID string `json:"content_id"`
	Status    Status `json:"status"`
	By        string `json:"by"`
	MessageID string `json:"message_id"`
	PublishRC *int   `json:"publish_rc,omitempty"`
}

// CheckResult summarizes one poll of the approval channel.
type CheckResult struct {
	Pending   []string   `json:"pending"`
	Decisions []Decision `json:"decisions"`
}

// Check reads recent channel messages and applies approve/reject commands
// from allow-listed authors to pending records. With publish set, approved
// days are uploaded immediately.
func (g *Gate) Check(ctx context.Context, publish bool) (CheckResult, error) {
	state, err := g.state.Load(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	pending := state.PendingDays()
	result := CheckResult{Pending: pending}
	if len(pending) == 0 {
		g.logger.Info("no pending approvals")
		return result, nil
	}
	if strings.TrimSpace(g.opts.ChannelID) == "" {
		return result, services.Wrap(services.ErrConfiguration, "gate", "check", "discord channel id is not set", nil)
	}
	if len(g.opts.ApproverIDs) == 0 {
		return result, services.Wrap(services.ErrConfiguration, "gate", "check", "no approver ids configured; refusing to accept commands", nil)
	}
	if publish && g.publisher == nil {
		return result, services.Wrap(services.ErrConfiguration, "gate", "check", "publish requested but no publisher is configured", nil)
	}

	messages, err := g.discord.ChannelMessages(ctx, g.opts.ChannelID, g.opts.MessageLimit)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "gate", "check", "failed to read discord channel messages", err)
	}
	// Discord returns newest first.
	slices.Reverse(messages)

	changed := false
	for _, msg := range messages {
		if msg.ID != "" && state.processed(msg.ID) {
			continue
		}
		if !slices.Contains(g.opts.ApproverIDs, msg.Author.ID) {
			continue
		}
		cmd, ok := ParseCommand(msg.Content)
		if !ok {
			continue
		}
		state.markProcessed(msg.ID)
		changed = true

		targets := pending
		if cmd.Arg == "" && len(pending) != 1 {
			g.logger.Info("ambiguous command ignored", logging.Args(
				logging.String("message_id", msg.ID),
				logging.Int("pending", len(pending)),
			)...)
			continue
		}
		for _, day := range targets {
			rec := state.Approvals[day]
			if rec == nil || rec.Status != StatusPending {
				continue
			}
			if cmd.Arg != "" && cmd.Arg != strings.ToLower(day) && cmd.Arg != strings.ToLower(rec.ContentID) {
				continue
			}
			rec.DecisionUTC = g.utc()
			rec.DecisionBy = msg.Author.ID
			rec.DecisionMessage = msg.ID
			if cmd.Action == ActionReject {
				rec.Status = StatusRejected
				g.logger.Info("approval rejected", logging.Args(append(
					logging.DecisionAttrs("gate_decision", string(StatusRejected), "reject command"),
					logging.String(logging.FieldDay, day),
					logging.String("by", msg.Author.ID),
				)...)...)
				g.notify(ctx, notifications.EventApprovalRejected, rec, nil)
			} else {
				rec.Status = StatusApproved
				g.logger.Info("approval accepted", logging.Args(append(
					logging.DecisionAttrs("gate_decision", string(StatusApproved), "approve command"),
					logging.String(logging.FieldDay, day),
					logging.String("by", msg.Author.ID),
				)...)...)
				g.notify(ctx, notifications.EventApprovalAccepted, rec, nil)
				if publish {
					// Persist the approval before the upload runs.
					if err := g.state.Save(ctx, state); err != nil {
						return result, err
					}
					g.publish(ctx, rec)
				} else {
					g.notify(ctx, notifications.EventApprovalQueued, rec, nil)
				}
			}
			result.Decisions = append(result.Decisions, Decision{
				Day:       day,
				ContentID: rec.ContentID,
				Status:    rec.Status,
				By:        msg.Author.ID,
				MessageID: msg.ID,
				PublishRC: rec.PublishRC,
			})
		}
	}

	result.Pending = state.PendingDays()
	if changed {
		if err := g.state.Save(ctx, state); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (g *Gate) publish(ctx context.Context, rec *Record) {
	g.notify(ctx, notifications.EventPublishStarted, rec, nil)
	outcome := g.publisher.Publish(ctx, rec.Day)
	rc := outcome.RC
	rec.PublishRC = &rc
	rec.PublishOutput = discord.Short(outcome.Output, maxPublishOutput)
	if rc == 0 {
		rec.Status = StatusPublished
		rec.PublishedURL = outcome.URL
		g.logger.Info("approved day published", logging.Args(
			logging.String(logging.FieldDay, rec.Day),
			logging.String(logging.FieldContentID, rec.ContentID),
			logging.String("url", outcome.URL),
		)...)
		g.notify(ctx, notifications.EventPublishCompleted, rec, notifications.Payload{"url": outcome.URL})
		return
	}
	rec.Status = StatusApprovedPublishFailed
	logging.WarnWithContext(g.logger, "approved day failed to publish", "gate_publish_failed",
		logging.String(logging.FieldDay, rec.Day),
		logging.Int("rc", rc),
		logging.String(logging.FieldImpact, "approved short was not uploaded"),
		logging.String(logging.FieldErrorHint, "check upload logs, fix, then run upload for the day"),
	)
	g.notify(ctx, notifications.EventPublishFailed, rec, notifications.Payload{"rc": rc})
}

// notify is fire-and-forget; failures are logged only.
func (g *Gate) notify(ctx context.Context, event notifications.Event, rec *Record, extra notifications.Payload) {
	payload := notifications.Payload{
		"day":        rec.Day,
		"content_id": rec.ContentID,
		"by":         rec.DecisionBy,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := g.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(g.logger, "gate notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operators were not told about this transition"),
		)
	}
}

// Status returns every stored record ordered by day.
func (g *Gate) Status(ctx context.Context) ([]Record, error) {
	state, err := g.state.Load(ctx)
	if err != nil {
		return nil, err
	}
	return state.Records(), nil
}
