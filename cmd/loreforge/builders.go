package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"loreforge/internal/gate"
	"loreforge/internal/logging"
	"loreforge/internal/pipeline"
	"loreforge/internal/publish"
	"loreforge/internal/script"
	"loreforge/internal/services/discord"
	"loreforge/internal/services/llm"
	"loreforge/internal/services/youtube"
	"loreforge/internal/spine"
	"loreforge/internal/style"
)

// newRunner wires the pipeline stages from configuration. A dataset
// resolution failure is kept and surfaces from the stages that need it.
func (c *commandContext) newRunner() (*pipeline.Runner, error) {
	cfg := c.configValue()
	logger := c.loggerValue()

	sp, err := spine.Load(cfg.RulesFile("topic_spine.yaml"))
	if err != nil {
		return nil, err
	}
	rules, err := style.LoadRules(cfg.RulesFile("style_rules.yaml"))
	if err != nil {
		return nil, err
	}
	ds, err := c.dataset()
	if err != nil {
		logging.WarnWithContext(logger, "reference dataset unavailable", "dataset_unresolved",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set ACTIVE_SRD_PATH or reference.path"),
			logging.String(logging.FieldImpact, "pick and fact stages will fail"),
		)
	}

	var polish *script.PolishOptions
	if cfg.PolishActive() {
		polish = &script.PolishOptions{
			Client: llm.NewClient(llm.Config{
				APIKey:         cfg.Polish.APIKey,
				BaseURL:        cfg.Polish.BaseURL,
				Model:          cfg.Polish.Model,
				Temperature:    cfg.Polish.Temperature,
				TimeoutSeconds: cfg.Polish.TimeoutSeconds,
				MaxAttempts:    cfg.Polish.MaxAttempts,
			}, llm.WithLogger(logger)),
			Grounding: readGrounding(cfg.Polish.GroundingPath),
		}
	}

	deps := pipeline.Deps{
		Atoms:    c.atomStore(),
		Dataset:  ds,
		Spine:    sp,
		Styles:   style.NewSelector(rules, style.NewFileHistory(cfg.StyleHistoryPath(), cfg.Pipeline.StyleHistoryDays), logger),
		Writer:   script.NewChain(rules, polish, logger),
		Notifier: c.notifier(),
		Metrics:  c.metrics,
	}
	opts := pipeline.Options{
		LocksDir:           cfg.LocksDir(),
		AdvisoryLock:       cfg.Pipeline.AdvisoryLock,
		WeakCreatureFilter: cfg.Pipeline.WeakCreatureFilter,
		MetricsTextfile:    cfg.Metrics.TextfilePath,
	}
	return pipeline.New(deps, opts, logger).WithClock(c.now), nil
}

func readGrounding(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

func (c *commandContext) openRegistry() (publish.Registry, error) {
	cfg := c.configValue()
	return publish.OpenRegistry(cfg.Publish.RegistryBackend, cfg.Publish.RegistryPath)
}

// lazyVideos defers OAuth token loading until a real upload happens so dry
// runs work without credentials.
type lazyVideos struct {
	ctx *commandContext

	once   sync.Once
	client *youtube.Client
	err    error
}

func (l *lazyVideos) Upload(ctx context.Context, videoPath string, meta youtube.Metadata) (youtube.Video, error) {
	l.once.Do(func() {
		cfg := l.ctx.configValue()
		ts, err := youtube.TokenSource(ctx, cfg.YouTube.ClientSecretsPath, cfg.YouTube.TokenPath)
		if err != nil {
			l.err = err
			return
		}
		l.client = youtube.New(ctx, youtube.Config{
			UploadURL:      cfg.YouTube.UploadURL,
			TimeoutSeconds: cfg.YouTube.RequestTimeout,
		}, ts)
	})
	if l.err != nil {
		return youtube.Video{}, l.err
	}
	return l.client.Upload(ctx, videoPath, meta)
}

func (c *commandContext) newUploader(registry publish.Registry) *publish.Uploader {
	cfg := c.configValue()
	return publish.NewUploader(c.atomStore(), registry, &lazyVideos{ctx: c}, publish.UploaderOptions{
		Privacy:        cfg.YouTube.Privacy,
		CategoryID:     cfg.YouTube.CategoryID,
		AllowDuplicate: cfg.Publish.AllowDuplicate,
	}, c.loggerValue()).WithClock(c.now)
}

// uploadPublisher adapts the uploader to the gate, reporting the upload
// exit status the way the standalone command would.
func uploadPublisher(uploader *publish.Uploader, videoPath string) gate.Publisher {
	return gate.PublisherFunc(func(ctx context.Context, day string) gate.PublishOutcome {
		res, err := uploader.Upload(ctx, publish.UploadRequest{Day: day, VideoPath: videoPath})
		if err != nil {
			return gate.PublishOutcome{RC: publish.ExitCode(err), Output: err.Error()}
		}
		return gate.PublishOutcome{
			RC:     0,
			Output: fmt.Sprintf("uploaded %s content_id=%s", res.VideoID, res.ContentID),
			URL:    res.URL,
		}
	})
}

func (c *commandContext) discordClient() *discord.Client {
	cfg := c.configValue()
	return discord.New(discord.Config{
		APIBaseURL:     cfg.Discord.APIBaseURL,
		BotToken:       cfg.Discord.BotToken,
		TimeoutSeconds: cfg.Discord.RequestTimeout,
	})
}

func (c *commandContext) gateState() gate.StateStore {
	return gate.NewFileStateStore(c.configValue().Discord.StatePath)
}

func (c *commandContext) newGate(publisher gate.Publisher) *gate.Gate {
	cfg := c.configValue()
	return gate.New(gate.Options{
		WebhookURL:   cfg.Discord.WebhookURL,
		ChannelID:    cfg.Discord.ChannelID,
		ApproverIDs:  cfg.Discord.ApproverIDs,
		MessageLimit: cfg.Discord.MessageLimit,
	}, c.gateState(), c.atomStore(), c.discordClient(), c.notifier(), publisher, c.loggerValue()).WithClock(c.now)
}

// referenceDir reports the resolved dataset directory or a configuration error.
func (c *commandContext) referenceDir() (string, error) {
	ds, err := c.dataset()
	if err != nil {
		return "", err
	}
	return ds.Dir(), nil
}
