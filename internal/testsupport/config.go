package testsupport

import (
	"path/filepath"
	"testing"

	"loreforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.RulesDir = filepath.Join(base, "config")
	cfgVal.Reference.Path = filepath.Join(base, "reference", "active")
	cfgVal.Reference.Candidates = nil
	cfgVal.Discord.StatePath = filepath.Join(cfgVal.Paths.DataDir, "archive", "approvals", "discord_publish_gate.json")
	cfgVal.Publish.RegistryPath = filepath.Join(cfgVal.Paths.DataDir, "archive", "publish_registry.json")
	cfgVal.YouTube.TokenPath = filepath.Join(base, "youtube_token.json")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithDataset writes the standard fixture dataset into the configured
// reference directory.
func WithDataset() ConfigOption {
	return func(b *configBuilder) {
		WriteDataset(b.t, b.cfg.Reference.Path)
	}
}

// WithDiscord points the gate at a test server.
func WithDiscord(baseURL, webhookURL, channelID, botToken string, approvers ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Discord.APIBaseURL = baseURL
		b.cfg.Discord.WebhookURL = webhookURL
		b.cfg.Discord.ChannelID = channelID
		b.cfg.Discord.BotToken = botToken
		b.cfg.Discord.ApproverIDs = approvers
	}
}

// WithPolish enables script polish against a test server.
func WithPolish(baseURL, apiKey string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Polish.Enabled = true
		b.cfg.Polish.BaseURL = baseURL
		b.cfg.Polish.APIKey = apiKey
	}
}

// WithoutLock disables the advisory per-day lock.
func WithoutLock() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.AdvisoryLock = false
	}
}

// BaseDir returns the temp root the config was built in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
