package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"loreforge/internal/config"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "LOREFORGE_POLISH", "DISCORD_WEBHOOK_URL", "DISCORD_BOT_TOKEN",
		"DISCORD_CHANNEL_ID", "DISCORD_APPROVER_IDS", "YOUTUBE_CLIENT_SECRETS",
		"YOUTUBE_TOKEN_FILE", "ALLOW_DUPLICATE_PUBLISH", "SMTP_HOST", "SMTP_PORT",
		"SMTP_USER", "SMTP_PASS", "ALERT_EMAIL_TO", "ALERT_EMAIL_FROM",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearConfigEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) || filepath.Base(cfg.Paths.DataDir) != "data" {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Discord.StatePath != filepath.Join(cfg.Paths.DataDir, "archive", "approvals", "discord_publish_gate.json") {
		t.Fatalf("unexpected gate state path: %q", cfg.Discord.StatePath)
	}
	if cfg.Publish.RegistryPath != filepath.Join(cfg.Paths.DataDir, "archive", "publish_registry.json") {
		t.Fatalf("unexpected registry path: %q", cfg.Publish.RegistryPath)
	}
	if cfg.YouTube.TokenPath != filepath.Join(tempHome, ".config", "loreforge", "youtube_token.json") {
		t.Fatalf("unexpected token path: %q", cfg.YouTube.TokenPath)
	}
	if cfg.YouTube.Privacy != "private" || cfg.YouTube.CategoryID != "20" {
		t.Fatalf("unexpected youtube defaults: %+v", cfg.YouTube)
	}
	if !cfg.Pipeline.AdvisoryLock {
		t.Fatal("expected advisory lock enabled by default")
	}
	if cfg.PolishActive() {
		t.Fatal("expected polish inactive without key")
	}
	if cfg.Polish.MaxAttempts != 5 || cfg.Polish.Temperature != 0.4 {
		t.Fatalf("unexpected polish defaults: %+v", cfg.Polish)
	}
	if cfg.Publish.AllowDuplicate {
		t.Fatal("expected duplicates blocked by default")
	}
}

func TestEnvFallbacks(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LOREFORGE_POLISH", "1")
	t.Setenv("DISCORD_APPROVER_IDS", "111, 222,111")
	t.Setenv("ALLOW_DUPLICATE_PUBLISH", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("ALERT_EMAIL_TO", "ops@example.com")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !cfg.PolishActive() {
		t.Fatal("expected polish active from env")
	}
	if got := strings.Join(cfg.Discord.ApproverIDs, ","); got != "111,222" {
		t.Fatalf("unexpected approvers: %q", got)
	}
	if !cfg.Publish.AllowDuplicate {
		t.Fatal("expected duplicate override from env")
	}
	if !cfg.EmailConfigured() || cfg.Email.From != "bot@example.com" {
		t.Fatalf("unexpected email config: %+v", cfg.Email)
	}
}

func TestLoadFromFileAndSQLiteRegistryDefault(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "loreforge.toml")

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Publish.RegistryBackend = "sqlite"
	cfg.YouTube.Privacy = "Unlisted"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected file to be used, got %q exists=%v", resolved, exists)
	}
	if loaded.Publish.RegistryPath != filepath.Join(dir, "data", "archive", "publish_registry.db") {
		t.Fatalf("unexpected sqlite registry path: %q", loaded.Publish.RegistryPath)
	}
	if loaded.YouTube.Privacy != "unlisted" {
		t.Fatalf("expected privacy lowercased, got %q", loaded.YouTube.Privacy)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"privacy", func(c *config.Config) { c.YouTube.Privacy = "secret" }, "youtube.privacy"},
		{"category", func(c *config.Config) { c.YouTube.CategoryID = "gaming" }, "youtube.category_id"},
		{"backend", func(c *config.Config) { c.Publish.RegistryBackend = "redis" }, "publish.registry_backend"},
		{"smtp port", func(c *config.Config) { c.Email.SMTPHost = "h"; c.Email.SMTPPort = 70000 }, "email.smtp_port"},
		{"timeout", func(c *config.Config) { c.Discord.RequestTimeout = 0 }, "discord.request_timeout"},
		{"attempts", func(c *config.Config) { c.Polish.MaxAttempts = 0 }, "polish.max_attempts"},
		{"temperature", func(c *config.Config) { c.Polish.Temperature = 3 }, "polish.temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Publish.RegistryPath = "/tmp/registry.json"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[paths]\nstaging_dir = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected unknown key error")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load: exists=%v err=%v", exists, err)
	}
}
