package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeReference(); err != nil {
		return err
	}
	c.normalizePolish()
	if err := c.normalizeDiscord(); err != nil {
		return err
	}
	if err := c.normalizeYouTube(); err != nil {
		return err
	}
	if err := c.normalizePublish(); err != nil {
		return err
	}
	c.normalizeEmail()
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RulesDir) == "" {
		c.Paths.RulesDir = defaultRulesDir
	}
	if c.Paths.RulesDir, err = expandPath(c.Paths.RulesDir); err != nil {
		return fmt.Errorf("paths.rules_dir: %w", err)
	}
	if c.Paths.LogFile, err = expandPath(strings.TrimSpace(c.Paths.LogFile)); err != nil {
		return fmt.Errorf("paths.log_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeReference() error {
	var err error
	if c.Reference.Path, err = expandPath(strings.TrimSpace(c.Reference.Path)); err != nil {
		return fmt.Errorf("reference.path: %w", err)
	}
	if len(c.Reference.Candidates) == 0 {
		c.Reference.Candidates = append([]string(nil), defaultReferenceCandidates...)
	}
	candidates := make([]string, 0, len(c.Reference.Candidates))
	for _, candidate := range c.Reference.Candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		expanded, err := expandPath(candidate)
		if err != nil {
			return fmt.Errorf("reference.candidates: %w", err)
		}
		candidates = append(candidates, expanded)
	}
	c.Reference.Candidates = candidates
	if c.Pipeline.StyleHistoryDays <= 0 {
		c.Pipeline.StyleHistoryDays = defaultStyleHistoryDays
	}
	return nil
}

func (c *Config) normalizePolish() {
	c.Polish.APIKey = strings.TrimSpace(c.Polish.APIKey)
	if c.Polish.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Polish.APIKey = strings.TrimSpace(value)
		}
	}
	if value, ok := os.LookupEnv("LOREFORGE_POLISH"); ok {
		c.Polish.Enabled = envTruthy(value)
	}
	c.Polish.BaseURL = strings.TrimSpace(c.Polish.BaseURL)
	if c.Polish.BaseURL == "" {
		c.Polish.BaseURL = defaultPolishBaseURL
	}
	c.Polish.Model = strings.TrimSpace(c.Polish.Model)
	if c.Polish.Model == "" {
		c.Polish.Model = defaultPolishModel
	}
	if c.Polish.TimeoutSeconds <= 0 {
		c.Polish.TimeoutSeconds = defaultPolishTimeout
	}
	if c.Polish.MaxAttempts <= 0 {
		c.Polish.MaxAttempts = defaultPolishAttempts
	}
	if path := strings.TrimSpace(c.Polish.GroundingPath); path != "" {
		if expanded, err := expandPath(path); err == nil {
			c.Polish.GroundingPath = expanded
		}
	}
}

func (c *Config) normalizeDiscord() error {
	if c.Discord.WebhookURL == "" {
		if value, ok := os.LookupEnv("DISCORD_WEBHOOK_URL"); ok {
			c.Discord.WebhookURL = value
		}
	}
	c.Discord.WebhookURL = strings.TrimSpace(c.Discord.WebhookURL)
	if c.Discord.BotToken == "" {
		if value, ok := os.LookupEnv("DISCORD_BOT_TOKEN"); ok {
			c.Discord.BotToken = value
		}
	}
	c.Discord.BotToken = strings.TrimSpace(c.Discord.BotToken)
	if c.Discord.ChannelID == "" {
		if value, ok := os.LookupEnv("DISCORD_CHANNEL_ID"); ok {
			c.Discord.ChannelID = value
		}
	}
	c.Discord.ChannelID = strings.TrimSpace(c.Discord.ChannelID)
	if len(c.Discord.ApproverIDs) == 0 {
		if value, ok := os.LookupEnv("DISCORD_APPROVER_IDS"); ok {
			c.Discord.ApproverIDs = splitList(value)
		}
	}
	c.Discord.ApproverIDs = dedupeStrings(c.Discord.ApproverIDs)
	c.Discord.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Discord.APIBaseURL), "/")
	if c.Discord.APIBaseURL == "" {
		c.Discord.APIBaseURL = defaultDiscordAPIBaseURL
	}
	if c.Discord.MessageLimit <= 0 || c.Discord.MessageLimit > 100 {
		c.Discord.MessageLimit = defaultDiscordMessageLimit
	}
	if c.Discord.RequestTimeout <= 0 {
		c.Discord.RequestTimeout = defaultDiscordTimeout
	}
	var err error
	if strings.TrimSpace(c.Discord.StatePath) == "" {
		c.Discord.StatePath = filepath.Join(c.Paths.DataDir, defaultDiscordStateFile)
	}
	if c.Discord.StatePath, err = expandPath(c.Discord.StatePath); err != nil {
		return fmt.Errorf("discord.state_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeYouTube() error {
	var err error
	if c.YouTube.ClientSecretsPath == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CLIENT_SECRETS"); ok {
			c.YouTube.ClientSecretsPath = value
		}
	}
	if c.YouTube.ClientSecretsPath, err = expandPath(strings.TrimSpace(c.YouTube.ClientSecretsPath)); err != nil {
		return fmt.Errorf("youtube.client_secrets_path: %w", err)
	}
	if value, ok := os.LookupEnv("YOUTUBE_TOKEN_FILE"); ok && strings.TrimSpace(value) != "" {
		c.YouTube.TokenPath = value
	}
	if strings.TrimSpace(c.YouTube.TokenPath) == "" {
		c.YouTube.TokenPath = defaultYouTubeTokenPath
	}
	if c.YouTube.TokenPath, err = expandPath(strings.TrimSpace(c.YouTube.TokenPath)); err != nil {
		return fmt.Errorf("youtube.token_path: %w", err)
	}
	c.YouTube.UploadURL = strings.TrimSpace(c.YouTube.UploadURL)
	if c.YouTube.UploadURL == "" {
		c.YouTube.UploadURL = defaultYouTubeUploadURL
	}
	c.YouTube.Privacy = strings.ToLower(strings.TrimSpace(c.YouTube.Privacy))
	if c.YouTube.Privacy == "" {
		c.YouTube.Privacy = defaultYouTubePrivacy
	}
	c.YouTube.CategoryID = strings.TrimSpace(c.YouTube.CategoryID)
	if c.YouTube.CategoryID == "" {
		c.YouTube.CategoryID = defaultYouTubeCategoryID
	}
	if c.YouTube.RequestTimeout <= 0 {
		c.YouTube.RequestTimeout = defaultYouTubeTimeout
	}
	return nil
}

func (c *Config) normalizePublish() error {
	c.Publish.RegistryBackend = strings.ToLower(strings.TrimSpace(c.Publish.RegistryBackend))
	if c.Publish.RegistryBackend == "" {
		c.Publish.RegistryBackend = defaultRegistryBackend
	}
	if strings.TrimSpace(c.Publish.RegistryPath) == "" {
		file := defaultRegistryJSONFile
		if c.Publish.RegistryBackend == "sqlite" {
			file = defaultRegistrySQLiteFile
		}
		c.Publish.RegistryPath = filepath.Join(c.Paths.DataDir, file)
	}
	var err error
	if c.Publish.RegistryPath, err = expandPath(c.Publish.RegistryPath); err != nil {
		return fmt.Errorf("publish.registry_path: %w", err)
	}
	if value, ok := os.LookupEnv("ALLOW_DUPLICATE_PUBLISH"); ok {
		c.Publish.AllowDuplicate = envTruthy(value)
	}
	return nil
}

func (c *Config) normalizeEmail() {
	if c.Email.SMTPHost == "" {
		c.Email.SMTPHost = os.Getenv("SMTP_HOST")
	}
	c.Email.SMTPHost = strings.TrimSpace(c.Email.SMTPHost)
	if value, ok := os.LookupEnv("SMTP_PORT"); ok {
		if port, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			c.Email.SMTPPort = port
		}
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = defaultSMTPPort
	}
	if c.Email.Username == "" {
		c.Email.Username = strings.TrimSpace(os.Getenv("SMTP_USER"))
	}
	if c.Email.Password == "" {
		c.Email.Password = os.Getenv("SMTP_PASS")
	}
	if len(c.Email.To) == 0 {
		if value, ok := os.LookupEnv("ALERT_EMAIL_TO"); ok {
			c.Email.To = splitList(value)
		}
	}
	c.Email.To = dedupeStrings(c.Email.To)
	if c.Email.From == "" {
		c.Email.From = strings.TrimSpace(os.Getenv("ALERT_EMAIL_FROM"))
	}
	if c.Email.From == "" {
		c.Email.From = c.Email.Username
	}
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.TextfilePath, err = expandPath(strings.TrimSpace(c.Metrics.TextfilePath)); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func splitList(value string) []string {
	return strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
