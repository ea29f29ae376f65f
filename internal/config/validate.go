package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are not required
// here: each command checks the ones it needs so that offline stages run
// without Discord or YouTube settings.
func (c *Config) Validate() error {
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"polish.timeout_seconds":      c.Polish.TimeoutSeconds,
		"polish.max_attempts":         c.Polish.MaxAttempts,
		"discord.request_timeout":     c.Discord.RequestTimeout,
		"discord.message_limit":       c.Discord.MessageLimit,
		"youtube.request_timeout":     c.YouTube.RequestTimeout,
		"pipeline.style_history_days": c.Pipeline.StyleHistoryDays,
	}); err != nil {
		return err
	}
	if c.Polish.Temperature < 0 || c.Polish.Temperature > 2 {
		return fmt.Errorf("polish.temperature must be between 0 and 2, got %v", c.Polish.Temperature)
	}
	return nil
}

func (c *Config) validateYouTube() error {
	switch c.YouTube.Privacy {
	case "private", "unlisted", "public":
	default:
		return fmt.Errorf("youtube.privacy must be private, unlisted, or public (got %q)", c.YouTube.Privacy)
	}
	for _, r := range c.YouTube.CategoryID {
		if r < '0' || r > '9' {
			return fmt.Errorf("youtube.category_id must be numeric (got %q)", c.YouTube.CategoryID)
		}
	}
	return nil
}

func (c *Config) validatePublish() error {
	switch c.Publish.RegistryBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("publish.registry_backend must be json or sqlite (got %q)", c.Publish.RegistryBackend)
	}
	if strings.TrimSpace(c.Publish.RegistryPath) == "" {
		return errors.New("publish.registry_path must be set")
	}
	return nil
}

func (c *Config) validateEmail() error {
	if c.Email.SMTPHost == "" {
		return nil
	}
	if c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535 {
		return fmt.Errorf("email.smtp_port must be between 1 and 65535 (got %d)", c.Email.SMTPPort)
	}
	if len(c.Email.To) > 0 && strings.TrimSpace(c.Email.From) == "" {
		return errors.New("email.from must be set when email.to is configured")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
