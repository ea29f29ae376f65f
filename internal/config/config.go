package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the working directories of the pipeline.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	RulesDir string `toml:"rules_dir"`
	LogFile  string `toml:"log_file"`
}

// Reference locates the fixture dataset.
type Reference struct {
	Path       string   `toml:"path"`
	Candidates []string `toml:"candidates"`
}

// Pipeline contains per-run behaviour.
type Pipeline struct {
	AdvisoryLock       bool `toml:"advisory_lock"`
	StyleHistoryDays   int  `toml:"style_history_days"`
	WeakCreatureFilter bool `toml:"weak_creature_filter"`
}

// Polish contains the optional language-model rewrite settings.
type Polish struct {
	Enabled        bool    `toml:"enabled"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Temperature    float64 `toml:"temperature"`
	MaxAttempts    int     `toml:"max_attempts"`
	GroundingPath  string  `toml:"grounding_path"`
}

// Discord contains the approval gate settings.
type Discord struct {
	WebhookURL     string   `toml:"webhook_url"`
	BotToken       string   `toml:"bot_token"`
	ChannelID      string   `toml:"channel_id"`
	ApproverIDs    []string `toml:"approver_ids"`
	APIBaseURL     string   `toml:"api_base_url"`
	MessageLimit   int      `toml:"message_limit"`
	RequestTimeout int      `toml:"request_timeout"`
	StatePath      string   `toml:"state_path"`
}

// YouTube contains upload settings.
type YouTube struct {
	ClientSecretsPath string `toml:"client_secrets_path"`
	TokenPath         string `toml:"token_path"`
	UploadURL         string `toml:"upload_url"`
	Privacy           string `toml:"privacy"`
	CategoryID        string `toml:"category_id"`
	RequestTimeout    int    `toml:"request_timeout"`
}

// Publish contains the duplicate-publish registry settings.
type Publish struct {
	RegistryBackend string `toml:"registry_backend"`
	RegistryPath    string `toml:"registry_path"`
	AllowDuplicate  bool   `toml:"allow_duplicate"`
}

// Email contains SMTP settings for health alerts.
type Email struct {
	SMTPHost string   `toml:"smtp_host"`
	SMTPPort int      `toml:"smtp_port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	To       []string `toml:"to"`
	StartTLS bool     `toml:"starttls"`
	SSL      bool     `toml:"ssl"`
}

// Metrics contains the Prometheus textfile export path.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for loreforge.
//
// Configuration sections by subsystem:
//   - Paths: data, editorial rules, and log file locations
//   - Reference: fixture dataset directory resolution
//   - Pipeline: locking and selection behaviour
//   - Polish: optional language-model rewrite of scripts
//   - Discord: approval gate webhook and bot settings
//   - YouTube: upload credentials and defaults
//   - Publish: duplicate-publish registry backend
//   - Email: SMTP health alerts
//   - Metrics: Prometheus textfile export
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Reference Reference `toml:"reference"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Polish    Polish    `toml:"polish"`
	Discord   Discord   `toml:"discord"`
	YouTube   YouTube   `toml:"youtube"`
	Publish   Publish   `toml:"publish"`
	Email     Email     `toml:"email"`
	Metrics   Metrics   `toml:"metrics"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loreforge/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loreforge.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// AtomsDir returns the root of the incoming/validated/failed atom tree.
func (c *Config) AtomsDir() string {
	return filepath.Join(c.Paths.DataDir, "atoms")
}

// ArchiveDir returns the directory holding long-lived pipeline state.
func (c *Config) ArchiveDir() string {
	return filepath.Join(c.Paths.DataDir, "archive")
}

// LocksDir returns the directory used for advisory lock files.
func (c *Config) LocksDir() string {
	return filepath.Join(c.Paths.DataDir, "locks")
}

// StyleHistoryPath returns the style history file location.
func (c *Config) StyleHistoryPath() string {
	return filepath.Join(c.Paths.DataDir, "state", "style_history.json")
}

// MonthlyDir returns the root for monthly export manifests.
func (c *Config) MonthlyDir() string {
	return filepath.Join(c.ArchiveDir(), "monthly")
}

// LatestVideoPath returns the default rendered short handed to upload.
func (c *Config) LatestVideoPath() string {
	return filepath.Join(c.Paths.DataDir, "renders", "latest", "latest.mp4")
}

// RulesFile returns the path of an editorial rules file (topic spine, style rules).
func (c *Config) RulesFile(name string) string {
	return filepath.Join(c.Paths.RulesDir, name)
}

// EnsureDirectories creates the atom tree and archive directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Join(c.AtomsDir(), "incoming"),
		filepath.Join(c.AtomsDir(), "validated"),
		filepath.Join(c.AtomsDir(), "failed"),
		c.ArchiveDir(),
	}
	if c.Pipeline.AdvisoryLock {
		dirs = append(dirs, c.LocksDir())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PolishActive reports whether script polish should run: enabled and keyed.
func (c *Config) PolishActive() bool {
	return c.Polish.Enabled && strings.TrimSpace(c.Polish.APIKey) != ""
}

// EmailConfigured reports whether SMTP alerts can be sent.
func (c *Config) EmailConfigured() bool {
	return strings.TrimSpace(c.Email.SMTPHost) != "" && len(c.Email.To) > 0
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
