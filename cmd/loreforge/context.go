package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"loreforge/internal/atom"
	"loreforge/internal/config"
	"loreforge/internal/logging"
	"loreforge/internal/metrics"
	"loreforge/internal/notifications"
	"loreforge/internal/reference"
	"loreforge/internal/services"
)

type globalFlags struct {
	config    string
	logLevel  string
	logFormat string
	json      bool
	envFile   string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	requestID string
	metrics   *metrics.Metrics
	now       func() time.Time
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{
		flags:     flags,
		requestID: uuid.NewString(),
		metrics:   metrics.New(),
		now:       time.Now,
	}
}

// loadDotEnv reads KEY=value pairs into the environment without overriding
// variables that are already set. A missing file is ignored.
func loadDotEnv(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

// loggerValue builds the invocation logger. Construction failures fall back
// to a console logger on stderr so commands still report their errors.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		opts := logging.Options{Level: "info", Format: "console"}
		if cfg := c.configValue(); cfg != nil {
			opts.Level = cfg.Logging.Level
			opts.Format = cfg.Logging.Format
			opts.FilePath = cfg.Paths.LogFile
		}
		if v := strings.TrimSpace(c.flags.logLevel); v != "" {
			opts.Level = v
		}
		if v := strings.TrimSpace(c.flags.logFormat); v != "" {
			opts.Format = v
		}
		logger, err := logging.New(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "WARN: logger fallback: %v\n", err)
			logger, _ = logging.New(logging.Options{Level: opts.Level})
		}
		c.logger = logger.With(logging.FieldCorrelationID, c.requestID)
	})
	return c.logger
}

// commandCtx returns the command context annotated with the request id and,
// when set, the day.
func (c *commandContext) commandCtx(cmd *cobra.Command, day string) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithRequestID(ctx, c.requestID)
	if day != "" {
		ctx = services.WithDay(ctx, day)
	}
	return ctx
}

func (c *commandContext) atomStore() *atom.Store {
	return atom.NewStore(c.configValue().AtomsDir())
}

func (c *commandContext) notifier() notifications.Service {
	return notifications.NewService(c.configValue())
}

// dataset resolves the reference directory: ACTIVE_SRD_PATH, reference.path,
// the sources file, then the configured candidates.
func (c *commandContext) dataset() (*reference.Dataset, error) {
	cfg := c.configValue()
	sources, err := reference.LoadSources(cfg.RulesFile("reference_sources.yaml"))
	if err != nil {
		return nil, err
	}
	base, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	dir, err := reference.ResolvePath(base, cfg.Reference.Path, sources, cfg.Reference.Candidates)
	if err != nil {
		return nil, err
	}
	return reference.Open(dir, sources), nil
}

// resolveDay returns the flag value or today's UTC date.
func (c *commandContext) resolveDay(flag string) (string, error) {
	day := strings.TrimSpace(flag)
	if day == "" {
		return c.now().UTC().Format(time.DateOnly), nil
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return "", services.Wrap(services.ErrValidation, "cli", "parse day",
			fmt.Sprintf("--day must be YYYY-MM-DD, got %q", day), nil)
	}
	return day, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
