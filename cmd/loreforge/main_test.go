package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"loreforge/internal/config"
	"loreforge/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

var isolatedEnv = []string{
	"ACTIVE_SRD_PATH", "OPENAI_API_KEY", "LOREFORGE_POLISH",
	"DISCORD_WEBHOOK_URL", "DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID", "DISCORD_APPROVER_IDS",
	"YOUTUBE_CLIENT_SECRETS", "YOUTUBE_TOKEN_FILE", "ALLOW_DUPLICATE_PUBLISH",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "ALERT_EMAIL_TO", "ALERT_EMAIL_FROM",
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	for _, key := range isolatedEnv {
		t.Setenv(key, "")
	}
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithDataset()}, opts...)...)
	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "loreforge.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--env-file", "", "--log-level", "error"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireExitCode(t *testing.T, err error, want int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected exit code %d, got success", want)
	}
	if got := exitCode(err); got != want {
		t.Fatalf("exit code = %d, want %d (err: %v)", got, want, err)
	}
}

func TestExitCodeMapping(t *testing.T) {
	if exitCode(nil) != 0 {
		t.Fatal("nil error should exit 0")
	}
	if exitCode(errors.New("boom")) != 1 {
		t.Fatal("plain errors exit 1")
	}
	sentinel := errors.New("sentinel")
	err := withExitCode(wrapf(sentinel), exitRule{sentinel, 7})
	if exitCode(err) != 7 {
		t.Fatalf("exit code = %d", exitCode(err))
	}
	if !errors.Is(err, sentinel) {
		t.Fatal("exit errors must unwrap to the cause")
	}
	again := withExitCode(err, exitRule{sentinel, 9})
	if exitCode(again) != 7 {
		t.Fatal("an assigned exit code must not be replaced")
	}
}

func wrapf(err error) error { return errors.Join(errors.New("context"), err) }

func TestVersionSkipsConfig(t *testing.T) {
	out, _, err := runCLI(t, []string{"version"}, filepath.Join(t.TempDir(), "missing", "bad.toml"))
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	requireContains(t, out, "loreforge ")
}

func TestInvalidDayRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"run", "--day", "04/03/2024"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Fatalf("expected day format error, got %v", err)
	}
}
