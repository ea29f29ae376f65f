package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"loreforge/internal/config"
	"loreforge/internal/fileutil"
	"loreforge/internal/spine"
	"loreforge/internal/style"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var rulesDir string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file and default rules files",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite && fileutil.Exists(target) {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)

			if strings.TrimSpace(rulesDir) != "" {
				if err := writeDefaultRules(out, rulesDir, overwrite); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "Set discord.webhook_url and youtube credentials (or export DISCORD_WEBHOOK_URL) before publishing.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().StringVar(&rulesDir, "rules-dir", "", "Also write the default topic spine and style rules here")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing files if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(strings.TrimSpace(ctx.flags.config))
			if err != nil {
				return &cliExitError{code: 2, err: fmt.Errorf("load config: %w", err)}
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Data dir:    %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "Registry:    %s (%s)\n", cfg.Publish.RegistryPath, cfg.Publish.RegistryBackend)
			fmt.Fprintf(out, "Polish:      %s\n", yesNo(cfg.PolishActive()))
			fmt.Fprintf(out, "Email:       %s\n", yesNo(cfg.EmailConfigured()))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

// configTarget expands flagPath, falling back to the default config location.
func configTarget(flagPath string) (string, error) {
	if strings.TrimSpace(flagPath) == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", fmt.Errorf("determine default config path: %w", err)
		}
		return path, nil
	}
	path, err := config.ExpandPath(strings.TrimSpace(flagPath))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return path, nil
}

// writeDefaultRules seeds dir with the built-in topic spine and style rules,
// keeping files that already exist unless overwrite is set.
func writeDefaultRules(out io.Writer, dir string, overwrite bool) error {
	dir, err := config.ExpandPath(strings.TrimSpace(dir))
	if err != nil {
		return fmt.Errorf("resolve rules directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rules directory %q: %w", dir, err)
	}
	defaults := []struct {
		name string
		body []byte
	}{
		{"topic_spine.yaml", spine.DefaultYAML()},
		{"style_rules.yaml", style.DefaultRulesYAML()},
	}
	for _, f := range defaults {
		path := filepath.Join(dir, f.name)
		if !overwrite && fileutil.Exists(path) {
			fmt.Fprintf(out, "Kept existing %s\n", path)
			continue
		}
		if err := fileutil.WriteFileAtomic(path, f.body, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s\n", path)
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
