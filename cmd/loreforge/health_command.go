package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loreforge/internal/atom"
	"loreforge/internal/gate"
	"loreforge/internal/health"
	"loreforge/internal/logging"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var dayFlag string
	var notify bool
	var always bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the day's atom, gate, and registry and optionally alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := ctx.resolveDay(dayFlag)
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			registry, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			defer registry.Close()

			var gateState gate.StateStore
			if strings.TrimSpace(cfg.Discord.WebhookURL) != "" || strings.TrimSpace(cfg.Discord.ChannelID) != "" {
				gateState = ctx.gateState()
			}

			runCtx := ctx.commandCtx(cmd, day)
			checker := health.NewChecker(ctx.atomStore(), gateState, registry, ctx.metrics, ctx.notifier(), ctx.loggerValue()).WithClock(ctx.now)
			report := checker.Run(runCtx, day)
			ctx.recordAtomCounts()
			if err := ctx.metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
				logging.WarnWithContext(ctx.loggerValue(), "metrics textfile not written", "metrics_write_failed", logging.Error(err))
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, report.Line())
				rows := make([][]string, 0, len(report.Checks))
				for _, check := range report.Checks {
					rows = append(rows, []string{check.Name, string(check.Level), check.Detail})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Check", "Level", "Detail"}, rows))
				if report.Next != "" {
					fmt.Fprintf(out, "Next: %s\n", report.Next)
				}
			}

			if notify {
				if err := checker.Notify(runCtx, report, always); err != nil {
					return &cliExitError{code: 3, err: fmt.Errorf("health alert not delivered: %w", err)}
				}
			}
			if !report.Healthy() {
				return &cliExitError{code: 1, err: fmt.Errorf("pipeline health %s for %s", report.Overall, day)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day to check (YYYY-MM-DD, default today UTC)")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send the report through the configured notifiers when unhealthy")
	cmd.Flags().BoolVar(&always, "always", false, "With --notify, also send healthy reports")
	return cmd
}

// recordAtomCounts refreshes the per-stage atom gauges. Unreadable stage
// directories keep their previous value.
func (c *commandContext) recordAtomCounts() {
	store := c.atomStore()
	for _, stage := range atom.Stages {
		if days, err := store.List(stage); err == nil {
			c.metrics.SetAtoms(string(stage), len(days))
		}
	}
}
