package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loreforge/internal/gate"
	"loreforge/internal/lock"
)

func newGateCommand(ctx *commandContext) *cobra.Command {
	gateCmd := &cobra.Command{
		Use:   "gate",
		Short: "Discord publish approval gate",
	}
	gateCmd.AddCommand(newGateRequestCommand(ctx))
	gateCmd.AddCommand(newGateCheckCommand(ctx))
	gateCmd.AddCommand(newGateStatusCommand(ctx))
	return gateCmd
}

func newGateRequestCommand(ctx *commandContext) *cobra.Command {
	var dayFlag string
	var force bool

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Post an approval request for a validated atom",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := ctx.resolveDay(dayFlag)
			if err != nil {
				return err
			}
			var res gate.RequestResult
			err = ctx.withLock(lock.GateName, func() error {
				var rerr error
				res, rerr = ctx.newGate(nil).Request(ctx.commandCtx(cmd, day), day, force)
				return rerr
			})
			if err != nil {
				return withExitCode(err, gateRequestExitRules...)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			if res.Day != res.RequestedDay {
				fmt.Fprintf(out, "No validated atom for %s; using latest %s\n", res.RequestedDay, res.Day)
			}
			if res.Existing {
				fmt.Fprintf(out, "Request already %s for %s (content_id=%s); use --force to re-post\n", res.Status, res.Day, res.ContentID)
				return nil
			}
			fmt.Fprintf(out, "Approval requested for %s (content_id=%s, message=%s)\n", res.Day, res.ContentID, res.MessageID)
			return nil
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day to request (YYYY-MM-DD, default today UTC)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-post even when a request is already pending, approved, or published")
	return cmd
}

func newGateCheckCommand(ctx *commandContext) *cobra.Command {
	var publish bool
	var videoFlag string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Read approver commands from the channel and apply them",
		RunE: func(cmd *cobra.Command, args []string) error {
			var res gate.CheckResult
			err := ctx.withLock(lock.GateName, func() error {
				var publisher gate.Publisher
				if publish {
					registry, err := ctx.openRegistry()
					if err != nil {
						return err
					}
					defer registry.Close()
					video := strings.TrimSpace(videoFlag)
					if video == "" {
						video = ctx.configValue().LatestVideoPath()
					}
					publisher = uploadPublisher(ctx.newUploader(registry), video)
				}
				var cerr error
				res, cerr = ctx.newGate(publisher).Check(ctx.commandCtx(cmd, ""), publish)
				return cerr
			})
			if err != nil {
				return withExitCode(err, gateCheckExitRules...)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			if len(res.Decisions) == 0 {
				fmt.Fprintf(out, "No new decisions (%d pending)\n", len(res.Pending))
				return nil
			}
			for _, d := range res.Decisions {
				line := fmt.Sprintf("%s %s by %s (content_id=%s)", d.Day, d.Status, d.By, d.ContentID)
				if d.PublishRC != nil {
					line += fmt.Sprintf(" publish_rc=%d", *d.PublishRC)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&publish, "publish", false, "Upload approved atoms immediately")
	cmd.Flags().StringVar(&videoFlag, "video", "", "Video to publish (default the latest render)")
	return cmd
}

func newGateStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List approval records",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := ctx.newGate(nil).Status(ctx.commandCtx(cmd, ""))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No approval records")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.Day, string(r.Status), r.ContentID, r.RequestedUTC, r.DecisionBy, r.PublishedURL})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Day", "Status", "Content ID", "Requested", "Decided By", "URL"}, rows))
			return nil
		},
	}
}
