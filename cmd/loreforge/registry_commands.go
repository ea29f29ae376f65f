package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loreforge/internal/publish"
)

func newRegistryCommand(ctx *commandContext) *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the duplicate-publish registry",
	}
	registryCmd.AddCommand(newRegistryListCommand(ctx))
	registryCmd.AddCommand(newRegistryCheckCommand(ctx))
	return registryCmd
}

func newRegistryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List published records",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			defer registry.Close()
			records, err := registry.List(ctx.commandCtx(cmd, ""))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "Registry is empty")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{r.Day, r.ContentID, shortText(r.PublishHash, 12), r.YouTubeURL, r.PublishedUTC})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Day", "Content ID", "Hash", "URL", "Published"}, rows))
			return nil
		},
	}
}

func newRegistryCheckCommand(ctx *commandContext) *cobra.Command {
	var dayFlag string
	var videoFlag string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether publishing the day's atom would be a duplicate",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := ctx.resolveDay(dayFlag)
			if err != nil {
				return err
			}
			video := strings.TrimSpace(videoFlag)
			if video == "" {
				video = ctx.configValue().LatestVideoPath()
			}
			registry, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			defer registry.Close()

			res, err := ctx.newUploader(registry).Upload(ctx.commandCtx(cmd, day), publish.UploadRequest{
				Day: day, VideoPath: video, DryRun: true,
			})
			if ctx.jsonOutput() && (err == nil || errors.Is(err, publish.ErrDuplicatePublish)) {
				if jerr := writeJSON(cmd, res); jerr != nil {
					return jerr
				}
			}
			if err != nil {
				return &cliExitError{code: publish.ExitCode(err), err: err}
			}
			if !ctx.jsonOutput() {
				fmt.Fprintf(cmd.OutOrStdout(), "CLEAR: %s content_id=%s hash=%s\n", day, res.ContentID, shortText(res.PublishHash, 16))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day of the validated atom (YYYY-MM-DD, default today UTC)")
	cmd.Flags().StringVar(&videoFlag, "video", "", "Video file (default the latest render)")
	return cmd
}

func shortText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
