package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loreforge/internal/publish"
	"loreforge/internal/services/youtube"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var dayFlag string
	var videoFlag string
	var dryRun bool
	var allowDuplicate bool

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the day's rendered short to YouTube and record it in the publish registry",
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

			var res publish.UploadResult
			err = ctx.withLock(day, func() error {
				var uerr error
				res, uerr = ctx.newUploader(registry).Upload(ctx.commandCtx(cmd, day), publish.UploadRequest{
					Day:            day,
					VideoPath:      video,
					DryRun:         dryRun,
					AllowDuplicate: allowDuplicate,
				})
				return uerr
			})
			if err != nil {
				if errors.Is(err, publish.ErrDuplicatePublish) {
					fmt.Fprintln(cmd.ErrOrStderr(), "Refusing to publish twice; pass --allow-duplicate to override.")
				}
				return &cliExitError{code: publish.ExitCode(err), err: err}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			if res.DryRun {
				fmt.Fprintf(out, "DRY RUN: %s\n", res.Metadata.Title)
				fmt.Fprintf(out, "content_id=%s\npublish_hash=%s\n", res.ContentID, res.PublishHash)
				fp, err := res.Fingerprint.Canonical()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "fingerprint=%s\n", fp)
				return nil
			}
			fmt.Fprintf(out, "Uploaded: %s\n", res.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day of the validated atom (YYYY-MM-DD, default today UTC)")
	cmd.Flags().StringVar(&videoFlag, "video", "", "Video file (default the latest render)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the fingerprint and metadata without uploading")
	cmd.Flags().BoolVar(&allowDuplicate, "allow-duplicate", false, "Publish even when the registry already holds this content")

	cmd.AddCommand(newUploadAuthCommand(ctx))
	return cmd
}

func newUploadAuthCommand(ctx *commandContext) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize YouTube uploads and store the OAuth token",
		Long: "Without --code, prints the consent URL. Open it, approve access, and " +
			"run again with the code Google shows to write the token file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			oauthCfg, err := youtube.OAuthConfig(cfg.YouTube.ClientSecretsPath, cfg.YouTube.TokenPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if strings.TrimSpace(code) == "" {
				fmt.Fprintln(out, "Open this URL and approve access:")
				fmt.Fprintln(out, youtube.AuthURL(oauthCfg))
				fmt.Fprintln(out, "Then run: loreforge upload auth --code <code>")
				return nil
			}
			if err := youtube.Exchange(ctx.commandCtx(cmd, ""), oauthCfg, strings.TrimSpace(code), cfg.YouTube.TokenPath); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token written to %s\n", cfg.YouTube.TokenPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the consent page")
	return cmd
}
