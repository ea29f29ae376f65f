package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"loreforge/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Monthly export of validated atoms",
	}
	exportCmd.AddCommand(newExportManifestCommand(ctx))
	exportCmd.AddCommand(newExportPackCommand(ctx))
	return exportCmd
}

func newExportManifestCommand(ctx *commandContext) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write manifest.json and index.md for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			month = strings.TrimSpace(month)
			if month == "" {
				month = ctx.now().UTC().Format("2006-01")
			}
			if err := export.ValidateMonth(month); err != nil {
				return &cliExitError{code: 2, err: err}
			}
			manifest, err := export.Build(ctx.atomStore(), month, ctx.now())
			if err != nil {
				return err
			}
			paths, err := export.Write(ctx.configValue().MonthlyDir(), manifest)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, paths)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d entries for %s\n", manifest.Count, month)
			fmt.Fprintln(out, paths.JSON)
			fmt.Fprintln(out, paths.Markdown)
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Month to export (YYYY-MM, default current UTC month)")
	return cmd
}

func newExportPackCommand(ctx *commandContext) *cobra.Command {
	var month string
	var manifest string

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Write the zine pack (content.md, assets.csv) from a month's manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			month = strings.TrimSpace(month)
			if month == "" {
				month = ctx.now().UTC().Format("2006-01")
			}
			if err := export.ValidateMonth(month); err != nil {
				return &cliExitError{code: 2, err: err}
			}
			paths, err := export.WritePack(ctx.configValue().MonthlyDir(), month, manifest)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, paths)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, paths.Content)
			fmt.Fprintln(out, paths.Assets)
			return nil
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "Month to pack (YYYY-MM, default current UTC month)")
	cmd.Flags().StringVar(&manifest, "manifest", "", "Read this manifest.json instead of the month's own")
	return cmd
}
