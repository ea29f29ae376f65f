package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"loreforge/internal/fileutil"
	"loreforge/internal/reference"
)

func newReferenceCommand(ctx *commandContext) *cobra.Command {
	refCmd := &cobra.Command{
		Use:   "reference",
		Short: "Reference dataset utilities",
	}
	refCmd.AddCommand(newReferencePathCommand(ctx))
	refCmd.AddCommand(newReferenceInventoryCommand(ctx))
	return refCmd
}

func newReferencePathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved reference dataset directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.referenceDir()
			if err != nil {
				return &cliExitError{code: 2, err: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

func newReferenceInventoryCommand(ctx *commandContext) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Hash every dataset file and count its records",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.referenceDir()
			if err != nil {
				return &cliExitError{code: 2, err: err}
			}
			inv, err := reference.TakeInventory(dir, ctx.now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if write {
				path := filepath.Join(ctx.configValue().ArchiveDir(), "reference_inventory.json")
				if err := fileutil.WriteJSONAtomic(path, inv); err != nil {
					return err
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(out, "Wrote %s\n", path)
				}
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, inv)
			}
			rows := make([][]string, 0, len(inv.Files))
			for _, f := range inv.Files {
				rows = append(rows, []string{f.Name, strconv.Itoa(f.Records), strconv.FormatInt(f.Bytes, 10), shortText(f.SHA256, 16)})
			}
			fmt.Fprintf(out, "Dataset: %s\n", inv.Dir)
			fmt.Fprintln(out, renderTable(out, []string{"File", "Records", "Bytes", "SHA256"}, rows, 1, 2))
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Also write the inventory to the archive directory")
	return cmd
}
