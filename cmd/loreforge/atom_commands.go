package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"loreforge/internal/atom"
	"loreforge/internal/pipeline"
)

func newAtomCommand(ctx *commandContext) *cobra.Command {
	atomCmd := &cobra.Command{
		Use:   "atom",
		Short: "Run a single stage against the day's incoming atom",
	}

	type stageFunc func(*pipeline.Runner) func(context.Context, string) (*atom.Atom, error)
	stages := []struct {
		use   string
		short string
		fn    stageFunc
		rules []exitRule
	}{
		{"new", "Create or reset the incoming atom and assign the day's topic",
			func(r *pipeline.Runner) func(context.Context, string) (*atom.Atom, error) { return r.NewAtom }, nil},
		{"pick", "Pick the day's reference record",
			func(r *pipeline.Runner) func(context.Context, string) (*atom.Atom, error) { return r.Pick }, pickExitRules},
		{"fact", "Attach the picked record and its child records",
			func(r *pipeline.Runner) func(context.Context, string) (*atom.Atom, error) { return r.Fact }, factExitRules},
		{"style", "Select voice, tone, persona, and voiceover",
			func(r *pipeline.Runner) func(context.Context, string) (*atom.Atom, error) { return r.Style }, styleExitRules},
		{"script", "Write hook, body, and call to action",
			func(r *pipeline.Runner) func(context.Context, string) (*atom.Atom, error) { return r.Script }, scriptExitRules},
		{"identity", "Derive the content identity bundle",
			func(r *pipeline.Runner) func(context.Context, string) (*atom.Atom, error) { return r.Identity }, nil},
	}
	for _, stage := range stages {
		atomCmd.AddCommand(newAtomStageCommand(ctx, stage.use, stage.short, stage.fn, stage.rules))
	}
	atomCmd.AddCommand(newAtomShowCommand(ctx))
	return atomCmd
}

func newAtomStageCommand(ctx *commandContext, use, short string, fn func(*pipeline.Runner) func(context.Context, string) (*atom.Atom, error), rules []exitRule) *cobra.Command {
	var dayFlag string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := ctx.resolveDay(dayFlag)
			if err != nil {
				return err
			}
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}
			a, err := fn(runner)(ctx.commandCtx(cmd, day), day)
			if err != nil {
				return withExitCode(err, rules...)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, a)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s %s\n", use, ctx.atomStore().Path(atom.Incoming, day))
			return nil
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day of the atom (YYYY-MM-DD, default today UTC)")
	return cmd
}

func newAtomShowCommand(ctx *commandContext) *cobra.Command {
	var dayFlag string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the day's atom from whichever stage holds it",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := ctx.resolveDay(dayFlag)
			if err != nil {
				return err
			}
			store := ctx.atomStore()
			stage, err := store.Locate(day)
			if err != nil {
				return err
			}
			raw, err := store.LoadRaw(stage, day)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, raw)
			}
			data, err := json.MarshalIndent(raw, "", "  ")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", store.Path(stage, day))
			fmt.Fprintln(out, string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day of the atom (YYYY-MM-DD, default today UTC)")
	return cmd
}
