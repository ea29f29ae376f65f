package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loreforge/internal/validate"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dayFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage for a day: new, pick, fact, style, script, identity, validate",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := ctx.resolveDay(dayFlag)
			if err != nil {
				return err
			}
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}
			res, err := runner.Run(ctx.commandCtx(cmd, day), day)
			if err != nil && !errors.Is(err, validate.ErrInvalid) {
				return err
			}
			if ctx.jsonOutput() {
				if jerr := writeJSON(cmd, res); jerr != nil {
					return jerr
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Day:        %s\n", res.Day)
				fmt.Fprintf(out, "Topic:      %s / %s\n", res.Category, res.Angle)
				if res.ContentID != "" {
					fmt.Fprintf(out, "Content ID: %s\n", res.ContentID)
				}
				fmt.Fprintf(out, "Result:     %s -> %s\n", res.Stage, res.Path)
				if res.Reason != "" {
					fmt.Fprintf(out, "Reason:     %s\n", res.Reason)
				}
			}
			return withExitCode(err, validateExitRules...)
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day to run (YYYY-MM-DD, default today UTC)")
	return cmd
}
