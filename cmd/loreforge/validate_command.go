package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"loreforge/internal/validate"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var dayFlag string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the incoming atom and route it to validated/ or failed/",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := ctx.resolveDay(dayFlag)
			if err != nil {
				return err
			}
			runner, err := ctx.newRunner()
			if err != nil {
				return err
			}
			var outcome validate.Outcome
			err = ctx.withLock(day, func() error {
				var verr error
				outcome, verr = runner.Validate(ctx.commandCtx(cmd, day), day)
				return verr
			})
			if err != nil && !errors.Is(err, validate.ErrInvalid) {
				return withExitCode(err, validateExitRules...)
			}
			if ctx.jsonOutput() {
				if jerr := writeJSON(cmd, outcome); jerr != nil {
					return jerr
				}
			} else if outcome.Reason != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "FAILED: %s -> %s\n", outcome.Reason, outcome.Path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "VALID: %s\n", outcome.Path)
			}
			return withExitCode(err, validateExitRules...)
		},
	}

	cmd.Flags().StringVar(&dayFlag, "day", "", "Day of the atom (YYYY-MM-DD, default today UTC)")
	return cmd
}
