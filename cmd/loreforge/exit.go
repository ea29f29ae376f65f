package main

import (
	"errors"
	"fmt"

	"loreforge/internal/fact"
	"loreforge/internal/picker"
	"loreforge/internal/script"
	"loreforge/internal/services"
	"loreforge/internal/validate"
)

// cliExitError carries a stage-specific process exit status.
type cliExitError struct {
	code int
	err  error
}

func (e *cliExitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *cliExitError) Unwrap() error { return e.err }

// exitRule maps an error class onto an exit status.
type exitRule struct {
	target error
	code   int
}

// withExitCode tags err with the code of the first matching rule.
// Unmatched errors keep the generic status 1.
func withExitCode(err error, rules ...exitRule) error {
	if err == nil {
		return nil
	}
	var existing *cliExitError
	if errors.As(err, &existing) {
		return err
	}
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			return &cliExitError{code: rule.code, err: err}
		}
	}
	return err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *cliExitError
	if errors.As(err, &exitErr) && exitErr.code > 0 {
		return exitErr.code
	}
	return 1
}

// Stage exit statuses. Codes are per command, not global.
var (
	pickExitRules = []exitRule{
		{picker.ErrDatasetMissing, 2},
		{picker.ErrNoCandidates, 3},
	}
	factExitRules = []exitRule{
		{fact.ErrUnsupportedCategory, 3},
		{fact.ErrMissingPK, 4},
		{fact.ErrPKNotFound, 5},
	}
	styleExitRules = []exitRule{
		{services.ErrNotFound, 3},
		{services.ErrValidation, 4},
	}
	scriptExitRules = []exitRule{
		{script.ErrUnsupported, 4},
		{services.ErrNotFound, 2},
		{services.ErrValidation, 3},
	}
	validateExitRules = []exitRule{
		{validate.ErrInvalid, 2},
		{services.ErrNotFound, 3},
	}
	gateRequestExitRules = []exitRule{
		{services.ErrConfiguration, 2},
		{services.ErrNotFound, 3},
		{services.ErrValidation, 3},
		{services.ErrExternalTool, 4},
	}
	gateCheckExitRules = []exitRule{
		{services.ErrConfiguration, 2},
		{services.ErrExternalTool, 3},
	}
)
