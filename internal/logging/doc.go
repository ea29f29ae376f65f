// Package logging assembles structured slog loggers and formatting helpers used
// across loreforge commands.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and lifts the pipeline day, stage, and correlation ID out of the
// request context so stage code does not have to repeat them. A no-op logger
// is provided for tests and wiring code that cannot fail.
package logging
