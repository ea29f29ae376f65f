// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp the pipeline day, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the CLI classify
//     failures (configuration, data, external) and pick exit codes.
//
// Subpackages hold the HTTP clients for Discord, the language model used for
// script polish, and YouTube.
package services
