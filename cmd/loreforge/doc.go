// Package main hosts the loreforge CLI entrypoint and command graph.
//
// Every pipeline stage is its own command taking --day, reading and writing
// the day's atom file, and exiting with a stage-specific code on failure.
// `run` chains the stages; `gate`, `upload`, `health`, and `export` operate
// on validated atoms. The command context resolves configuration, the
// reference dataset, and the structured logger once per invocation so
// subcommands only wire internal packages together.
//
// Keep this package lean: new behaviour belongs in internal packages first,
// surfaced here through dedicated commands or flags.
package main
