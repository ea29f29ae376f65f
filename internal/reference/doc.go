// Package reference reads the static rules dataset: fixture-style JSON files
// holding arrays of {model, pk, fields} records, one file per entity kind.
//
// The dataset directory is resolved once per run (ACTIVE_SRD_PATH, then
// configuration, then the conventional reference/active and reference/srd5.1
// candidates) and is read-only for the lifetime of the process. File names
// per source key can be overridden in reference_sources.yaml.
package reference
