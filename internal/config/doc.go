// Package config loads, normalizes, and validates loreforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, DISCORD_WEBHOOK_URL, and ALLOW_DUPLICATE_PUBLISH. Editorial
// rules (topic spine, style rules) live in YAML files under paths.rules_dir
// and are loaded by the packages that own them.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
