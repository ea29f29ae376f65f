package textutil

import (
	"regexp"
	"strings"
)

var slugSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases value and collapses every run of characters outside
// [a-z0-9] into a single hyphen, trimming hyphens at both ends. An empty
// result becomes "na". Slug is idempotent.
func Slug(value string) string {
	return SlugOr(value, "na")
}

// SlugOr is Slug with a caller-chosen replacement for empty results.
func SlugOr(value, fallback string) string {
	out := slugSplitPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	out = strings.Trim(out, "-")
	if out == "" {
		return fallback
	}
	return out
}
