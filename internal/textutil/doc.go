// Package textutil provides the small text helpers shared by the pipeline:
// slugs for identifiers and tags, length-capped display strings, title
// casing for category labels, and a token-overlap score used to reject
// rewrites that drift away from their source text.
package textutil
