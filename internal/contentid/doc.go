// Package contentid derives the deterministic identity of a day's content.
//
// Every identifier is a pure function of the day, category, fact identity,
// and script text: script_id hashes the script, canonical_hash binds the
// script to the fact, and content_id, episode_id, and the per-segment
// voice/visual ids are derived from those by hashing. Re-running a day with
// unchanged inputs reproduces every identifier bit for bit, and any change to
// the script cascades to every identifier except month_bundle_id.
//
// Derivation is best-effort: a missing fact kind or key becomes "unknown"
// rather than an error, so an unattended run always yields an identity.
package contentid
