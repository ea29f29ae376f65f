// Package validate checks the shape of finished atoms and routes each one to
// validated/ or failed/.
package validate

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"loreforge/internal/contentid"
)

//go:embed atom_schema.json
var schemaJSON []byte

var (
	requiredTop     = []string{"day", "created_at", "category", "angle", "style", "picks", "fact", "script", "script_id", "content"}
	requiredContent = []string{"content_id", "episode_id", "month_id", "month_bundle_id", "canonical_hash", "script_id", "asset_contract", "segments", "tags"}
	scriptParts     = contentid.SegmentOrder
)

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// SchemaJSON returns the embedded atom schema.
func SchemaJSON() []byte {
	return append([]byte(nil), schemaJSON...)
}

// Check runs the shape checks on a decoded atom and returns the first
// failure as a one-line message, or "" when the atom is well formed.
func Check(raw map[string]any) string {
	for _, key := range requiredTop {
		if _, ok := raw[key]; !ok {
			return "missing key: " + key
		}
	}

	if _, ok := raw["picks"].(map[string]any); !ok {
		return "picks not dict"
	}
	if _, ok := raw["fact"].(map[string]any); !ok {
		return "fact not dict"
	}
	script, ok := raw["script"].(map[string]any)
	if !ok {
		return "script not dict"
	}
	content, ok := raw["content"].(map[string]any)
	if !ok {
		return "content not dict"
	}

	for _, part := range scriptParts {
		if strings.TrimSpace(text(script[part])) == "" {
			return "script missing/blank: " + part
		}
	}

	scriptID := text(raw["script_id"])
	expect := contentid.ScriptID(text(script["hook"]), text(script["body"]), text(script["cta"]))
	if scriptID != expect {
		return "script_id does not match script content"
	}

	for _, key := range requiredContent {
		if _, ok := content[key]; !ok {
			return "content missing key: " + key
		}
	}
	if text(content["script_id"]) != scriptID {
		return "content.script_id does not match script_id"
	}

	segments, _ := content["segments"].(map[string]any)
	for _, part := range scriptParts {
		seg, ok := segments[part].(map[string]any)
		if !ok {
			return "content.segments missing: " + part
		}
		for _, id := range []string{"segment_id", "voice_track_id", "visual_asset_id"} {
			if strings.TrimSpace(text(seg[id])) == "" {
				return fmt.Sprintf("segment missing %s: %s", id, part)
			}
		}
	}
	return ""
}

// Schema validates raw against the embedded JSON schema and returns the
// joined violations, or "" when it conforms.
func Schema(raw map[string]any) (string, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return "", fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return "", nil
	}
	msgs := make([]string, len(result.Errors()))
	for i, e := range result.Errors() {
		msgs[i] = e.String()
	}
	return "schema: " + strings.Join(msgs, "; "), nil
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
