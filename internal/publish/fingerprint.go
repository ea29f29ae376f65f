// Package publish guards uploads against duplicates. Every upload is reduced
// to a fingerprint whose hash, together with the content id, is checked
// against a registry of earlier publishes.
package publish

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"loreforge/internal/atom"
)

// Fingerprint is the set of values that make an upload unique.
type Fingerprint struct {
	Day           string `json:"day"`
	Category      string `json:"category"`
	Angle         string `json:"angle"`
	ContentID     string `json:"content_id"`
	CanonicalHash string `json:"canonical_hash"`
	ScriptID      string `json:"script_id"`
	FactKind      string `json:"fact_kind"`
	FactPK        any    `json:"fact_pk"`
	FactName      string `json:"fact_name"`
	Hook          string `json:"hook"`
	Body          string `json:"body"`
	CTA           string `json:"cta"`
	VideoPath     string `json:"video_path"`
	VideoSHA256   string `json:"video_sha256"`
}

// BuildFingerprint collects the fingerprint of uploading videoPath (whose
// digest is videoSHA) for a.
func BuildFingerprint(a *atom.Atom, videoPath, videoSHA string) Fingerprint {
	fp := Fingerprint{
		Day:         a.Day,
		Category:    a.Category,
		Angle:       a.Angle,
		ScriptID:    a.ScriptID,
		VideoPath:   videoPath,
		VideoSHA256: videoSHA,
	}
	if a.Content != nil {
		fp.ContentID = a.Content.ContentID
		fp.CanonicalHash = a.Content.CanonicalHash
		if fp.ScriptID == "" {
			fp.ScriptID = a.Content.ScriptID
		}
	}
	if a.Fact != nil {
		fp.FactKind = a.Fact.Kind
		fp.FactName = strings.TrimSpace(a.Fact.Name)
		if a.Fact.PK != "" {
			fp.FactPK = a.Fact.PK
		}
	}
	if a.Script != nil {
		fp.Hook = strings.TrimSpace(a.Script.Hook)
		fp.Body = strings.TrimSpace(a.Script.Body)
		fp.CTA = strings.TrimSpace(a.Script.CTA)
	}
	return fp
}

// Canonical renders the fingerprint the way registries have always hashed
// it: a flat JSON object with sorted keys, ", " and ": " separators, and
// non-ASCII text left unescaped.
func (f Fingerprint) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("encode fingerprint: %w", err)
	}
	dec := json.NewDecoder(&buf)
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode fingerprint: %w", err)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out bytes.Buffer
	out.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			out.WriteString(", ")
		}
		writeJSONString(&out, k)
		out.WriteString(": ")
		switch v := fields[k].(type) {
		case nil:
			out.WriteString("null")
		case string:
			writeJSONString(&out, v)
		case json.Number:
			out.WriteString(v.String())
		case bool:
			out.WriteString(strconv.FormatBool(v))
		default:
			return nil, fmt.Errorf("encode fingerprint: unsupported value for %s", k)
		}
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

// writeJSONString quotes s escaping only quotes, backslashes and control
// characters.
func writeJSONString(buf *bytes.Buffer, s string) {
	const digits = "0123456789abcdef"
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(digits[r>>4])
				buf.WriteByte(digits[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

// Hash returns the publish hash: the hex SHA-256 of the canonical form.
func (f Fingerprint) Hash() (string, error) {
	data, err := f.Canonical()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
