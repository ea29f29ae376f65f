// Package atom models the per-day unit of work and the directory store that
// routes it through incoming, validated, and failed.
package atom

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"loreforge/internal/contentid"
	"loreforge/internal/fact"
	"loreforge/internal/reference"
	"loreforge/internal/script"
	"loreforge/internal/style"
)

// DayLayout is the format of atom days.
const DayLayout = "2006-01-02"

// Picks maps a pick key (creature_pk, spell_pk, ...) to the chosen record.
type Picks map[string]reference.PK

// Source records where the atom's fact was read from.
type Source struct {
	ReferencePath string `json:"reference_path,omitempty"`
	DatasetFile   string `json:"dataset_file,omitempty"`
}

// Error is one validation failure appended to a failed atom.
type Error struct {
	At    string `json:"at"`
	Error string `json:"error"`
}

// Atom is the JSON document a day's run accumulates. Unknown top-level keys
// survive a load/save round trip.
type Atom struct {
	Day       string            `json:"day"`
	CreatedAt string            `json:"created_at"`
	Category  string            `json:"category"`
	Angle     string            `json:"angle"`
	Picks     Picks             `json:"picks"`
	Fact      *fact.Fact        `json:"fact,omitempty"`
	Style     *style.Style      `json:"style,omitempty"`
	Script    *script.Script    `json:"script,omitempty"`
	ScriptID  string            `json:"script_id,omitempty"`
	Content   *contentid.Bundle `json:"content,omitempty"`
	Narration string            `json:"narration,omitempty"`
	Source    Source            `json:"source"`
	Errors    []Error           `json:"errors,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownKeys = []string{
	"day", "created_at", "category", "angle", "picks", "fact", "style", "script",
	"script_id", "content", "narration", "source", "errors",
}

// New returns an empty atom for day created at now.
func New(day string, now time.Time) *Atom {
	return &Atom{
		Day:       day,
		CreatedAt: now.UTC().Format(time.RFC3339),
		Picks:     Picks{},
	}
}

// Reset clears every derived field so a re-run recomputes from scratch.
func (a *Atom) Reset() {
	a.Picks = Picks{}
	a.Fact = nil
	a.Style = nil
	a.Script = nil
	a.ScriptID = ""
	a.Content = nil
	a.Narration = ""
	a.Errors = nil
}

// AddError appends a validation failure stamped with at.
func (a *Atom) AddError(at time.Time, msg string) {
	a.Errors = append(a.Errors, Error{At: at.UTC().Format(time.RFC3339), Error: msg})
}

// IdentityInput collects the fields the identity builder hashes.
func (a *Atom) IdentityInput() contentid.Input {
	in := contentid.Input{
		Day:      a.Day,
		Category: a.Category,
		Angle:    a.Angle,
		ScriptID: a.ScriptID,
	}
	if a.Fact != nil {
		in.FactKind = a.Fact.Kind
		in.FactPK = string(a.Fact.PK)
		in.FactName = a.Fact.Name
		in.Document = a.Fact.Document
	}
	if a.Style != nil {
		in.Voice = a.Style.Voice
		in.Tone = a.Style.Tone
	}
	return in
}

// MarshalJSON writes the known fields followed by any preserved extras.
func (a Atom) MarshalJSON() ([]byte, error) {
	type plain Atom
	base, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}
	if len(a.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range a.Extra {
		if _, known := merged[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the known fields and keeps the rest in Extra.
func (a *Atom) UnmarshalJSON(data []byte) error {
	type plain Atom
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownKeys {
		delete(raw, k)
	}
	*a = Atom(p)
	if len(raw) > 0 {
		a.Extra = raw
	}
	return nil
}

// ParseDay validates a YYYY-MM-DD day.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(day))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q (expected YYYY-MM-DD)", day)
	}
	return t, nil
}

// ResolveDay returns explicit when set and valid, else today's UTC day.
func ResolveDay(explicit string, now time.Time) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit == "" {
		return now.UTC().Format(DayLayout), nil
	}
	if _, err := ParseDay(explicit); err != nil {
		return "", err
	}
	return explicit, nil
}
