// Package export assembles the monthly manifest of validated atoms used by
// zine and compilation workflows.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/contentid"
	"loreforge/internal/fileutil"
	"loreforge/internal/services"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidateMonth checks the YYYY-MM form.
func ValidateMonth(month string) error {
	if !monthPattern.MatchString(month) {
		return services.Wrap(services.ErrValidation, "export", "month", fmt.Sprintf("month %q must be YYYY-MM", month), nil)
	}
	return nil
}

// Segment mirrors the identifiers of one script part.
type Segment struct {
	SegmentID     string `json:"segment_id"`
	VoiceTrackID  string `json:"voice_track_id"`
	VisualAssetID string `json:"visual_asset_id"`
}

// Entry is one day in the manifest.
type Entry struct {
	Day           string             `json:"day"`
	ContentID     string             `json:"content_id"`
	EpisodeID     string             `json:"episode_id"`
	MonthBundleID string             `json:"month_bundle_id"`
	Category      string             `json:"category"`
	Angle         string             `json:"angle"`
	Voice         string             `json:"voice"`
	ScriptID      string             `json:"script_id"`
	Title         string             `json:"title"`
	Hook          string             `json:"hook"`
	Body          string             `json:"body"`
	CTA           string             `json:"cta"`
	Segments      map[string]Segment `json:"segments"`
	Tags          []string           `json:"tags"`
	Derived       bool               `json:"derived,omitempty"`
}

// Manifest lists the validated atoms of one month.
type Manifest struct {
	Month         string  `json:"month"`
	MonthBundleID string  `json:"month_bundle_id"`
	GeneratedUTC  string  `json:"generated_utc"`
	Count         int     `json:"count"`
	Entries       []Entry `json:"entries"`
}

// Build collects every validated atom of month. Atoms without a content
// block get one derived by the identity builder.
func Build(store *atom.Store, month string, now time.Time) (Manifest, error) {
	if err := ValidateMonth(month); err != nil {
		return Manifest{}, err
	}
	days, err := store.List(atom.Validated)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{Month: month, GeneratedUTC: now.UTC().Format(time.RFC3339), Entries: []Entry{}}
	for _, day := range days {
		if !strings.HasPrefix(day, month+"-") {
			continue
		}
		a, err := store.Load(atom.Validated, day)
		if err != nil {
			return Manifest{}, err
		}
		m.Entries = append(m.Entries, entryFor(a))
	}
	sort.Slice(m.Entries, func(i, j int) bool { return m.Entries[i].Day < m.Entries[j].Day })
	m.Count = len(m.Entries)
	if m.Count > 0 && m.Entries[0].MonthBundleID != "" {
		m.MonthBundleID = m.Entries[0].MonthBundleID
	} else {
		m.MonthBundleID = "zine-" + month + "-pending"
	}
	return m, nil
}

func entryFor(a *atom.Atom) Entry {
	bundle := a.Content
	derived := false
	if bundle == nil || bundle.ContentID == "" {
		b := contentid.Build(a.IdentityInput())
		bundle = &b
		derived = true
	}
	e := Entry{
		Day:           a.Day,
		ContentID:     bundle.ContentID,
		EpisodeID:     bundle.EpisodeID,
		MonthBundleID: bundle.MonthBundleID,
		Category:      a.Category,
		Angle:         a.Angle,
		ScriptID:      a.ScriptID,
		Title:         "Untitled",
		Segments:      map[string]Segment{},
		Tags:          append([]string{}, bundle.Tags...),
		Derived:       derived,
	}
	if e.ScriptID == "" {
		e.ScriptID = bundle.ScriptID
	}
	if a.Style != nil {
		e.Voice = a.Style.Voice
	}
	if a.Fact != nil {
		switch {
		case strings.TrimSpace(a.Fact.Name) != "":
			e.Title = strings.TrimSpace(a.Fact.Name)
		case a.Fact.Kind != "":
			e.Title = a.Fact.Kind
		}
	}
	if a.Script != nil {
		e.Hook, e.Body, e.CTA = a.Script.Hook, a.Script.Body, a.Script.CTA
	}
	for _, name := range contentid.SegmentOrder {
		seg, _ := bundle.Segments.Get(name)
		e.Segments[name] = Segment{SegmentID: seg.SegmentID, VoiceTrackID: seg.VoiceTrackID, VisualAssetID: seg.VisualAssetID}
	}
	return e
}

// Markdown renders the human-readable index.
func Markdown(m Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly Export Manifest: %s\n\n", m.Month)
	fmt.Fprintf(&b, "- Generated (UTC): %s\n", m.GeneratedUTC)
	fmt.Fprintf(&b, "- Bundle ID: `%s`\n", m.MonthBundleID)
	fmt.Fprintf(&b, "- Entries: %d\n\n", m.Count)
	b.WriteString("## Entries\n")
	for _, e := range m.Entries {
		fmt.Fprintf(&b, "\n### %s: %s\n", e.Day, e.Title)
		fmt.Fprintf(&b, "- Content ID: `%s`\n", e.ContentID)
		fmt.Fprintf(&b, "- Episode ID: `%s`\n", e.EpisodeID)
		fmt.Fprintf(&b, "- Category: `%s`\n", e.Category)
		fmt.Fprintf(&b, "- Angle: `%s`\n", e.Angle)
		fmt.Fprintf(&b, "- Voice: `%s`\n", e.Voice)
		fmt.Fprintf(&b, "- Script ID: `%s`\n", e.ScriptID)
		fmt.Fprintf(&b, "- Segment IDs: hook `%s`, body `%s`, cta `%s`\n",
			e.Segments[contentid.SegmentHook].SegmentID,
			e.Segments[contentid.SegmentBody].SegmentID,
			e.Segments[contentid.SegmentCTA].SegmentID)
	}
	return b.String()
}

// Paths of the files written by Write.
type Paths struct {
	JSON     string `json:"json"`
	Markdown string `json:"markdown"`
}

// Write stores manifest.json and index.md under root/<month>/.
func Write(root string, m Manifest) (Paths, error) {
	dir := filepath.Join(root, m.Month)
	paths := Paths{
		JSON:     ManifestPath(root, m.Month),
		Markdown: filepath.Join(dir, "index.md"),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, services.Wrap(services.ErrTransient, "export", "write", dir, err)
	}
	if err := fileutil.WriteJSONAtomic(paths.JSON, m); err != nil {
		return Paths{}, services.Wrap(services.ErrTransient, "export", "write", paths.JSON, err)
	}
	if err := fileutil.WriteFileAtomic(paths.Markdown, []byte(Markdown(m)), 0o644); err != nil {
		return Paths{}, services.Wrap(services.ErrTransient, "export", "write", paths.Markdown, err)
	}
	return paths, nil
}
