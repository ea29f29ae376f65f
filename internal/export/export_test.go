package export_test

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/contentid"
	"loreforge/internal/export"
	"loreforge/internal/fact"
	"loreforge/internal/script"
	"loreforge/internal/services"
	"loreforge/internal/style"
)

var fixedNow = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func saveAtom(t *testing.T, store *atom.Store, day string, withContent bool) *atom.Atom {
	t.Helper()
	a := atom.New(day, fixedNow)
	a.Category = "spell_use_case"
	a.Angle = "best_moment"
	a.Fact = &fact.Fact{Kind: "spell", PK: "10", Name: "Hold Person"}
	a.Style = &style.Style{Voice: "friendly-vet", Tone: "wry"}
	a.Script = &script.Script{Hook: "Freeze them.", Body: "Paralysis wins fights.", CTA: "Try it."}
	a.ScriptID = a.Script.ID()
	if withContent {
		b := contentid.Build(a.IdentityInput())
		a.Content = &b
	}
	if err := store.Save(atom.Validated, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	return a
}

func TestBuildManifest(t *testing.T) {
	store := atom.NewStore(filepath.Join(t.TempDir(), "atoms"))
	second := saveAtom(t, store, "2024-04-02", true)
	saveAtom(t, store, "2024-04-01", false)
	saveAtom(t, store, "2024-05-01", true)

	m, err := export.Build(store, "2024-04", fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Count != 2 || m.Entries[0].Day != "2024-04-01" || m.Entries[1].Day != "2024-04-02" {
		t.Fatalf("unexpected entries: %+v", m.Entries)
	}
	if !m.Entries[0].Derived || m.Entries[0].ContentID == "" {
		t.Fatalf("expected derived content for first entry: %+v", m.Entries[0])
	}
	if m.Entries[1].ContentID != second.Content.ContentID || m.Entries[1].Derived {
		t.Fatalf("stored content should be used: %+v", m.Entries[1])
	}
	if !strings.HasPrefix(m.MonthBundleID, "zine-2024-04-") {
		t.Fatalf("bundle id = %q", m.MonthBundleID)
	}
	if m.Entries[1].Title != "Hold Person" || m.Entries[1].Voice != "friendly-vet" {
		t.Fatalf("entry = %+v", m.Entries[1])
	}
	if m.Entries[1].Segments["body"].SegmentID != second.Content.Segments.Body.SegmentID {
		t.Fatal("segment ids should carry over")
	}
}

func TestEmptyMonthAndBadMonth(t *testing.T) {
	store := atom.NewStore(filepath.Join(t.TempDir(), "atoms"))
	m, err := export.Build(store, "2024-06", fixedNow)
	if err != nil || m.Count != 0 || m.MonthBundleID != "zine-2024-06-pending" {
		t.Fatalf("empty Build = %+v, %v", m, err)
	}
	if _, err := export.Build(store, "2024-13", fixedNow); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWriteManifest(t *testing.T) {
	store := atom.NewStore(filepath.Join(t.TempDir(), "atoms"))
	saveAtom(t, store, "2024-04-02", true)
	m, err := export.Build(store, "2024-04", fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	root := filepath.Join(t.TempDir(), "monthly")
	paths, err := export.Write(root, m)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if paths.JSON != filepath.Join(root, "2024-04", "manifest.json") {
		t.Fatalf("json path = %s", paths.JSON)
	}
	data, err := os.ReadFile(paths.JSON)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded export.Manifest
	if err := json.Unmarshal(data, &decoded); err != nil || decoded.Count != 1 {
		t.Fatalf("decoded = %+v, %v", decoded, err)
	}
	md, err := os.ReadFile(paths.Markdown)
	if err != nil {
		t.Fatalf("read markdown: %v", err)
	}
	if !strings.Contains(string(md), "### 2024-04-02: Hold Person") {
		t.Fatalf("markdown:\n%s", md)
	}
}

func readAssets(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open assets: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse assets: %v", err)
	}
	return rows
}

func TestWritePackFromManifest(t *testing.T) {
	store := atom.NewStore(filepath.Join(t.TempDir(), "atoms"))
	a := saveAtom(t, store, "2024-04-02", true)
	m, err := export.Build(store, "2024-04", fixedNow)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	root := filepath.Join(t.TempDir(), "monthly")
	if _, err := export.Write(root, m); err != nil {
		t.Fatalf("Write: %v", err)
	}

	paths, err := export.WritePack(root, "2024-04", "")
	if err != nil {
		t.Fatalf("WritePack: %v", err)
	}
	if paths.Manifest != export.ManifestPath(root, "2024-04") || paths.Content != filepath.Join(root, "2024-04", "zine_pack", "content.md") {
		t.Fatalf("paths = %+v", paths)
	}
	md, err := os.ReadFile(paths.Content)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	for _, want := range []string{
		"# Monthly Zine Draft: 2024-04\n",
		"Entries: 1\n",
		"## 1. Hold Person (2024-04-02)",
		"- Voice: friendly-vet",
		"### Body\nParalysis wins fights.\n",
	} {
		if !strings.Contains(string(md), want) {
			t.Fatalf("content.md missing %q:\n%s", want, md)
		}
	}
	if !strings.HasSuffix(string(md), "### CTA\nTry it.\n") {
		t.Fatalf("content.md should end with the last cta:\n%s", md)
	}

	rows := readAssets(t, paths.Assets)
	if len(rows) != 4 || rows[0][9] != "segment_id" {
		t.Fatalf("unexpected rows %v", rows)
	}
	hook := a.Content.Segments.Hook
	if rows[1][8] != "hook" || rows[1][9] != hook.SegmentID || rows[1][10] != hook.VoiceTrackID || rows[1][11] != hook.VisualAssetID {
		t.Fatalf("hook row = %v", rows[1])
	}
	if rows[3][8] != "cta" || rows[3][3] != a.Content.ContentID {
		t.Fatalf("cta row = %v", rows[3])
	}
}

func TestWritePackLegacySegments(t *testing.T) {
	root := filepath.Join(t.TempDir(), "monthly")
	manifest := filepath.Join(t.TempDir(), "elsewhere.json")
	legacy := `{
  "month": "2024-03",
  "month_bundle_id": "zine-2024-03-abcd1234",
  "count": 2,
  "entries": [
    {"day": "2024-03-01", "content_id": "bgp-old", "title": "Old, \"quoted\" entry",
     "segments": {"hook": " seg-hook-legacy ", "cta": {"segment_id": "seg-cta-x", "voice_track_id": "vox-cta-x", "visual_asset_id": "img-cta-x"}}},
    {"day": "2024-03-02", "title": "No ids", "segments": {"cta": "   "}}
  ]
}`
	if err := os.WriteFile(manifest, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	paths, err := export.WritePack(root, "2024-03", manifest)
	if err != nil {
		t.Fatalf("WritePack: %v", err)
	}
	if paths.Assets != filepath.Join(root, "2024-03", "zine_pack", "assets.csv") {
		t.Fatalf("assets path = %s", paths.Assets)
	}
	rows := readAssets(t, paths.Assets)
	if len(rows) != 7 {
		t.Fatalf("expected header plus six rows, got %d", len(rows))
	}
	want := map[int][]string{
		1: {"hook", "seg-hook-legacy", "vox-hook-7f671d141a", "img-hook-ed9260a27d"},
		2: {"body", "seg-body-bcee5ab418", "vox-body-a87c71519b"},
		3: {"cta", "seg-cta-x", "vox-cta-x", "img-cta-x"},
		6: {"cta", "seg-cta-395bd05fd0"},
	}
	for i, cells := range want {
		if got := rows[i][8 : 8+len(cells)]; strings.Join(got, ",") != strings.Join(cells, ",") {
			t.Fatalf("row %d = %v, want prefix %v", i, rows[i][8:], cells)
		}
	}
	if rows[1][5] != `Old, "quoted" entry` || rows[1][1] != "zine-2024-03-abcd1234" {
		t.Fatalf("row 1 = %v", rows[1])
	}
}

func TestWritePackRequiresManifest(t *testing.T) {
	root := filepath.Join(t.TempDir(), "monthly")
	if _, err := export.WritePack(root, "2024-02", ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := export.WritePack(root, "Feb", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
