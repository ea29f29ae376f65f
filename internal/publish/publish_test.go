package publish_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"loreforge/internal/atom"
	"loreforge/internal/contentid"
	"loreforge/internal/fact"
	"loreforge/internal/publish"
	"loreforge/internal/script"
	"loreforge/internal/services"
)

var fixedNow = time.Date(2024, 4, 2, 18, 30, 0, 0, time.UTC)

func sampleAtom() *atom.Atom {
	a := atom.New("2024-04-02", fixedNow)
	a.Category = "monster_tactic"
	a.Angle = "how_it_wins"
	a.Fact = &fact.Fact{Kind: "creature", PK: "42", Name: "Goblin"}
	a.Script = &script.Script{Hook: " Meet the Goblin. ", Body: "It hides <fast>.", CTA: "Try it?"}
	a.ScriptID = a.Script.ID()
	bundle := contentid.Build(a.IdentityInput())
	a.Content = &bundle
	return a
}

func TestFingerprintCanonicalForm(t *testing.T) {
	fp := publish.BuildFingerprint(sampleAtom(), "/renders/latest.mp4", "abc")
	if fp.Hook != "Meet the Goblin." {
		t.Fatalf("expected trimmed hook, got %q", fp.Hook)
	}
	data, err := fp.Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, `{"angle": "how_it_wins", "body": `) {
		t.Fatalf("expected sorted keys, got %s", text)
	}
	if !strings.Contains(text, `"fact_pk": 42`) {
		t.Fatalf("expected numeric fact pk, got %s", text)
	}
	if !strings.Contains(text, "<fast>") {
		t.Fatalf("expected unescaped text, got %s", text)
	}
}

func TestFingerprintHashSensitivity(t *testing.T) {
	a := sampleAtom()
	base, err := publish.BuildFingerprint(a, "/v.mp4", "abc").Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if len(base) != 64 {
		t.Fatalf("unexpected hash %q", base)
	}
	again, _ := publish.BuildFingerprint(a, "/v.mp4", "abc").Hash()
	if again != base {
		t.Fatal("hash should be stable")
	}
	otherVideo, _ := publish.BuildFingerprint(a, "/v.mp4", "abd").Hash()
	if otherVideo == base {
		t.Fatal("hash should change with the video digest")
	}
	a.Script.CTA = "Try it now?"
	otherScript, _ := publish.BuildFingerprint(a, "/v.mp4", "abc").Hash()
	if otherScript == base {
		t.Fatal("hash should change with the script")
	}
}

func TestFingerprintWithoutFactPK(t *testing.T) {
	a := sampleAtom()
	a.Fact.PK = ""
	data, err := publish.BuildFingerprint(a, "", "").Canonical()
	if err != nil {
		t.Fatalf("canonical: %v", err)
	}
	if !strings.Contains(string(data), `"fact_pk": null`) {
		t.Fatalf("expected null pk, got %s", data)
	}
}

// Registries written by earlier deployments hold hashes of the
// json.dumps(sort_keys=True, ensure_ascii=False) packing, so these vectors
// were computed there.
func TestFingerprintHashMatchesRecordedVectors(t *testing.T) {
	fp := publish.Fingerprint{
		Day:           "2024-04-02",
		Category:      "monster_tactic",
		Angle:         "how_it_wins",
		ContentID:     "bgp-2024-04-02-monster-tactic-creature-42-0123456789ab",
		CanonicalHash: strings.Repeat("c", 64),
		ScriptID:      strings.Repeat("a", 64),
		FactKind:      "creature",
		FactPK:        42,
		FactName:      "Goblin",
		Hook:          "Meet the Goblin.",
		Body:          "It hides <fast> & \"quiet\".\nThen strikes: caf\u00e9\u2028\u00fc.",
		CTA:           "Try it?\tNow\\",
		VideoPath:     "/renders/latest.mp4",
		VideoSHA256:   strings.Repeat("b", 64),
	}
	cases := []struct {
		name string
		pk   any
		want string
	}{
		{"numeric pk", 42, "a860c3554cf634506404f09a44c07d5dea854486aa89f7a0f89cb2c78a1702b4"},
		{"slug pk", "ancient-red-dragon", "ecabdd3b82dbaaa805a716dcad37272b170d63c936c148fde1e9ef3241657d48"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fp.FactPK = tc.pk
			got, err := fp.Hash()
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if got != tc.want {
				canonical, _ := fp.Canonical()
				t.Fatalf("hash = %s, want %s\ncanonical: %s", got, tc.want, canonical)
			}
		})
	}
}

type registryFactory func(t *testing.T) publish.Registry

func registries() map[string]registryFactory {
	return map[string]registryFactory{
		"json": func(t *testing.T) publish.Registry {
			return publish.NewJSONRegistry(filepath.Join(t.TempDir(), "registry.json"))
		},
		"sqlite": func(t *testing.T) publish.Registry {
			reg, err := publish.OpenSQLiteRegistry(filepath.Join(t.TempDir(), "registry.db"))
			if err != nil {
				t.Fatalf("open sqlite registry: %v", err)
			}
			return reg
		},
	}
}

func TestRegistryBackends(t *testing.T) {
	for name, open := range registries() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			reg := open(t)
			t.Cleanup(func() { _ = reg.Close() })

			prior, err := reg.Lookup(ctx, "hash-1", "bgp-1")
			if err != nil || prior != nil {
				t.Fatalf("empty registry lookup = %v, %v", prior, err)
			}

			fp := publish.BuildFingerprint(sampleAtom(), "/v.mp4", "abc")
			first := publish.NewRecord(fp, "hash-1", "vid1", fixedNow)
			first.ContentID = "bgp-1"
			if err := reg.Append(ctx, first); err != nil {
				t.Fatalf("append: %v", err)
			}
			second := publish.NewRecord(fp, "hash-2", "vid2", fixedNow.Add(time.Hour))
			second.ContentID = ""
			if err := reg.Append(ctx, second); err != nil {
				t.Fatalf("append: %v", err)
			}

			byHash, err := reg.Lookup(ctx, "hash-2", "")
			if err != nil || byHash == nil || byHash.YouTubeVideoID != "vid2" {
				t.Fatalf("lookup by hash = %#v, %v", byHash, err)
			}
			byContent, err := reg.Lookup(ctx, "other", "bgp-1")
			if err != nil || byContent == nil || byContent.YouTubeVideoID != "vid1" {
				t.Fatalf("lookup by content id = %#v, %v", byContent, err)
			}
			if miss, err := reg.Lookup(ctx, "other", ""); err != nil || miss != nil {
				t.Fatalf("empty content id must not match: %#v, %v", miss, err)
			}

			all, err := reg.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(all) != 2 || all[0].YouTubeURL != "https://www.youtube.com/watch?v=vid1" {
				t.Fatalf("unexpected records %#v", all)
			}
			if all[0].Fingerprint.Hook != "Meet the Goblin." || all[0].PublishedUTC != "2024-04-02T18:30:00Z" {
				t.Fatalf("record fields lost: %#v", all[0])
			}
		})
	}
}

func TestSQLiteRegistryReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	reg, err := publish.OpenSQLiteRegistry(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := publish.NewRecord(publish.Fingerprint{Day: "2024-04-02"}, "h", "vid", fixedNow)
	if err := reg.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reg, err = publish.OpenSQLiteRegistry(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reg.Close()
	all, err := reg.List(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("expected persisted record, got %v, %v", all, err)
	}
}

func TestJSONRegistryRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	reg := publish.NewJSONRegistry(path)
	if _, err := reg.Lookup(context.Background(), "h", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestJSONRegistryAppendKeepsEarlierItems(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.json")
	prior := `{"published_utc": "2024-03-01T10:00:00Z", "day": "2024-03-01", "content_id": "bgp-old", ` +
		`"publish_hash": "h-old", "youtube_video_id": "old1", "title": "Old <title> \u00e9", "privacy": "unlisted", ` +
		`"fingerprint": {"day": "2024-03-01", "fact_pk": 9007199254740993, "extra": [1, 2.50]}}`
	doc := "{\n  \"schema\": 2,\n  \"items\": [\n    " + prior + "\n  ]\n}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg := publish.NewJSONRegistry(path)
	rec := publish.NewRecord(publish.BuildFingerprint(sampleAtom(), "/v.mp4", "abc"), "h-new", "new1", fixedNow)
	if err := reg.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var written struct {
		Schema json.RawMessage   `json:"schema"`
		Items  []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(data, &written); err != nil {
		t.Fatalf("registry is not valid json: %v\n%s", err, data)
	}
	if string(written.Schema) != "2" {
		t.Fatalf("top-level key lost: %s", data)
	}
	if len(written.Items) != 2 || string(written.Items[0]) != prior {
		t.Fatalf("earlier item rewritten:\n%s", data)
	}

	old, err := reg.Lookup(ctx, "", "bgp-old")
	if err != nil || old == nil {
		t.Fatalf("lookup prior = %v, %v", old, err)
	}
	if pk, ok := old.Fingerprint.FactPK.(json.Number); !ok || pk.String() != "9007199254740993" {
		t.Fatalf("fact pk lost precision: %#v", old.Fingerprint.FactPK)
	}
	all, err := reg.List(ctx)
	if err != nil || len(all) != 2 || all[1].YouTubeVideoID != "new1" {
		t.Fatalf("list = %#v, %v", all, err)
	}
}

func TestOpenRegistry(t *testing.T) {
	dir := t.TempDir()
	reg, err := publish.OpenRegistry("", filepath.Join(dir, "r.json"))
	if err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, ok := reg.(*publish.JSONRegistry); !ok {
		t.Fatalf("expected json registry, got %T", reg)
	}
	reg, err = publish.OpenRegistry("SQLite", filepath.Join(dir, "r.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	_ = reg.Close()
	if _, err := publish.OpenRegistry("postgres", ""); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestGuardBlocksDuplicates(t *testing.T) {
	ctx := context.Background()
	reg := publish.NewJSONRegistry(filepath.Join(t.TempDir(), "registry.json"))
	fp := publish.BuildFingerprint(sampleAtom(), "/v.mp4", "abc")
	hash, err := fp.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	guard := publish.NewGuard(reg, false, nil)
	if prior, err := guard.Check(ctx, fp, hash); err != nil || prior != nil {
		t.Fatalf("first publish should pass: %v, %v", prior, err)
	}
	if err := reg.Append(ctx, publish.NewRecord(fp, hash, "abc123", fixedNow)); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A re-render changes the video digest but keeps the content id.
	rerender := publish.BuildFingerprint(sampleAtom(), "/v.mp4", "different")
	rerenderHash, _ := rerender.Hash()
	prior, err := guard.Check(ctx, rerender, rerenderHash)
	if !errors.Is(err, publish.ErrDuplicatePublish) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if prior == nil || !strings.Contains(err.Error(), "https://www.youtube.com/watch?v=abc123") {
		t.Fatalf("expected prior url in error, got %v", err)
	}

	override := publish.NewGuard(reg, true, nil)
	prior, err = override.Check(ctx, rerender, rerenderHash)
	if err != nil || prior == nil {
		t.Fatalf("override should pass with prior, got %v, %v", prior, err)
	}
	if err := reg.Append(ctx, publish.NewRecord(rerender, rerenderHash, "def456", fixedNow)); err != nil {
		t.Fatalf("append: %v", err)
	}
	all, err := reg.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected a second record, got %d, %v", len(all), err)
	}
}

func TestTitleAndDescription(t *testing.T) {
	a := sampleAtom()
	if got := publish.Title(a); got != "Goblin • Monster Tactic #dnd #ttrpg #shorts" {
		t.Fatalf("unexpected title %q", got)
	}

	a.Fact.Name = strings.Repeat("é", 120)
	title := publish.Title(a)
	if utf8.RuneCountInString(title) != publish.MaxTitleRunes || !utf8.ValidString(title) {
		t.Fatalf("title not truncated on runes: %d", utf8.RuneCountInString(title))
	}

	a.Fact = nil
	a.Category = ""
	if got := publish.Title(a); got != "Daily RPG Tip • Rpg Short #dnd #ttrpg #shorts" {
		t.Fatalf("unexpected fallback title %q", got)
	}

	desc := publish.Description(sampleAtom())
	for _, want := range []string{"Daily RPG Short • 2024-04-02", "Meet the Goblin.", "category: monster_tactic", "angle: how_it_wins", "#dnd5e"} {
		if !strings.Contains(desc, want) {
			t.Fatalf("description missing %q:\n%s", want, desc)
		}
	}

	long := sampleAtom()
	long.Script.Body = strings.Repeat("word ", 2000)
	if n := utf8.RuneCountInString(publish.Description(long)); n != publish.MaxDescriptionRunes {
		t.Fatalf("description length %d", n)
	}
}
