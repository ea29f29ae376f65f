package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"loreforge/internal/contentid"
	"loreforge/internal/fileutil"
	"loreforge/internal/services"
)

var assetColumns = []string{
	"month", "month_bundle_id", "day", "content_id", "episode_id", "title",
	"category", "angle", "segment", "segment_id", "voice_track_id", "visual_asset_id",
}

// packManifest is the loose reading of manifest.json used by the zine pack.
// Segments stay raw because older manifests store a bare segment id string
// instead of the object.
type packManifest struct {
	Month         string      `json:"month"`
	MonthBundleID string      `json:"month_bundle_id"`
	Count         json.Number `json:"count"`
	Entries       []packEntry `json:"entries"`
}

type packEntry struct {
	Day       string                     `json:"day"`
	ContentID string                     `json:"content_id"`
	EpisodeID string                     `json:"episode_id"`
	Category  string                     `json:"category"`
	Angle     string                     `json:"angle"`
	Voice     string                     `json:"voice"`
	Title     string                     `json:"title"`
	Hook      string                     `json:"hook"`
	Body      string                     `json:"body"`
	CTA       string                     `json:"cta"`
	Segments  map[string]json.RawMessage `json:"segments"`
}

// PackPaths are the files written by WritePack.
type PackPaths struct {
	Manifest string `json:"manifest"`
	Content  string `json:"content"`
	Assets   string `json:"assets"`
}

// ManifestPath is where Write stores the manifest of month under root.
func ManifestPath(root, month string) string {
	return filepath.Join(root, month, "manifest.json")
}

// WritePack turns a month's manifest into the zine drafting pack:
// content.md with every script and assets.csv with one row per segment.
// manifestPath overrides the manifest under root when set. Output always
// lands in root/<month>/zine_pack.
func WritePack(root, month, manifestPath string) (PackPaths, error) {
	if err := ValidateMonth(month); err != nil {
		return PackPaths{}, err
	}
	if strings.TrimSpace(manifestPath) == "" {
		manifestPath = ManifestPath(root, month)
	}
	m, err := readPackManifest(manifestPath)
	if err != nil {
		return PackPaths{}, err
	}
	assets, err := assetsCSV(m)
	if err != nil {
		return PackPaths{}, services.Wrap(services.ErrValidation, "export", "pack", "encode assets", err)
	}

	dir := filepath.Join(root, month, "zine_pack")
	paths := PackPaths{
		Manifest: manifestPath,
		Content:  filepath.Join(dir, "content.md"),
		Assets:   filepath.Join(dir, "assets.csv"),
	}
	if err := fileutil.WriteFileAtomic(paths.Content, []byte(contentMarkdown(m)), 0o644); err != nil {
		return PackPaths{}, services.Wrap(services.ErrTransient, "export", "pack", paths.Content, err)
	}
	if err := fileutil.WriteFileAtomic(paths.Assets, assets, 0o644); err != nil {
		return PackPaths{}, services.Wrap(services.ErrTransient, "export", "pack", paths.Assets, err)
	}
	return paths, nil
}

func readPackManifest(path string) (packManifest, error) {
	var m packManifest
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, services.Wrap(services.ErrNotFound, "export", "pack", "manifest not found: "+path, err)
		}
		return m, services.Wrap(services.ErrTransient, "export", "pack", path, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, services.Wrap(services.ErrValidation, "export", "pack", "corrupt manifest "+path, err)
	}
	return m, nil
}

// packSegment resolves the ids of one segment. Objects are taken as
// written, a non-blank string is a bare segment id, and anything else falls
// back to ids derived from the content id.
func packSegment(e packEntry, name string) contentid.Segment {
	raw := bytes.TrimSpace(e.Segments[name])
	if len(raw) > 0 && raw[0] == '{' {
		var seg contentid.Segment
		if err := json.Unmarshal(raw, &seg); err == nil {
			return seg
		}
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil && strings.TrimSpace(id) != "" {
		return contentid.SegmentFromID(name, strings.TrimSpace(id))
	}
	contentID := e.ContentID
	if contentID == "" {
		contentID = "unknown"
	}
	return contentid.SegmentFromID(name, contentid.SegmentID(contentID, name))
}

func contentMarkdown(m packManifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Monthly Zine Draft: %s\n\n", m.Month)
	fmt.Fprintf(&b, "Bundle ID: %s\n", m.MonthBundleID)
	count := m.Count.String()
	if count == "" {
		count = strconv.Itoa(len(m.Entries))
	}
	fmt.Fprintf(&b, "Entries: %s\n", count)
	for i, e := range m.Entries {
		fmt.Fprintf(&b, "\n## %d. %s (%s)\n\n", i+1, e.Title, e.Day)
		fmt.Fprintf(&b, "- Content ID: %s\n", e.ContentID)
		fmt.Fprintf(&b, "- Episode ID: %s\n", e.EpisodeID)
		fmt.Fprintf(&b, "- Category: %s\n", e.Category)
		fmt.Fprintf(&b, "- Angle: %s\n", e.Angle)
		fmt.Fprintf(&b, "- Voice: %s\n", e.Voice)
		fmt.Fprintf(&b, "\n### Hook\n%s\n", e.Hook)
		fmt.Fprintf(&b, "\n### Body\n%s\n", e.Body)
		fmt.Fprintf(&b, "\n### CTA\n%s\n", e.CTA)
	}
	return strings.TrimRight(b.String(), " \t\r\n") + "\n"
}

func assetsCSV(m packManifest) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.Write(assetColumns); err != nil {
		return nil, err
	}
	for _, e := range m.Entries {
		for _, name := range contentid.SegmentOrder {
			seg := packSegment(e, name)
			row := []string{
				m.Month, m.MonthBundleID, e.Day, e.ContentID, e.EpisodeID, e.Title,
				e.Category, e.Angle, name, seg.SegmentID, seg.VoiceTrackID, seg.VisualAssetID,
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
