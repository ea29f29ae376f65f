package contentid

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"loreforge/internal/textutil"
)

// Segment names in render order.
const (
	SegmentHook = "hook"
	SegmentBody = "body"
	SegmentCTA  = "cta"
)

// SegmentOrder lists segment names in their fixed 1/2/3 order.
var SegmentOrder = []string{SegmentHook, SegmentBody, SegmentCTA}

const (
	unknownSlug  = "unknown"
	defaultVoice = "friendly-vet"
	shortHashLen = 12
	segHashLen   = 10
	monthHashLen = 8
)

var fixedTags = []string{"content_press", "shorts"}

// Input carries everything identity derivation depends on.
type Input struct {
	Day      string
	Category string
	Angle    string
	FactKind string
	FactPK   string
	FactName string
	Document string
	Voice    string
	Tone     string
	ScriptID string
}

// Segment holds the identifiers of one script part.
type Segment struct {
	Order         int    `json:"order"`
	SegmentID     string `json:"segment_id"`
	VoiceTrackID  string `json:"voice_track_id"`
	VisualAssetID string `json:"visual_asset_id"`
}

// Segments keeps the three parts in render order when serialized.
type Segments struct {
	Hook Segment `json:"hook"`
	Body Segment `json:"body"`
	CTA  Segment `json:"cta"`
}

// Get returns the segment with the given name.
func (s Segments) Get(name string) (Segment, bool) {
	switch name {
	case SegmentHook:
		return s.Hook, true
	case SegmentBody:
		return s.Body, true
	case SegmentCTA:
		return s.CTA, true
	default:
		return Segment{}, false
	}
}

// AssetContract tells renderers what to produce for each segment.
type AssetContract struct {
	Version      int      `json:"version"`
	Aspect       string   `json:"aspect"`
	SegmentOrder []string `json:"segment_order"`
	VoiceFormat  string   `json:"voice_format"`
	VisualFormat string   `json:"visual_format"`
}

// DefaultAssetContract is the contract attached to every bundle.
func DefaultAssetContract() AssetContract {
	return AssetContract{
		Version:      1,
		Aspect:       "9:16",
		SegmentOrder: append([]string(nil), SegmentOrder...),
		VoiceFormat:  "wav",
		VisualFormat: "png",
	}
}

// Bundle is the derived identity of one atom.
type Bundle struct {
	ContentID     string        `json:"content_id"`
	EpisodeID     string        `json:"episode_id"`
	MonthID       string        `json:"month_id"`
	MonthBundleID string        `json:"month_bundle_id"`
	CanonicalBase string        `json:"canonical_base"`
	CanonicalHash string        `json:"canonical_hash"`
	ScriptID      string        `json:"script_id"`
	AssetContract AssetContract `json:"asset_contract"`
	Segments      Segments      `json:"segments"`
	Tags          []string      `json:"tags"`
}

// Build derives the identity bundle for in. It never fails: absent fact
// identity fields become "unknown", and an absent script id is replaced by a
// hash of day, category, and fact key.
func Build(in Input) Bundle {
	day := textutil.Slug(in.Day)
	category := textutil.Slug(in.Category)
	kind := textutil.SlugOr(in.FactKind, unknownSlug)
	pk := strings.TrimSpace(in.FactPK)
	if pk == "" {
		pk = strings.TrimSpace(in.FactName)
	}
	factPK := textutil.SlugOr(pk, unknownSlug)

	scriptID := strings.TrimSpace(in.ScriptID)
	if scriptID == "" {
		scriptID = sha256Hex(day + "|" + category + "|" + factPK)
	}

	base := CanonicalBase(day, category, kind, factPK)
	canonical := sha256Hex(base + "|" + scriptID)
	short := canonical[:shortHashLen]
	contentID := "bgp-" + base + "-" + short
	monthID := MonthID(day)

	return Bundle{
		ContentID:     contentID,
		EpisodeID:     "ep-" + day + "-" + category + "-" + short,
		MonthID:       monthID,
		MonthBundleID: MonthBundleID(monthID),
		CanonicalBase: base,
		CanonicalHash: canonical,
		ScriptID:      scriptID,
		AssetContract: DefaultAssetContract(),
		Segments: Segments{
			Hook: buildSegment(contentID, SegmentHook, 1),
			Body: buildSegment(contentID, SegmentBody, 2),
			CTA:  buildSegment(contentID, SegmentCTA, 3),
		},
		Tags: buildTags(in, monthID, category, kind),
	}
}

// CanonicalBase joins the already-slugged identity parts.
func CanonicalBase(day, category, kind, factPK string) string {
	return day + "-" + category + "-" + kind + "-" + factPK
}

// MonthID returns the YYYY-MM prefix of day.
func MonthID(day string) string {
	day = strings.TrimSpace(day)
	if len(day) < 7 {
		return day
	}
	return day[:7]
}

// MonthBundleID is shared by every atom of a month.
func MonthBundleID(monthID string) string {
	return "zine-" + monthID + "-" + sha256Hex(monthID)[:monthHashLen]
}

// ScriptID content-addresses a script: each part is trimmed and terminated
// by a newline before hashing.
func ScriptID(hook, body, cta string) string {
	var b strings.Builder
	for _, part := range []string{hook, body, cta} {
		b.WriteString(strings.TrimSpace(part))
		b.WriteByte('\n')
	}
	return sha256Hex(b.String())
}

// buildSegment chains voice and visual ids off the segment id so a changed
// content id cascades to all three.
func buildSegment(contentID, name string, order int) Segment {
	seg := SegmentFromID(name, SegmentID(contentID, name))
	seg.Order = order
	return seg
}

// SegmentID derives the id of segment name from contentID.
func SegmentID(contentID, name string) string {
	return "seg-" + name + "-" + sha256Hex(contentID + "|" + name)[:segHashLen]
}

// SegmentFromID completes a segment whose id is already known, as older
// manifests store only the id.
func SegmentFromID(name, segmentID string) Segment {
	return Segment{
		SegmentID:     segmentID,
		VoiceTrackID:  "vox-" + name + "-" + sha256Hex(segmentID + "|voice")[:segHashLen],
		VisualAssetID: "img-" + name + "-" + sha256Hex(segmentID + "|visual")[:segHashLen],
	}
}

func buildTags(in Input, monthID, category, kind string) []string {
	voice := strings.TrimSpace(in.Voice)
	if voice == "" {
		voice = defaultVoice
	}
	candidates := []string{monthID, category, kind, textutil.Slug(voice)}
	if strings.TrimSpace(in.Angle) != "" {
		candidates = append(candidates, textutil.Slug(in.Angle))
	}
	if strings.TrimSpace(in.Tone) != "" {
		candidates = append(candidates, textutil.Slug(in.Tone))
	}
	if strings.TrimSpace(in.Document) != "" {
		candidates = append(candidates, textutil.Slug(in.Document))
	}
	candidates = append(candidates, fixedTags...)

	seen := make(map[string]struct{}, len(candidates))
	tags := make([]string, 0, len(candidates))
	for _, tag := range candidates {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
