package publish

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loreforge/internal/atom"
)

// Upload limits enforced by the video platform.
const (
	MaxTitleRunes       = 100
	MaxDescriptionRunes = 5000
)

const watchURL = "https://www.youtube.com/watch?v="

// VideoURL returns the watch URL of id.
func VideoURL(id string) string {
	return watchURL + id
}

// Title builds the upload title: "<fact name> • <Category> #dnd #ttrpg #shorts".
func Title(a *atom.Atom) string {
	name := ""
	if a.Fact != nil {
		name = strings.TrimSpace(a.Fact.Name)
	}
	if name == "" {
		name = "Daily RPG Tip"
	}
	cat := a.Category
	if cat == "" {
		cat = "rpg_short"
	}
	cat = cases.Title(language.English).String(strings.ReplaceAll(cat, "_", " "))
	return truncateRunes(name+" • "+cat+" #dnd #ttrpg #shorts", MaxTitleRunes)
}

// Description builds the upload description from the script.
func Description(a *atom.Atom) string {
	var hook, body, cta string
	if a.Script != nil {
		hook = strings.TrimSpace(a.Script.Hook)
		body = strings.TrimSpace(a.Script.Body)
		cta = strings.TrimSpace(a.Script.CTA)
	}
	lines := []string{
		"Daily RPG Short • " + a.Day,
		"",
		hook,
		"",
		body,
		"",
		cta,
		"",
		"category: " + strings.TrimSpace(a.Category),
		"angle: " + strings.TrimSpace(a.Angle),
		"",
		"#dnd #dnd5e #ttrpg #shorts",
	}
	return truncateRunes(strings.Join(lines, "\n"), MaxDescriptionRunes)
}

// Tags are attached to every upload.
func Tags() []string {
	return []string{"dnd", "ttrpg", "shorts", "dnd5e"}
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
