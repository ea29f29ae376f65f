package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const ellipsis = "…"

// CollapseSpace trims s and replaces internal whitespace runs with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Short collapses whitespace and hard-cuts s to n runes, appending an
// ellipsis when anything was removed.
func Short(s string, n int) string {
	s = CollapseSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " ") + ellipsis
}

// ShortWords is like Short but backs up to the last word boundary, keeping
// the result including the ellipsis within n runes.
func ShortWords(s string, n int) string {
	s = CollapseSpace(s)
	if n <= 1 || utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n-1])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + ellipsis
}

// Truncate cuts s to at most n runes without adding an ellipsis.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// TitleWords turns snake_case or kebab-case labels into English title case:
// "monster_tactic" becomes "Monster Tactic".
func TitleWords(label string) string {
	spaced := strings.NewReplacer("_", " ", "-", " ").Replace(label)
	return cases.Title(language.English).String(CollapseSpace(spaced))
}
