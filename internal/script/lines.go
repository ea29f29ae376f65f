package script

import (
	"strings"

	"loreforge/internal/seed"
)

// phrase picks a pool entry keyed by day, category, angle, name, and role,
// substituting {name}.
func phrase(in Input, role string, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	name := in.Name()
	key := strings.Join([]string{in.Day, in.Category, in.Angle, name, role}, "|")
	return strings.ReplaceAll(pool[seed.Index(key, len(pool))], "{name}", name)
}

// dedupePrefixed keeps the first line for each "Prefix:" and drops blanks.
func dedupePrefixed(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if prefix, _, ok := strings.Cut(line, ":"); ok {
			key = strings.ToLower(strings.TrimSpace(prefix))
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
	}
	return out
}

// sentences joins non-empty parts with single spaces.
type sentences []string

func (s *sentences) add(parts ...string) {
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			*s = append(*s, p)
		}
	}
}

func (s *sentences) addIf(cond bool, p string) {
	if cond {
		s.add(p)
	}
}

func (s sentences) String() string {
	return strings.Join(s, " ")
}

// withPeriod ends a fragment with a period unless it already ends a sentence.
func withPeriod(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "…") {
		return s
	}
	return s + "."
}
