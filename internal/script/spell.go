package script

import (
	"fmt"
	"strconv"
	"strings"

	"loreforge/internal/reference"
	"loreforge/internal/textutil"
)

func isConcentration(fields map[string]any) bool {
	switch v := fields["concentration"].(type) {
	case bool:
		return v
	case string:
		if lower := strings.ToLower(strings.TrimSpace(v)); lower != "" {
			return strings.Contains(lower, "true") || strings.Contains(lower, "concentration") || lower == "yes"
		}
	}
	desc := strings.ToLower(reference.FieldString(fields, "desc"))
	dur := strings.ToLower(reference.FieldString(fields, "duration"))
	return strings.Contains(desc, "concentration") || strings.Contains(dur, "concentration")
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

func spellLevel(fields map[string]any) string {
	raw := reference.FieldString(fields, "level")
	if raw == "" {
		return ""
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	if n == 0 {
		return "Cantrip"
	}
	return ordinal(n) + "-level"
}

// spellAnchor renders "2nd-level | Enchantment | Range: 60 ft | Duration: ...".
func spellAnchor(fields map[string]any) string {
	var parts []string
	if lvl := spellLevel(fields); lvl != "" {
		parts = append(parts, lvl)
	}
	school := reference.FieldString(fields, "school")
	if school == "" {
		school = reference.FieldString(fields, "spell_school")
	}
	if school != "" {
		parts = append(parts, textutil.TitleWords(school))
	}
	rng := reference.FieldString(fields, "range")
	if _, err := strconv.Atoi(rng); err == nil {
		rng += " ft"
	}
	if rng != "" {
		parts = append(parts, "Range: "+rng)
	}
	dur := reference.FieldString(fields, "duration")
	if isConcentration(fields) && !strings.Contains(strings.ToLower(dur), "concentration") {
		if dur != "" {
			dur = "Concentration, up to " + dur
		} else {
			dur = "Concentration"
		}
	}
	if dur != "" {
		parts = append(parts, "Duration: "+dur)
	}
	return strings.Join(parts, " | ")
}

var concentrationNuggets = map[string][2]string{
	"best_moment": {
		"Concentration: cast it when you can protect it, not right before you take a hit.",
		"Best use: swing the action economy. Remove the scariest turn, then clean up.",
	},
	"common_misplay": {
		"Misplay: losing Concentration on the first hit. If you cannot hold it, pick another spell.",
		"Misplay: burning a big slot to delay a fight you could simply finish.",
	},
	"dm_twist": {
		"DM twist: pressure Concentration with terrain and threats, not cheap gotchas.",
		"DM twist: have allies react. Guard the exit, punish the caster, or change the objective.",
	},
}

func spellNuggets(angle string, fields map[string]any) []string {
	var out []string
	rng := strings.ToLower(reference.FieldString(fields, "range"))
	dur := strings.ToLower(reference.FieldString(fields, "duration"))
	desc := strings.ToLower(reference.FieldString(fields, "desc"))

	if isConcentration(fields) {
		pair, ok := concentrationNuggets[angle]
		if !ok {
			pair = concentrationNuggets["dm_twist"]
		}
		out = append(out, pair[0], pair[1])
	}
	if strings.Contains(rng, "touch") || strings.Contains(rng, "melee") {
		out = append(out, "Delivery: plan how you reach touch range without donating hit points.")
	}
	if strings.Contains(dur, "1 minute") || strings.Contains(dur, "10 minutes") {
		out = append(out, "Timing tip: this often does more before initiative than after.")
	}
	if strings.Contains(desc, "saving throw") || strings.Contains(desc, "save") {
		out = append(out, "Target smart: skip the creature that was built to make this save.")
	}
	if len(out) > 2 {
		out = out[:2]
	}
	return dedupePrefixed(out)
}

func spellBody(in Input, angle string) string {
	fields := in.Fact.Fields
	name := in.Name()
	anchor := withPeriod(spellAnchor(fields))
	desc := textutil.Short(reference.FieldString(fields, "desc"), 220)
	nuggets := spellNuggets(angle, fields)

	var s sentences
	switch angle {
	case "common_misplay":
		s.add(fmt.Sprintf("Common misplay with %s: casting it because you can, not because you should.", name), anchor, desc)
		s.add(nuggets...)
		s.add("Better play: line it up so it forces movement, costs enemy actions, or ends the fight sooner.")
	case "dm_twist":
		s.add(fmt.Sprintf("DM twist for %s: make it matter in the world, not just on the grid.", name), anchor, desc)
		s.add(nuggets...)
		s.add("Reward clever casting with information, access, or leverage. A reroll is the least interesting payoff.")
	default:
		s.add(fmt.Sprintf("When is %s at its best? When it changes the situation, not just the damage math.", name), anchor, desc)
		s.add(nuggets...)
		s.add("Ask one question before casting: what problem does this solve right now?")
	}
	return s.String()
}
