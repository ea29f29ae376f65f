package script

import (
	"strconv"
	"strings"

	"loreforge/internal/reference"
	"loreforge/internal/textutil"
)

// moneyText formats a gold-piece cost: "1.00" becomes "1 gp", "0.5" "0.5 gp".
func moneyText(raw string) string {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + " gp"
}

func itemStats(fields map[string]any) string {
	var stats []string
	if cost := moneyText(reference.FieldString(fields, "cost")); cost != "" {
		stats = append(stats, "Cost: "+cost)
	}
	if w, ok := reference.FieldFloat(fields, "weight"); ok && w > 0 {
		stats = append(stats, "Weight: "+strconv.FormatFloat(w, 'f', -1, 64)+" lb")
	} else if raw := reference.FieldString(fields, "weight"); raw != "" && !ok {
		stats = append(stats, "Weight: "+raw)
	}
	if cat := reference.FieldString(fields, "category"); cat != "" {
		stats = append(stats, "Category: "+cat)
	}
	return strings.Join(stats, " | ")
}

func itemBody(in Input, angle string) string {
	fields := in.Fact.Fields
	desc := textutil.Short(reference.FieldString(fields, "desc"), 240)
	stats := itemStats(fields)

	var s sentences
	s.add(desc)
	switch angle {
	case "clever_use":
		s.add("Clever use: ask what it does outside its obvious job. Mundane gear reaches problems spells never touch.")
		s.add("Rule of thumb: if the table laughs at the plan, let it work once.")
	case "drawback_watchout":
		s.add("Watch out: it needs setup time and room to work, and a fight rarely offers either.")
		s.add("DM tip: ask where it is stored and who is carrying it. That is where the tension lives.")
	default:
		s.add("In play: give it a job in the story. Someone needs it, someone lost it, or someone is about to misuse it.")
	}
	s.add(stats)
	return s.String()
}
