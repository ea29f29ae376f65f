package script

import (
	"fmt"
	"strings"

	"loreforge/internal/reference"
	"loreforge/internal/textutil"
)

func classAnchor(fields map[string]any) string {
	var parts []string
	if hd := reference.FieldString(fields, "hit_dice"); hd != "" {
		parts = append(parts, "Hit die: "+hd)
	}
	saves := reference.FieldString(fields, "saving_throws")
	if saves == "" {
		saves = reference.FieldString(fields, "prof_saving_throws")
	}
	if saves != "" {
		parts = append(parts, "Saves: "+saves)
	}
	return strings.Join(parts, " | ")
}

func classBody(in Input, angle string) string {
	name := in.Name()
	anchor := withPeriod(classAnchor(in.Fact.Fields))
	desc := textutil.Short(reference.FieldString(in.Fact.Fields, "desc"), 200)

	var s sentences
	switch angle {
	case "roleplay_hook":
		s.add(fmt.Sprintf("Roleplay hook for your %s: why did they choose this path, and who taught them?", name), desc)
		s.add("Give them one habit from their training that shows up at the table every session.")
	default:
		s.add(fmt.Sprintf("%s tip: lean into what the class already does best.", name), anchor, desc)
		s.add("Pick one thing to be great at before you spread out.")
	}
	return s.String()
}
