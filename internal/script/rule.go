package script

import (
	"fmt"

	"loreforge/internal/reference"
	"loreforge/internal/textutil"
)

func ruleBody(in Input, angle string) string {
	name := in.Name()
	desc := textutil.Short(reference.FieldString(in.Fact.Fields, "desc"), 260)

	var s sentences
	switch angle {
	case "edge_case":
		s.add(fmt.Sprintf("Edge case: %s.", name), desc)
		s.add("The strange part is where it meets other rules. Check the exact wording before stacking effects.")
		s.add("A consistent ruling beats a perfect one.")
	case "myth_busted":
		s.add(fmt.Sprintf("Myth: everyone already knows how %s works.", name))
		s.addIf(desc != "", "What the text actually says: "+desc)
		s.add("Read the rule itself, not the forum summary of it.")
	case "table_check":
		s.add(fmt.Sprintf("Table check: does your group run %s as written?", name), desc)
		s.add("Ask once, agree on an answer, and write it down where everyone can see it.")
	default:
		s.add(fmt.Sprintf("Quick ruling on %s.", name), desc)
		s.add("At the table: decide once, say it out loud, and apply it the same way all night.")
		s.add("If the lookup slows the game, rule now and check after the session.")
	}
	return s.String()
}
