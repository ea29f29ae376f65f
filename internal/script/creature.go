package script

import (
	"fmt"
	"strings"

	"loreforge/internal/reference"
	"loreforge/internal/textutil"
)

// traitNuggets holds short tactical lines keyed by lowercase trait name and
// angle.
var traitNuggets = map[string]map[string]string{
	"pack tactics": {
		"how_it_wins":    "Pack Tactics means it wants company. Swarm one target and farm advantage.",
		"common_mistake": "Mistake: letting it surround you. Once an ally stands within 5 feet of you, its hits stick.",
		"counterplay":    "Counter: break adjacency. Back up, hold a corridor, and pick them off one at a time.",
		"ambush":         "Pack Tactics rewards the ambusher. Have two of them close on the same target first.",
	},
	"nimble escape": {
		"how_it_wins":    "Nimble Escape lets it stab and vanish. Expect it to disengage or hide every turn.",
		"common_mistake": "Mistake: chasing it into the dark. That is where its friends are waiting.",
		"counterplay":    "Counter: light the area and ready attacks for the moment it pops out.",
		"ambush":         "Nimble Escape makes it the perfect skirmisher. It hides after every shot.",
	},
}

func tacticNugget(angle string, traits []map[string]any) string {
	for _, tr := range traits {
		name := strings.ToLower(reference.FieldString(tr, "name"))
		if line := traitNuggets[name][angle]; line != "" {
			return line
		}
	}
	return ""
}

// creatureAnchor renders "AC x | HP y | Speed z" from whichever fields exist.
func creatureAnchor(fields map[string]any) string {
	var bits []string
	if ac, ok := reference.FieldFloat(fields, "armor_class"); ok && ac > 0 {
		bits = append(bits, fmt.Sprintf("AC %d", int(ac)))
	}
	if hp, ok := reference.FieldFloat(fields, "hit_points"); ok && hp > 0 {
		bits = append(bits, fmt.Sprintf("HP %d", int(hp)))
	}
	if speed := speedText(fields); speed != "" {
		bits = append(bits, "Speed "+speed)
	}
	return strings.Join(bits, " | ")
}

func speedText(fields map[string]any) string {
	switch v := fields["speed"].(type) {
	case map[string]any:
		if walk := reference.AsString(v["walk"]); walk != "" {
			return walk + " ft."
		}
	case nil:
	default:
		if s := reference.AsString(v); s != "" {
			return s
		}
	}
	if walk := reference.FieldString(fields, "walk"); walk != "" {
		return walk
	}
	return ""
}

func notableTrait(traits []map[string]any) string {
	for _, tr := range traits {
		name := reference.FieldString(tr, "name")
		desc := reference.FieldString(tr, "desc")
		if name != "" && desc != "" {
			return fmt.Sprintf("Notable trait: %s. %s", strings.TrimSuffix(name, "."), textutil.Short(desc, 120))
		}
	}
	return ""
}

func keyActions(actions []map[string]any, limit int) string {
	var lines []string
	for _, a := range actions {
		name := reference.FieldString(a, "name")
		desc := reference.FieldString(a, "desc")
		if name == "" || desc == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, textutil.Short(desc, 140)))
		if len(lines) == limit {
			break
		}
	}
	return strings.Join(lines, " ")
}

func monsterBody(in Input, angle string) string {
	f := in.Fact
	name := in.Name()
	anchor := withPeriod(creatureAnchor(f.Fields))
	actions := keyActions(f.Actions, 2)
	trait := notableTrait(f.Traits)
	nugget := tacticNugget(angle, f.Traits)

	var s sentences
	switch angle {
	case "common_mistake":
		s.add(fmt.Sprintf("Common mistake against the %s: treating it as set dressing.", name), anchor)
		s.addIf(actions != "", "What actually hurts: "+actions)
		s.add(trait, nugget)
		s.add("Ignore positioning and it gets free value every round.")
	case "counterplay":
		s.add(fmt.Sprintf("Counterplay for the %s: refuse the fight it wants.", name), anchor)
		s.addIf(actions != "", "Watch for: "+actions)
		s.add(nugget)
		s.add("Terrain and spacing take its best turns off the board. Focus fire finishes the job.")
		s.addIf(trait != "", "Also: "+trait)
	default:
		s.add(fmt.Sprintf("The %s wins by doing one simple job without mercy.", name), anchor)
		s.addIf(actions != "", "Key moves: "+actions)
		s.add(trait, nugget)
		s.add("Run it fast: force one bad choice, then punish it.")
	}
	return s.String()
}

func encounterBody(in Input, angle string) string {
	f := in.Fact
	name := in.Name()
	anchor := withPeriod(creatureAnchor(f.Fields))
	actions := keyActions(f.Actions, 1)
	trait := notableTrait(f.Traits)
	nugget := tacticNugget(angle, f.Traits)

	var s sentences
	switch angle {
	case "ambush":
		s.add(fmt.Sprintf("Encounter seed: the %s picks the ground, not the party.", name), anchor)
		s.addIf(actions != "", "Opening move: "+actions)
		s.add(nugget)
		s.add("Plant one clue earlier in the session so the surprise feels earned.")
	case "complication":
		s.add(fmt.Sprintf("Encounter seed: the party is already busy when a %s shows up.", name), anchor)
		s.add(trait)
		s.add("Put it between the heroes and their real objective. Now every round spent fighting it costs something else.")
	default:
		s.add(fmt.Sprintf("Encounter seed: the %s is guarding something it cannot afford to lose.", name))
		s.add("Maybe a den of young, a wounded mate, or a debt owed to something worse.", anchor, trait)
		s.add("Let the party learn why before anyone draws steel. Fighting, bargaining, and leaving should all cost something.")
	}
	return s.String()
}
