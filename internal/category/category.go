// Package category holds the canonical content categories, the legacy
// aliases that normalize onto them, and the dataset each category draws from.
package category

import (
	"fmt"
	"sort"
	"strings"

	"loreforge/internal/services"
)

// Canonical categories.
const (
	MonsterTactic     = "monster_tactic"
	EncounterSeed     = "encounter_seed"
	SpellUseCase      = "spell_use_case"
	ItemSpotlight     = "item_spotlight"
	RulesRuling       = "rules_ruling"
	RulesMyth         = "rules_myth"
	CharacterMicroTip = "character_micro_tip"
)

// Fact kinds.
const (
	KindCreature = "creature"
	KindSpell    = "spell"
	KindItem     = "item"
	KindRule     = "rule"
	KindClass    = "class"
)

var aliases = map[string]string{
	"gm_tip":                    RulesRuling,
	"roleplaying_tip":           CharacterMicroTip,
	"character_class_spotlight": CharacterMicroTip,
	"class_spotlight":           CharacterMicroTip,
	"dungeoneering_encounter":   EncounterSeed,
	"overworld_encounter":       EncounterSeed,
}

// Spec describes where a category's facts come from.
type Spec struct {
	Name      string
	Kind      string
	PickKey   string
	SourceKey string
}

var specs = map[string]Spec{
	MonsterTactic:     {Name: MonsterTactic, Kind: KindCreature, PickKey: "creature_pk", SourceKey: "creatures"},
	EncounterSeed:     {Name: EncounterSeed, Kind: KindCreature, PickKey: "creature_pk", SourceKey: "creatures"},
	SpellUseCase:      {Name: SpellUseCase, Kind: KindSpell, PickKey: "spell_pk", SourceKey: "spells"},
	ItemSpotlight:     {Name: ItemSpotlight, Kind: KindItem, PickKey: "item_pk", SourceKey: "items"},
	RulesRuling:       {Name: RulesRuling, Kind: KindRule, PickKey: "rule_pk", SourceKey: "rules"},
	RulesMyth:         {Name: RulesMyth, Kind: KindRule, PickKey: "rule_pk", SourceKey: "rules"},
	CharacterMicroTip: {Name: CharacterMicroTip, Kind: KindClass, PickKey: "class_pk", SourceKey: "classes"},
}

// Normalize lowercases name and maps legacy aliases onto canonical names.
// It does not check that the result is known.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[name]; ok {
		return canonical
	}
	return name
}

// Lookup normalizes name and returns its Spec, or an ErrValidation error for
// unsupported categories.
func Lookup(name string) (Spec, error) {
	canonical := Normalize(name)
	spec, ok := specs[canonical]
	if !ok {
		return Spec{}, services.Wrap(services.ErrValidation, "category", "lookup",
			fmt.Sprintf("unsupported category %q", name), nil)
	}
	return spec, nil
}

// All returns the canonical category names, sorted.
func All() []string {
	out := make([]string, 0, len(specs))
	for name := range specs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
