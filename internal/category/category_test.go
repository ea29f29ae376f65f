package category

import (
	"errors"
	"testing"

	"loreforge/internal/services"
)

func TestLookupAliases(t *testing.T) {
	tests := []struct {
		in       string
		category string
		kind     string
		pickKey  string
	}{
		{"monster_tactic", MonsterTactic, KindCreature, "creature_pk"},
		{" Overworld_Encounter ", EncounterSeed, KindCreature, "creature_pk"},
		{"dungeoneering_encounter", EncounterSeed, KindCreature, "creature_pk"},
		{"gm_tip", RulesRuling, KindRule, "rule_pk"},
		{"rules_myth", RulesMyth, KindRule, "rule_pk"},
		{"roleplaying_tip", CharacterMicroTip, KindClass, "class_pk"},
		{"class_spotlight", CharacterMicroTip, KindClass, "class_pk"},
		{"character_class_spotlight", CharacterMicroTip, KindClass, "class_pk"},
		{"spell_use_case", SpellUseCase, KindSpell, "spell_pk"},
		{"item_spotlight", ItemSpotlight, KindItem, "item_pk"},
	}
	for _, tt := range tests {
		spec, err := Lookup(tt.in)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.in, err)
		}
		if spec.Name != tt.category || spec.Kind != tt.kind || spec.PickKey != tt.pickKey {
			t.Fatalf("Lookup(%q) = %+v", tt.in, spec)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("cooking_tip")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAllIsSortedAndCanonical(t *testing.T) {
	all := All()
	if len(all) != 7 {
		t.Fatalf("expected 7 categories, got %v", all)
	}
	for i := 1; i < len(all); i++ {
		if all[i-1] >= all[i] {
			t.Fatalf("not sorted: %v", all)
		}
	}
}
