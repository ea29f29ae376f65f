package testsupport

import (
	"path/filepath"
	"testing"
)

type fixture struct {
	Model  string         `json:"model"`
	PK     any            `json:"pk"`
	Fields map[string]any `json:"fields"`
}

// Fixture primary keys used across package tests.
const (
	GoblinPK      = 1
	WolfPK        = 2
	OgrePK        = 3
	HoldPersonPK  = 10
	ShieldPK      = 11
	BlockTacklePK = 20
	AdvantagePK   = 30
	FighterPK     = 40
)

// WriteDataset writes a small fixture dataset covering every category.
func WriteDataset(t testing.TB, dir string) {
	t.Helper()

	write := func(name string, records []fixture) {
		WriteJSON(t, filepath.Join(dir, name), records)
	}

	write("Creature.json", []fixture{
		{"api.creature", GoblinPK, map[string]any{
			"name": "Goblin", "document": "srd", "armor_class": 15, "hit_points": 7,
			"speed": "30 ft.", "challenge_rating_decimal": "0.250", "type": "humanoid",
		}},
		{"api.creature", WolfPK, map[string]any{
			"name": "Wolf", "document": "srd", "armor_class": 13, "hit_points": 11,
			"speed": "40 ft.", "challenge_rating_decimal": "0.250", "type": "beast",
		}},
		{"api.creature", OgrePK, map[string]any{
			"name": "Ogre", "document": "srd", "armor_class": 11, "hit_points": 59,
			"speed": "40 ft.", "challenge_rating_decimal": "2.000", "type": "giant",
		}},
	})
	write("CreatureTrait.json", []fixture{
		{"api.creaturetrait", 100, map[string]any{"parent": WolfPK, "name": "Pack Tactics", "desc": "The wolf has advantage on an attack roll against a creature if at least one of the wolf's allies is within 5 feet of the creature."}},
		{"api.creaturetrait", 101, map[string]any{"parent": WolfPK, "name": "Keen Hearing and Smell", "desc": "The wolf has advantage on Wisdom (Perception) checks that rely on hearing or smell."}},
		{"api.creaturetrait", 102, map[string]any{"parent": GoblinPK, "name": "Nimble Escape", "desc": "The goblin can take the Disengage or Hide action as a bonus action on each of its turns."}},
	})
	write("CreatureAction.json", []fixture{
		{"api.creatureaction", 200, map[string]any{"parent": GoblinPK, "name": "Scimitar", "desc": "Melee Weapon Attack: +4 to hit, reach 5 ft., one target. Hit: 5 slashing damage."}},
		{"api.creatureaction", 201, map[string]any{"parent": GoblinPK, "name": "Shortbow", "desc": "Ranged Weapon Attack: +4 to hit, range 80/320 ft., one target. Hit: 5 piercing damage."}},
		{"api.creatureaction", 202, map[string]any{"parent": WolfPK, "name": "Bite", "desc": "Melee Weapon Attack: +4 to hit, reach 5 ft., one target. Hit: 7 piercing damage. If the target is a creature, it must succeed on a DC 11 Strength saving throw or be knocked prone."}},
		{"api.creatureaction", 203, map[string]any{"parent": OgrePK, "name": "Greatclub", "desc": "Melee Weapon Attack: +6 to hit, reach 5 ft., one target. Hit: 13 bludgeoning damage."}},
	})
	write("CreatureActionAttack.json", []fixture{
		{"api.creatureactionattack", 300, map[string]any{"parent": GoblinPK, "name": "Scimitar attack", "to_hit_mod": 4}},
	})
	write("Spell.json", []fixture{
		{"api.spell", HoldPersonPK, map[string]any{
			"name": "Hold Person", "document": "srd", "level": 2, "school": "enchantment",
			"range": "60", "duration": "1 minute", "concentration": true,
			"desc": "Choose a humanoid that you can see within range. The target must succeed on a Wisdom saving throw or be paralyzed for the duration.",
		}},
		{"api.spell", ShieldPK, map[string]any{
			"name": "Shield", "document": "srd", "level": 1, "school": "abjuration",
			"range": "Self", "duration": "1 round", "concentration": false,
			"desc": "An invisible barrier of magical force appears and protects you. Until the start of your next turn, you have a +5 bonus to AC.",
		}},
	})
	write("SpellCastingOption.json", []fixture{
		{"api.spellcastingoption", 400, map[string]any{"parent": HoldPersonPK, "type": "slot_level_3", "target_count": 2}},
	})
	write("Item.json", []fixture{
		{"api.item", BlockTacklePK, map[string]any{
			"name": "Block and Tackle", "document": "srd", "cost": "1.00", "weight": "5.000",
			"category": "adventuring-gear",
			"desc":     "A set of pulleys with a cable threaded through them and a hook to attach to objects, a block and tackle allows you to hoist up to four times the weight you can normally lift.",
		}},
	})
	write("Rule.json", []fixture{
		{"api.rule", AdvantagePK, map[string]any{
			"name": "Advantage and Disadvantage", "document": "srd",
			"desc": "Sometimes a special ability or spell tells you that you have advantage or disadvantage on an ability check, a saving throw, or an attack roll. When that happens, you roll a second d20 when you make the roll.",
		}},
	})
	write("CharacterClass.json", []fixture{
		{"api.characterclass", FighterPK, map[string]any{
			"name": "Fighter", "document": "srd", "hit_dice": "1d10",
			"saving_throws": []any{"Strength", "Constitution"},
			"desc":          "A master of martial combat, skilled with a variety of weapons and armor.",
		}},
	})
}
