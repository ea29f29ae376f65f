package spine_test

import (
	"path/filepath"
	"testing"

	"loreforge/internal/spine"
	"loreforge/internal/testsupport"
)

func TestWeeklySpinePicksCategoryByWeekday(t *testing.T) {
	s, err := spine.Parse(spine.DefaultYAML())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := map[string]string{
		"2024-04-01": "monster_tactic", // Monday
		"2024-04-02": "spell_use_case",
		"2024-04-03": "encounter_seed",
		"2024-04-07": "rules_myth", // Sunday
	}
	for day, want := range cases {
		topic, err := s.Choose(day)
		if err != nil {
			t.Fatalf("choose %s: %v", day, err)
		}
		if topic.Category != want || topic.Source != "weekly" {
			t.Fatalf("%s: got %#v, want %s", day, topic, want)
		}
		if topic.Angle == "" {
			t.Fatalf("%s: expected a weighted angle", day)
		}
	}
}

func TestAngleDrawIsDeterministicAndWeighted(t *testing.T) {
	s, err := spine.Parse([]byte(`
weekly_spine:
  mon: monster_tactic
category_weights:
  monster_tactic:
    angles:
      how_it_wins: 1
      counterplay: 0
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, day := range []string{"2024-04-01", "2024-04-08", "2024-04-15"} {
		topic, err := s.Choose(day)
		if err != nil {
			t.Fatalf("choose: %v", err)
		}
		if topic.Angle != "how_it_wins" {
			t.Fatalf("zero-weight angle drawn on %s: %#v", day, topic)
		}
	}
}

func TestWeeklyWithoutWeightsLeavesAngleEmpty(t *testing.T) {
	s, err := spine.Parse([]byte("weekly_spine:\n  tue: gm_tip\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	topic, err := s.Choose("2024-04-02")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if topic.Category != "rules_ruling" || topic.Angle != "" {
		t.Fatalf("unexpected topic %#v", topic)
	}
	filled := topic.Fill()
	if filled.Category != "rules_ruling" || filled.Angle != spine.DefaultAngle {
		t.Fatalf("expected the default angle, got %#v", filled)
	}
}

func TestLegacyScheduleFallback(t *testing.T) {
	s, err := spine.Parse([]byte(`
weekly_spine:
  mon: monster_tactic
schedule:
  - category: item_spotlight
    weight: 1
  - category: spell_use_case
    weight: 0
  - angle: orphan
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// 2024-04-02 is a Tuesday with no weekly entry.
	topic, err := s.Choose("2024-04-02")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if topic.Category != "item_spotlight" || topic.Source != "schedule" || topic.Angle != "" {
		t.Fatalf("unexpected topic %#v", topic)
	}
}

func TestDefaultTopic(t *testing.T) {
	topic, err := spine.Spine{}.Choose("2024-04-02")
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	topic = topic.Fill()
	if topic.Category != spine.DefaultCategory || topic.Angle != spine.DefaultAngle || topic.Source != "default" {
		t.Fatalf("unexpected default topic %#v", topic)
	}
	if _, err := (spine.Spine{}).Choose("02/04/2024"); err == nil {
		t.Fatal("expected invalid day error")
	}
}

func TestLoadFallsBackToBuiltIn(t *testing.T) {
	dir := t.TempDir()
	s, err := spine.Load(filepath.Join(dir, "topic_spine.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(s.WeeklySpine) != 7 {
		t.Fatalf("expected built-in weekly spine, got %v", s.WeeklySpine)
	}

	path := filepath.Join(dir, "custom.yaml")
	testsupport.WriteText(t, path, "weekly_spine:\n  mon: item_spotlight\n")
	s, err = spine.Load(path)
	if err != nil {
		t.Fatalf("load custom: %v", err)
	}
	if s.WeeklySpine["mon"] != "item_spotlight" || len(s.WeeklySpine) != 1 {
		t.Fatalf("unexpected spine %v", s.WeeklySpine)
	}

	testsupport.WriteText(t, path, "weekly_spine: [broken")
	if _, err := spine.Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
