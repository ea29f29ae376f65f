package style_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"loreforge/internal/seed"
	"loreforge/internal/style"
)

func defaultRules(t *testing.T) style.Rules {
	t.Helper()
	rules, err := style.ParseRules(style.DefaultRulesYAML())
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	return rules
}

func TestSelectDeterministicAcrossStores(t *testing.T) {
	rules := defaultRules(t)
	ctx := context.Background()

	a, err := style.NewSelector(rules, style.NewMemoryHistory(60), nil).Select(ctx, "2024-03-05", "monster_tactic", "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	b, err := style.NewSelector(rules, style.NewMemoryHistory(60), nil).Select(ctx, "2024-03-05", "monster_tactic", "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if a.Angle != b.Angle || a.Style.Voice != b.Style.Voice || a.Style.Tone != b.Style.Tone || a.Style.Voiceover != b.Style.Voiceover {
		t.Fatalf("selection not deterministic: %+v vs %+v", a, b)
	}
	if a.Style.Seed != "2024-03-05|monster_tactic" || a.Style.Length != "shorts" {
		t.Fatalf("unexpected style metadata: %+v", a.Style)
	}
	if a.Style.Persona != "tactician" {
		t.Fatalf("persona = %q", a.Style.Persona)
	}
}

func TestSelectKeepsAllowedAngle(t *testing.T) {
	rules := defaultRules(t)
	res, err := style.NewSelector(rules, style.NewMemoryHistory(60), nil).Select(context.Background(), "2024-03-05", "spell_use_case", "dm_twist")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Angle != "dm_twist" {
		t.Fatalf("angle = %q", res.Angle)
	}
}

func TestSelectAvoidsYesterdaysVoiceAndRecentTones(t *testing.T) {
	rules := defaultRules(t)
	ctx := context.Background()

	for _, prevVoice := range []string{"friendly_vet", "grizzled_sage"} {
		store := style.NewMemoryHistory(60)
		_ = store.Update(ctx, func(h style.History) error {
			h.Record("2024-03-04", "monster_tactic", style.Entry{Voice: prevVoice, Tone: "warm"})
			h.Record("2024-03-03", "monster_tactic", style.Entry{Voice: prevVoice, Tone: "dry"})
			return nil
		})
		res, err := style.NewSelector(rules, store, nil).Select(ctx, "2024-03-05", "monster_tactic", "")
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if res.Style.Voice == prevVoice {
			t.Fatalf("voice %q repeated yesterday's choice", res.Style.Voice)
		}
		if res.Style.Tone != "punchy" {
			t.Fatalf("tone = %q, want the one tone outside the lookback window", res.Style.Tone)
		}
	}
}

func TestSelectFallsBackWhenFilterEmpties(t *testing.T) {
	rules := defaultRules(t)
	ctx := context.Background()
	store := style.NewMemoryHistory(60)
	_ = store.Update(ctx, func(h style.History) error {
		h.Record("2024-03-04", "rules_ruling", style.Entry{Tone: "dry"})
		return nil
	})
	res, err := style.NewSelector(rules, store, nil).Select(ctx, "2024-03-05", "rules_ruling", "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if res.Style.Tone != "dry" {
		t.Fatalf("single-tone category should reuse its tone, got %q", res.Style.Tone)
	}
}

func TestSelectRecordsHistory(t *testing.T) {
	rules := defaultRules(t)
	ctx := context.Background()
	store := style.NewMemoryHistory(60)
	res, err := style.NewSelector(rules, store, nil).Select(ctx, "2024-03-05", "item_spotlight", "")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	hist, _ := store.Load(ctx)
	entry, ok := hist.Lookup("2024-03-05", "item_spotlight")
	if !ok || entry.Voice != res.Style.Voice || entry.Angle != res.Angle {
		t.Fatalf("history entry = %+v %v", entry, ok)
	}
}

func TestSelectUnknownCategory(t *testing.T) {
	_, err := style.NewSelector(defaultRules(t), style.NewMemoryHistory(60), nil).Select(context.Background(), "2024-03-05", "bard_jokes", "")
	if err == nil || !strings.Contains(err.Error(), "no style rules") {
		t.Fatalf("expected missing rules error, got %v", err)
	}
}

func TestVoiceoverLayers(t *testing.T) {
	rules := defaultRules(t)
	ctx := context.Background()

	for day := 1; day <= 20; day++ {
		d := fmt.Sprintf("2024-04-%02d", day)
		res, err := style.NewSelector(rules, style.NewMemoryHistory(60), nil).Select(ctx, d, "encounter_seed", "")
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		vo := res.Style.Voiceover
		if res.Style.Voice == "chaotic_bard" && vo.VoicePackID != "voice-bard-01" {
			t.Fatalf("voice layer not applied: %+v", vo)
		}
		if res.Style.Voice == "friendly_vet" && vo.VoicePackID != "voice-friendly-vet" {
			t.Fatalf("derived pack id = %q", vo.VoicePackID)
		}
		if res.Style.Tone == "grim" && vo.TTSVoiceID != "onyx" {
			t.Fatalf("tone layer not applied: %+v", vo)
		}
	}
}

func TestTTSVoice(t *testing.T) {
	pool := []string{"alloy", "onyx", "fable"}
	got := style.TTSVoice("2024-01-01", "monster_tactic", "warm", "friendly_vet", style.VoiceoverRule{TTSVoiceIDs: pool}, style.VoiceoverRule{})
	want := pool[seed.Index("tts|2024-01-01|monster_tactic|warm|friendly_vet", len(pool))]
	if got != want {
		t.Fatalf("TTSVoice = %q, want %q", got, want)
	}
	if got := style.TTSVoice("d", "c", "t", "v", style.VoiceoverRule{TTSVoiceID: "nova"}, style.VoiceoverRule{}); got != "nova" {
		t.Fatalf("direct id = %q", got)
	}
	if got := style.TTSVoice("d", "c", "t", "v", style.VoiceoverRule{}, style.VoiceoverRule{}); got != "alloy" {
		t.Fatalf("default = %q", got)
	}
}

func TestVoiceLinesFallback(t *testing.T) {
	rules := defaultRules(t)
	hooks, ctas := rules.VoiceLines("friendly_vet", "monster_tactic")
	if len(hooks) != 2 || !strings.Contains(hooks[0], "{name}") || len(ctas) != 2 {
		t.Fatalf("category pools = %v %v", hooks, ctas)
	}
	hooks, _ = rules.VoiceLines("grizzled_sage", "monster_tactic")
	if hooks[0] != "Listen close: {name}." {
		t.Fatalf("generic pool = %v", hooks)
	}
	hooks, _ = rules.VoiceLines("unknown_voice", "item_spotlight")
	if !strings.Contains(hooks[0], "Nobody buys") {
		t.Fatalf("unknown voice should use friendly_vet, got %v", hooks)
	}
	empty := style.Rules{}
	hooks, ctas = empty.VoiceLines("x", "y")
	if hooks[0] != "{name}." || ctas[0] != "Use it wisely." {
		t.Fatalf("neutral fallback = %v %v", hooks, ctas)
	}
}

func TestFileHistoryPrunes(t *testing.T) {
	ctx := context.Background()
	store := style.NewFileHistory(filepath.Join(t.TempDir(), "state", "style_history.json"), 2)
	for _, day := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		err := store.Update(ctx, func(h style.History) error {
			h.Record(day, "monster_tactic", style.Entry{Voice: "v-" + day})
			return nil
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	hist, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("history days = %d", len(hist))
	}
	if _, ok := hist.Lookup("2024-01-01", "monster_tactic"); ok {
		t.Fatal("oldest day should be pruned")
	}
}

func TestLoadRulesMissingFileUsesDefaults(t *testing.T) {
	rules, err := style.LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	if len(rules.Angles("monster_tactic")) != 3 {
		t.Fatalf("angles = %v", rules.Angles("monster_tactic"))
	}
}
