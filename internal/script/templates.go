package script

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"loreforge/internal/category"
	"loreforge/internal/logging"
	"loreforge/internal/services"
	"loreforge/internal/style"
)

// bodyFunc renders the body for one angle.
type bodyFunc func(in Input, angle string) string

type template struct {
	kind   string
	angles []string
	body   bodyFunc
}

var templates = map[string]template{
	category.MonsterTactic:     {category.KindCreature, []string{"how_it_wins", "common_mistake", "counterplay"}, monsterBody},
	category.EncounterSeed:     {category.KindCreature, []string{"moral_choice", "ambush", "complication"}, encounterBody},
	category.SpellUseCase:      {category.KindSpell, []string{"best_moment", "common_misplay", "dm_twist"}, spellBody},
	category.ItemSpotlight:     {category.KindItem, []string{"story_hook", "clever_use", "drawback_watchout"}, itemBody},
	category.RulesRuling:       {category.KindRule, []string{"quick_ruling", "edge_case"}, ruleBody},
	category.RulesMyth:         {category.KindRule, []string{"myth_busted", "table_check"}, ruleBody},
	category.CharacterMicroTip: {category.KindClass, []string{"build_tip", "roleplay_hook"}, classBody},
}

// Angles returns the angles with dedicated templates for categoryName.
func Angles(categoryName string) []string {
	return slices.Clone(templates[category.Normalize(categoryName)].angles)
}

// TemplateWriter renders deterministic scripts from per-category templates
// and the voice phrase pools of the style rules.
type TemplateWriter struct {
	rules  style.Rules
	logger *slog.Logger
}

// NewTemplateWriter builds a template writer.
func NewTemplateWriter(rules style.Rules, logger *slog.Logger) *TemplateWriter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TemplateWriter{rules: rules, logger: logging.NewComponentLogger(logger, "script")}
}

// Write renders the script. Unknown angles fall back to the category's first
// template angle.
func (w *TemplateWriter) Write(_ context.Context, in Input) (Script, error) {
	in.Category = category.Normalize(in.Category)
	tpl, ok := templates[in.Category]
	if !ok || tpl.kind != in.Fact.Kind {
		return Script{}, services.Wrap(services.ErrValidation, "script", "template",
			fmt.Sprintf("%s/%s", in.Category, in.Fact.Kind), ErrUnsupported)
	}

	angle := in.Angle
	if !slices.Contains(tpl.angles, angle) {
		angle = tpl.angles[0]
		w.logger.Warn("no template for angle; using category default",
			logging.String(logging.FieldEventType, "script_angle_fallback"),
			logging.String("angle", in.Angle),
			logging.String("template_angle", angle),
			logging.String(logging.FieldErrorHint, "add the angle to the script templates or remove it from style_rules.yaml"))
	}

	hooks, ctas := w.rules.VoiceLines(in.Voice(), in.Category)
	out := Script{
		Hook: phrase(in, "hook", hooks),
		Body: tpl.body(in, angle),
		CTA:  phrase(in, "cta", ctas),
	}
	w.logger.Debug("script rendered",
		logging.String("angle", angle),
		logging.String("voice", in.Voice()),
		logging.Int("body_chars", len(out.Body)))
	return out, nil
}
