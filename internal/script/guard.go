package script

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"loreforge/internal/category"
	"loreforge/internal/logging"
)

var (
	forbiddenCTA = regexp.MustCompile(`(?i)\b(kill|murder|tortur|genocid)\w*`)
	inviteCTA    = regexp.MustCompile(`(?i)\b(you|would)\b`)
)

var safeMoralCTAs = []string{
	"What would your party do?",
	"Would you help them, bargain, or walk away?",
	"What would you choose, and what would it cost you?",
}

// NeedsGuard reports whether category and angle carry CTA constraints.
func NeedsGuard(categoryName, angle string) bool {
	return category.Normalize(categoryName) == category.EncounterSeed && angle == "moral_choice"
}

// CTAAllowed reports whether cta invites a choice without endorsing
// violence: it asks a question or addresses the viewer, and names none of
// the forbidden acts.
func CTAAllowed(cta string) bool {
	if forbiddenCTA.MatchString(cta) {
		return false
	}
	return strings.Contains(cta, "?") || inviteCTA.MatchString(cta)
}

// Guard replaces CTAs that break the moral-choice rules with a
// deterministic safe line.
type Guard struct {
	inner  Writer
	logger *slog.Logger
}

// NewGuard wraps inner.
func NewGuard(inner Writer, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Guard{inner: inner, logger: logging.NewComponentLogger(logger, "script")}
}

// Write delegates to the inner writer and checks the CTA.
func (g *Guard) Write(ctx context.Context, in Input) (Script, error) {
	out, err := g.inner.Write(ctx, in)
	if err != nil {
		return out, err
	}
	if !NeedsGuard(in.Category, in.Angle) || CTAAllowed(out.CTA) {
		return out, nil
	}
	replacement := phrase(in, "guard", safeMoralCTAs)
	attrs := append(logging.DecisionAttrs("cta_guard", "replaced", "moral choice CTA must invite a choice without violence"),
		logging.String("original", out.CTA),
		logging.String("replacement", replacement))
	g.logger.Info("cta replaced by guard", logging.Args(attrs...)...)
	out.CTA = replacement
	return out, nil
}
