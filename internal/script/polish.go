package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"loreforge/internal/fact"
	"loreforge/internal/logging"
	"loreforge/internal/reference"
	"loreforge/internal/textutil"
)

const polishSystemPrompt = `You polish short narration scripts for tabletop roleplaying game videos.
Return only JSON with the string keys "hook", "body", and "cta".
Keep every locked token exactly as written.
Do not introduce names, numbers, or rules that are not in the draft.
Keep each part close to the draft's length and match the requested voice and tone.
No emojis, no hashtags, no requests to like or subscribe.`

const defaultMinOverlap = 0.3

var (
	tokenPattern       = regexp.MustCompile(`[A-Za-z][A-Za-z'’]*|\d+(?:\.\d+)?`)
	boilerplatePattern = regexp.MustCompile(`(?i)(as an ai|language model|in conclusion|\bdelve\b|smash (that|the) like|subscribe|in this video|here'?s (the|your) (polished|rewritten))`)
)

// Completer is the language-model call the polisher depends on.
type Completer interface {
	Decode(ctx context.Context, systemPrompt, userPrompt string, target any) (string, error)
}

// PolishOptions configures the polish decorator.
type PolishOptions struct {
	Client Completer
	// Grounding is extra reference text polished output may draw names and
	// numbers from, in addition to the draft and the fact.
	Grounding string
	// MinOverlap is the minimum term overlap between draft and polish.
	MinOverlap float64
}

// Polisher rewrites a draft through a language model and keeps the rewrite
// only when it passes every check. Any failure yields the draft.
type Polisher struct {
	inner  Writer
	opts   PolishOptions
	logger *slog.Logger
}

// NewPolisher wraps inner.
func NewPolisher(inner Writer, opts PolishOptions, logger *slog.Logger) *Polisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.MinOverlap <= 0 {
		opts.MinOverlap = defaultMinOverlap
	}
	return &Polisher{inner: inner, opts: opts, logger: logging.NewComponentLogger(logger, "polish")}
}

// Write renders the draft and attempts the polish.
func (p *Polisher) Write(ctx context.Context, in Input) (Script, error) {
	draft, err := p.inner.Write(ctx, in)
	if err != nil || p.opts.Client == nil {
		return draft, err
	}

	polished, err := p.polish(ctx, in, draft)
	if err != nil {
		logging.WarnWithContext(p.logger, "script polish rejected; keeping draft", "script_polish_fallback",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check polish settings or the model's output"),
			logging.String(logging.FieldImpact, "the deterministic draft is used"))
		return draft, nil
	}
	p.logger.Info("script polished",
		logging.String(logging.FieldEventType, "script_polished"),
		logging.Int("draft_chars", utf8.RuneCountInString(draft.Narration())),
		logging.Int("polished_chars", utf8.RuneCountInString(polished.Narration())))
	return polished, nil
}

type polishRequest struct {
	Category     string   `json:"category"`
	Angle        string   `json:"angle"`
	Voice        string   `json:"voice"`
	Tone         string   `json:"tone"`
	Draft        Script   `json:"draft"`
	LockedTokens []string `json:"locked_tokens"`
}

func (p *Polisher) polish(ctx context.Context, in Input, draft Script) (Script, error) {
	locked := LockedTokens(draft, in.Name())
	req, err := json.Marshal(polishRequest{
		Category:     in.Category,
		Angle:        in.Angle,
		Voice:        in.Voice(),
		Tone:         in.Style.Tone,
		Draft:        draft,
		LockedTokens: locked,
	})
	if err != nil {
		return Script{}, fmt.Errorf("encode polish request: %w", err)
	}

	var out Script
	if _, err := p.opts.Client.Decode(ctx, polishSystemPrompt, string(req), &out); err != nil {
		return Script{}, err
	}
	out.Hook = textutil.CollapseSpace(out.Hook)
	out.Body = textutil.CollapseSpace(out.Body)
	out.CTA = textutil.CollapseSpace(out.CTA)

	grounding := draft.Narration() + " " + factText(in.Fact) + " " + p.opts.Grounding
	if err := CheckPolish(draft, out, locked, grounding, p.opts.MinOverlap); err != nil {
		return Script{}, err
	}
	return out, nil
}

// CheckPolish validates a rewrite against its draft: no blank part, every
// locked token kept, no boilerplate, no ungrounded proper noun or number,
// and enough term overlap with the draft.
func CheckPolish(draft, polished Script, locked []string, grounding string, minOverlap float64) error {
	if blank := polished.FirstBlank(); blank != "" {
		return fmt.Errorf("polish left %s empty", blank)
	}
	text := polished.Hook + "\n" + polished.Body + "\n" + polished.CTA
	for _, token := range locked {
		if !strings.Contains(text, token) {
			return fmt.Errorf("polish dropped locked token %q", token)
		}
	}
	if m := boilerplatePattern.FindString(text); m != "" {
		return fmt.Errorf("polish contains boilerplate %q", m)
	}
	allowed := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(grounding, -1) {
		allowed[strings.ToLower(tok)] = true
	}
	for _, tok := range significantTokens(text) {
		if !allowed[strings.ToLower(tok)] {
			return fmt.Errorf("polish introduced ungrounded token %q", tok)
		}
	}
	if score := textutil.Overlap(draft.Narration(), polished.Narration()); score < minOverlap {
		return fmt.Errorf("polish drifted from draft (overlap %.2f < %.2f)", score, minOverlap)
	}
	return nil
}

// LockedTokens lists the words of name plus every number and mid-sentence
// capitalized word in the draft, sorted and unique.
func LockedTokens(draft Script, name string) []string {
	set := make(map[string]bool)
	for _, w := range tokenPattern.FindAllString(name, -1) {
		if len(w) > 1 {
			set[w] = true
		}
	}
	for _, field := range []string{draft.Hook, draft.Body, draft.CTA} {
		for _, tok := range significantTokens(field) {
			set[tok] = true
		}
	}
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// significantTokens returns numbers and capitalized words that do not open
// a sentence.
func significantTokens(text string) []string {
	var out []string
	for _, loc := range tokenPattern.FindAllStringIndex(text, -1) {
		tok := text[loc[0]:loc[1]]
		first, _ := utf8.DecodeRuneInString(tok)
		switch {
		case unicode.IsDigit(first):
			out = append(out, tok)
		case unicode.IsUpper(first) && len(tok) > 1 && !sentenceStart(text[:loc[0]]):
			out = append(out, tok)
		}
	}
	return out
}

func sentenceStart(before string) bool {
	before = strings.TrimRightFunc(before, unicode.IsSpace)
	if before == "" {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(before)
	return strings.ContainsRune(".!?:|…\"“(", last)
}

func factText(f fact.Fact) string {
	var b strings.Builder
	write := func(fields map[string]any) {
		for _, v := range fields {
			b.WriteString(reference.AsString(v))
			b.WriteByte(' ')
		}
	}
	b.WriteString(f.Name + " ")
	write(f.Fields)
	for _, group := range [][]map[string]any{f.Traits, f.Actions, f.Attacks, f.CastingOptions, f.SpellLists} {
		for _, child := range group {
			write(child)
		}
	}
	return b.String()
}
