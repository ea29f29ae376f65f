// Package style chooses the voice, tone, persona, and voiceover of a day's
// atom. Choices are seeded by day and category and steer away from what the
// category used on the preceding days.
package style

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"loreforge/internal/logging"
	"loreforge/internal/seed"
	"loreforge/internal/services"
	"loreforge/internal/textutil"
)

// DefaultVoice is used when an atom carries no style.
const DefaultVoice = "friendly_vet"

const (
	defaultTTSVoice = "alloy"
	defaultLength   = "shorts"
	dayLayout       = "2006-01-02"
)

// Voiceover carries the narration settings renderers consume.
type Voiceover struct {
	VoicePackID string `json:"voice_pack_id"`
	TTSVoiceID  string `json:"tts_voice_id"`
}

// Style is the chosen presentation of one atom.
type Style struct {
	Voice     string    `json:"voice"`
	Tone      string    `json:"tone"`
	Persona   string    `json:"persona"`
	Voiceover Voiceover `json:"voiceover"`
	Spice     []string  `json:"spice"`
	Length    string    `json:"length"`
	Seed      string    `json:"seed"`
}

// Result is a selected style plus the angle it settled on.
type Result struct {
	Angle string
	Style Style
}

// Selector picks styles from a rules document and records them in history.
type Selector struct {
	rules   Rules
	history HistoryStore
	logger  *slog.Logger
}

// NewSelector builds a selector.
func NewSelector(rules Rules, history HistoryStore, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Selector{rules: rules, history: history, logger: logging.NewComponentLogger(logger, "style")}
}

// Select chooses a style for day and category. A requested angle is kept
// when the category allows it; otherwise an angle is drawn.
func (s *Selector) Select(ctx context.Context, day, category, angle string) (Result, error) {
	rule, ok := s.rules.CategoryRules[category]
	if !ok {
		return Result{}, services.Wrap(services.ErrValidation, "style", "select",
			fmt.Sprintf("no style rules for category %q", category), nil)
	}
	angles := cleanList(rule.Angles)
	voices := s.rules.voices(category)
	if len(angles) == 0 || len(voices) == 0 {
		return Result{}, services.Wrap(services.ErrConfiguration, "style", "select",
			fmt.Sprintf("style rules missing angles/voices for %s", category), nil)
	}

	hist, err := s.history.Load(ctx)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "style", "load history", "", err)
	}

	seedKey := day + "|" + category
	rng := seed.New(seedKey)
	prev, _ := hist.Lookup(shiftDay(day, -1), category)

	if !slices.Contains(angles, angle) {
		angle = chooseAvoiding(rng.IntN, angles, []string{prev.Angle})
	}
	voice := chooseAvoiding(rng.IntN, voices, []string{prev.Voice})
	tone := chooseAvoiding(rng.IntN, s.rules.tones(category), recentTones(hist, day, category, s.rules.toneLookback()))
	persona := s.rules.persona(category)

	vo := s.rules.Defaults.VoiceoverDefault
	if layer, ok := s.rules.VoiceoverByTone[tone]; ok {
		vo = vo.merge(layer)
	}
	if layer, ok := s.rules.VoiceoverByVoice[voice]; ok {
		vo = vo.merge(layer)
	}

	spice := []string{}
	if rng.Float64() < s.rules.Defaults.SpiceRate {
		pool := s.rules.spicePool()
		spice = append(spice, pool[rng.IntN(len(pool))])
	}

	length := s.rules.Defaults.Length
	if length == "" {
		length = defaultLength
	}

	out := Style{
		Voice:   voice,
		Tone:    tone,
		Persona: persona,
		Voiceover: Voiceover{
			VoicePackID: voicePackID(vo, voice),
			TTSVoiceID:  TTSVoice(day, category, tone, voice, vo, s.rules.Defaults.VoiceoverDefault),
		},
		Spice:  spice,
		Length: length,
		Seed:   seedKey,
	}

	err = s.history.Update(ctx, func(h History) error {
		h.Record(day, category, Entry{Angle: angle, Voice: voice, Tone: tone, Persona: persona, Spice: spice})
		return nil
	})
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "style", "save history", "", err)
	}

	s.logger.Info("style selected",
		logging.String(logging.FieldEventType, "style_selected"),
		logging.String("angle", angle),
		logging.String("voice", voice),
		logging.String("tone", tone),
		logging.String("persona", persona),
		logging.String("tts_voice", out.Voiceover.TTSVoiceID))

	return Result{Angle: angle, Style: out}, nil
}

// TTSVoice picks the narration voice. A pool is indexed by the digest of
// "tts|day|category|tone|voice"; otherwise the single configured id, then
// the default layer's id, then "alloy".
func TTSVoice(day, category, tone, voice string, merged, base VoiceoverRule) string {
	if pool := cleanList(merged.TTSVoiceIDs); len(pool) > 0 {
		return pool[seed.Index("tts|"+day+"|"+category+"|"+tone+"|"+voice, len(pool))]
	}
	if merged.TTSVoiceID != "" {
		return merged.TTSVoiceID
	}
	if base.TTSVoiceID != "" {
		return base.TTSVoiceID
	}
	return defaultTTSVoice
}

func voicePackID(vo VoiceoverRule, voice string) string {
	if vo.VoicePackID != "" {
		return vo.VoicePackID
	}
	return "voice-" + textutil.Slug(voice)
}

// chooseAvoiding draws from options minus avoid, or from options when the
// filter leaves nothing.
func chooseAvoiding(intn func(int) int, options, avoid []string) string {
	filtered := make([]string, 0, len(options))
	for _, opt := range options {
		if !slices.Contains(avoid, opt) {
			filtered = append(filtered, opt)
		}
	}
	if len(filtered) == 0 {
		filtered = options
	}
	return filtered[intn(len(filtered))]
}

func recentTones(h History, day, category string, lookback int) []string {
	var tones []string
	for i := 1; i <= lookback; i++ {
		if entry, ok := h.Lookup(shiftDay(day, -i), category); ok && entry.Tone != "" {
			tones = append(tones, entry.Tone)
		}
	}
	return tones
}

func shiftDay(day string, delta int) string {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, delta).Format(dayLayout)
}
