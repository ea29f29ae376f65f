package style

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"loreforge/internal/services"
)

//go:embed default_style_rules.yaml
var defaultRulesYAML []byte

// DefaultRulesYAML returns the built-in rules document.
func DefaultRulesYAML() []byte {
	return append([]byte(nil), defaultRulesYAML...)
}

// VoiceoverRule is one layer of voiceover settings. Later layers override
// non-empty values of earlier ones.
type VoiceoverRule struct {
	VoicePackID string   `yaml:"voice_pack_id"`
	TTSVoiceID  string   `yaml:"tts_voice_id"`
	TTSVoiceIDs []string `yaml:"tts_voice_ids"`
}

func (v VoiceoverRule) merge(over VoiceoverRule) VoiceoverRule {
	if strings.TrimSpace(over.VoicePackID) != "" {
		v.VoicePackID = over.VoicePackID
	}
	if strings.TrimSpace(over.TTSVoiceID) != "" {
		v.TTSVoiceID = over.TTSVoiceID
	}
	if len(over.TTSVoiceIDs) > 0 {
		v.TTSVoiceIDs = over.TTSVoiceIDs
	}
	return v
}

// Defaults apply to every category.
type Defaults struct {
	Voices           []string      `yaml:"voices"`
	Tones            []string      `yaml:"tones"`
	PersonaDefault   string        `yaml:"persona_default"`
	SpiceRate        float64       `yaml:"spice_rate"`
	SpicePool        []string      `yaml:"spice_pool"`
	ToneLookbackDays int           `yaml:"tone_lookback_days"`
	Length           string        `yaml:"length"`
	VoiceoverDefault VoiceoverRule `yaml:"voiceover_default"`
}

// CategoryRule lists the allowed angles and voices of a category.
type CategoryRule struct {
	Angles []string `yaml:"angles"`
	Voices []string `yaml:"voices"`
}

// StringList decodes either a YAML scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if v := strings.TrimSpace(node.Value); v != "" {
			*s = StringList{v}
		} else {
			*s = nil
		}
		return nil
	default:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
}

// Rules is the decoded style_rules.yaml.
type Rules struct {
	Defaults          Defaults                       `yaml:"defaults"`
	CategoryRules     map[string]CategoryRule        `yaml:"category_rules"`
	PersonaByCategory map[string]string              `yaml:"persona_by_category"`
	TonesByCategory   map[string]StringList          `yaml:"tones_by_category"`
	VoiceoverByTone   map[string]VoiceoverRule       `yaml:"voiceover_by_tone"`
	VoiceoverByVoice  map[string]VoiceoverRule       `yaml:"voiceover_by_voice"`
	Voices            map[string]map[string][]string `yaml:"voices"`
}

// ParseRules decodes a rules document.
func ParseRules(data []byte) (Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, services.Wrap(services.ErrConfiguration, "style", "parse rules", "", err)
	}
	return rules, nil
}

// LoadRules reads the rules file at path, falling back to the built-in
// rules when the file does not exist.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ParseRules(defaultRulesYAML)
		}
		return Rules{}, services.Wrap(services.ErrConfiguration, "style", "load rules", path, err)
	}
	return ParseRules(data)
}

// Angles returns the allowed angles for category.
func (r Rules) Angles(category string) []string {
	return r.CategoryRules[category].Angles
}

// VoiceLines returns the hook and CTA pools for voice and category. Pools
// fall back to the voice's generic pools, then to friendly_vet, then to
// single neutral lines.
func (r Rules) VoiceLines(voice, category string) (hooks, ctas []string) {
	pools, ok := r.Voices[voice]
	if !ok {
		pools = r.Voices[DefaultVoice]
	}
	hooks = firstNonEmpty(pools["hooks_"+category], pools["hooks"], []string{"{name}."})
	ctas = firstNonEmpty(pools["ctas_"+category], pools["ctas"], []string{"Use it wisely."})
	return hooks, ctas
}

func (r Rules) tones(category string) []string {
	if tones := cleanList(r.TonesByCategory[category]); len(tones) > 0 {
		return tones
	}
	if tones := cleanList(r.Defaults.Tones); len(tones) > 0 {
		return tones
	}
	return []string{"neutral"}
}

func (r Rules) voices(category string) []string {
	if voices := cleanList(r.CategoryRules[category].Voices); len(voices) > 0 {
		return voices
	}
	return cleanList(r.Defaults.Voices)
}

func (r Rules) persona(category string) string {
	if p := strings.TrimSpace(r.PersonaByCategory[category]); p != "" {
		return p
	}
	if p := strings.TrimSpace(r.Defaults.PersonaDefault); p != "" {
		return p
	}
	return "table_coach"
}

func (r Rules) spicePool() []string {
	if pool := cleanList(r.Defaults.SpicePool); len(pool) > 0 {
		return pool
	}
	return []string{"dry_humor", "grim", "practical", "punchy"}
}

func (r Rules) toneLookback() int {
	if r.Defaults.ToneLookbackDays > 0 {
		return r.Defaults.ToneLookbackDays
	}
	return 1
}

func firstNonEmpty(lists ...[]string) []string {
	for _, list := range lists {
		if clean := cleanList(list); len(clean) > 0 {
			return clean
		}
	}
	return nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
