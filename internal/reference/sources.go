package reference

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"loreforge/internal/services"
)

// Source keys used by the pipeline.
const (
	SourceCreatures           = "creatures"
	SourceCreatureTraits      = "creature_traits"
	SourceCreatureActions     = "creature_actions"
	SourceCreatureAttacks     = "creature_attacks"
	SourceSpells              = "spells"
	SourceSpellCastingOptions = "spell_casting_options"
	SourceSpellLists          = "spell_lists"
	SourceItems               = "items"
	SourceRules               = "rules"
	SourceClasses             = "classes"
)

var defaultFiles = map[string]string{
	SourceCreatures:           "Creature.json",
	SourceCreatureTraits:      "CreatureTrait.json",
	SourceCreatureActions:     "CreatureAction.json",
	SourceCreatureAttacks:     "CreatureActionAttack.json",
	SourceSpells:              "Spell.json",
	SourceSpellCastingOptions: "SpellCastingOption.json",
	SourceSpellLists:          "SpellList.json",
	SourceItems:               "Item.json",
	SourceRules:               "Rule.json",
	SourceClasses:             "CharacterClass.json",
}

// EnvActivePath overrides every configured dataset location.
const EnvActivePath = "ACTIVE_SRD_PATH"

// SourceFile names the dataset file for one source key.
type SourceFile struct {
	File string `yaml:"file"`
}

// Sources is the decoded reference_sources.yaml.
type Sources struct {
	ActivePath string                `yaml:"active_srd_path"`
	Files      map[string]SourceFile `yaml:"sources"`
}

// LoadSources reads reference_sources.yaml. A missing file yields defaults.
func LoadSources(path string) (Sources, error) {
	var src Sources
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return src, nil
		}
		return src, services.Wrap(services.ErrConfiguration, "reference", "load sources", path, err)
	}
	if err := yaml.Unmarshal(data, &src); err != nil {
		return src, services.Wrap(services.ErrConfiguration, "reference", "parse sources", path, err)
	}
	return src, nil
}

// File returns the dataset file name for key, honouring overrides.
func (s Sources) File(key string) string {
	if f, ok := s.Files[key]; ok && strings.TrimSpace(f.File) != "" {
		return strings.TrimSpace(f.File)
	}
	return defaultFiles[key]
}

// ResolvePath picks the dataset directory: the environment override, then
// the configured path, then the sources file's active_srd_path, then each
// candidate. Relative entries resolve against baseDir. The first existing
// directory wins; when none exists the error names the preferred path.
func ResolvePath(baseDir, configured string, src Sources, candidates []string) (string, error) {
	ordered := []string{os.Getenv(EnvActivePath), configured, src.ActivePath}
	ordered = append(ordered, candidates...)

	preferred := ""
	for _, candidate := range ordered {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(baseDir, candidate)
		}
		candidate = filepath.Clean(candidate)
		if preferred == "" {
			preferred = candidate
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	if preferred == "" {
		return "", services.Wrap(services.ErrConfiguration, "reference", "resolve", "no dataset path configured", nil)
	}
	return "", services.Wrap(services.ErrConfiguration, "reference", "resolve",
		fmt.Sprintf("dataset directory not found: %s", preferred), nil)
}
