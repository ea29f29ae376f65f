// Package spine decides the day's category and angle from the topic spine:
// a weekday schedule with weighted angles, or a legacy weighted schedule.
package spine

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"loreforge/internal/category"
	"loreforge/internal/seed"
	"loreforge/internal/services"
)

// Fallbacks used when the spine names nothing for a day.
const (
	DefaultCategory = category.MonsterTactic
	DefaultAngle    = "how_it_wins"
)

//go:embed default_topic_spine.yaml
var defaultSpineYAML []byte

var weekdayKeys = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// CategoryWeights holds the angle weights of one category.
type CategoryWeights struct {
	Angles map[string]int `yaml:"angles"`
}

// ScheduleRow is one entry of the legacy schedule.
type ScheduleRow struct {
	Category string `yaml:"category"`
	Angle    string `yaml:"angle"`
	Weight   *int   `yaml:"weight"`
}

// Spine is the parsed topic_spine.yaml.
type Spine struct {
	WeeklySpine     map[string]string          `yaml:"weekly_spine"`
	CategoryWeights map[string]CategoryWeights `yaml:"category_weights"`
	Schedule        []ScheduleRow              `yaml:"schedule"`
}

// Topic is a resolved category and angle.
type Topic struct {
	Category string
	Angle    string
	// Source names the rule that produced the topic: weekly, schedule, or default.
	Source string
}

// Parse decodes a topic spine document.
func Parse(data []byte) (Spine, error) {
	var s Spine
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Spine{}, services.Wrap(services.ErrConfiguration, "spine", "parse", "topic spine", err)
	}
	return s, nil
}

// Load reads the spine at path. A missing file yields the built-in spine.
func Load(path string) (Spine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Parse(defaultSpineYAML)
		}
		return Spine{}, services.Wrap(services.ErrConfiguration, "spine", "load", path, err)
	}
	return Parse(data)
}

// DefaultYAML returns the built-in spine document.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultSpineYAML...)
}

// Choose resolves the topic for day. The weekly spine wins when it names a
// category for the weekday; otherwise the legacy schedule is drawn from.
// The angle may be empty when no weights apply; see Topic.Fill.
func (s Spine) Choose(day string) (Topic, error) {
	t, err := parseDay(day)
	if err != nil {
		return Topic{}, err
	}

	if len(s.WeeklySpine) > 0 {
		if cat := strings.TrimSpace(s.WeeklySpine[weekdayKeys[t]]); cat != "" {
			topic := Topic{Category: category.Normalize(cat), Source: "weekly"}
			w := s.CategoryWeights[cat].Angles
			if len(w) == 0 {
				w = s.CategoryWeights[topic.Category].Angles
			}
			if len(w) > 0 {
				topic.Angle, _ = seed.Weighted(fmt.Sprintf("angle|%s|%s", day, cat), w)
			}
			return topic, nil
		}
	}

	if len(s.Schedule) > 0 {
		weights := map[string]int{}
		for _, row := range s.Schedule {
			cat := strings.TrimSpace(row.Category)
			if cat == "" {
				continue
			}
			w := 1
			if row.Weight != nil {
				w = *row.Weight
			}
			weights[cat] = w
		}
		if cat, ok := seed.Weighted("topic|"+day, weights); ok {
			return Topic{Category: category.Normalize(cat), Source: "schedule"}, nil
		}
	}

	return Topic{Category: DefaultCategory, Source: "default"}, nil
}

// Fill completes t with DefaultCategory and DefaultAngle. Nothing from a
// previous atom carries over, so a re-run over a stale atom resolves the
// same topic as a fresh run.
func (t Topic) Fill() Topic {
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if t.Angle == "" {
		t.Angle = DefaultAngle
	}
	return t
}

func parseDay(day string) (int, error) {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		return 0, services.Wrap(services.ErrValidation, "spine", "choose", fmt.Sprintf("invalid day %q", day), err)
	}
	return int(t.Weekday()), nil
}
