// Package fact resolves the picked primary key of an atom into a fact bundle:
// the base record's fields plus the child records that scripts draw on.
package fact

import (
	"errors"
	"fmt"

	"loreforge/internal/category"
	"loreforge/internal/reference"
	"loreforge/internal/services"
)

// Attach failure causes, wrapped with a services marker.
var (
	ErrUnsupportedCategory = errors.New("unsupported category")
	ErrMissingPK           = errors.New("missing pk")
	ErrPKNotFound          = errors.New("pk not found")
)

// Fact is the reference record attached to an atom. Creature facts carry
// traits, actions, and attacks; spell facts carry casting options and spell
// lists when those files exist.
type Fact struct {
	Kind           string           `json:"kind"`
	PK             reference.PK     `json:"pk"`
	Name           string           `json:"name"`
	Document       string           `json:"document"`
	Fields         map[string]any   `json:"fields"`
	Traits         []map[string]any `json:"traits,omitempty"`
	Actions        []map[string]any `json:"actions,omitempty"`
	Attacks        []map[string]any `json:"attacks,omitempty"`
	CastingOptions []map[string]any `json:"casting_options,omitempty"`
	SpellLists     []map[string]any `json:"spell_lists,omitempty"`
}

// Field returns a base field rendered as text.
func (f Fact) Field(key string) string {
	return reference.FieldString(f.Fields, key)
}

// IsZero reports whether no fact has been attached.
func (f Fact) IsZero() bool {
	return f.Kind == "" && f.PK == "" && f.Name == ""
}

// Attach looks up pk in the dataset file for categoryName and joins its
// child records.
func Attach(ds *reference.Dataset, categoryName string, pk reference.PK) (Fact, error) {
	spec, err := category.Lookup(categoryName)
	if err != nil {
		return Fact{}, services.Wrap(services.ErrValidation, "fact", "attach",
			fmt.Sprintf("category %q", categoryName), ErrUnsupportedCategory)
	}
	if pk == "" || pk == "0" {
		return Fact{}, services.Wrap(services.ErrValidation, "fact", "attach",
			"no "+spec.PickKey+" for "+spec.Name, ErrMissingPK)
	}

	base, err := ds.Find(spec.SourceKey, pk)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Fact{}, fmt.Errorf("%w: %w", ErrPKNotFound, err)
		}
		return Fact{}, err
	}

	out := Fact{
		Kind:     spec.Kind,
		PK:       pk,
		Name:     reference.FieldString(base.Fields, "name"),
		Document: reference.FieldString(base.Fields, "document"),
		Fields:   base.Fields,
	}

	switch spec.Kind {
	case category.KindCreature:
		if out.Traits, err = required(ds, reference.SourceCreatureTraits, pk); err != nil {
			return Fact{}, err
		}
		if out.Actions, err = required(ds, reference.SourceCreatureActions, pk); err != nil {
			return Fact{}, err
		}
		if out.Attacks, err = required(ds, reference.SourceCreatureAttacks, pk); err != nil {
			return Fact{}, err
		}
	case category.KindSpell:
		if out.CastingOptions, err = optional(ds, reference.SourceSpellCastingOptions, pk); err != nil {
			return Fact{}, err
		}
		if out.SpellLists, err = optional(ds, reference.SourceSpellLists, pk); err != nil {
			return Fact{}, err
		}
	}
	return out, nil
}

func required(ds *reference.Dataset, key string, parent reference.PK) ([]map[string]any, error) {
	records, err := ds.Records(key)
	if err != nil {
		return nil, err
	}
	return childFields(records, parent), nil
}

func optional(ds *reference.Dataset, key string, parent reference.PK) ([]map[string]any, error) {
	records, ok, err := ds.OptionalRecords(key)
	if err != nil || !ok {
		return nil, err
	}
	return childFields(records, parent), nil
}

func childFields(records []reference.Record, parent reference.PK) []map[string]any {
	children := reference.Children(records, parent)
	out := make([]map[string]any, 0, len(children))
	for _, child := range children {
		fields := child.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		out = append(out, fields)
	}
	return out
}
