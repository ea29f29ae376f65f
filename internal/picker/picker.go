// Package picker chooses the day's reference record for a category.
package picker

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"loreforge/internal/category"
	"loreforge/internal/reference"
	"loreforge/internal/seed"
	"loreforge/internal/services"
)

// Pick failure causes, wrapped with a services marker.
var (
	ErrDatasetMissing = errors.New("dataset file missing")
	ErrNoCandidates   = errors.New("no candidate records")
)

// weakCreatureCR is the challenge rating below which creatures are skipped
// for how_it_wins tactics.
const weakCreatureCR = 1.0

// Options tunes candidate filtering.
type Options struct {
	// SkipWeakCreatures drops creatures below challenge rating 1 for
	// monster_tactic/how_it_wins when stronger ones exist.
	SkipWeakCreatures bool
}

// Result is one seeded pick.
type Result struct {
	Category   string
	Kind       string
	PickKey    string
	PK         reference.PK
	Candidates int
	Seed       string
}

// Picks returns the atom picks map for r.
func (r Result) Picks() map[string]reference.PK {
	return map[string]reference.PK{r.PickKey: r.PK}
}

// Pick draws a primary key for categoryName on day. The draw is uniform over
// the category's dataset file and seeded by "day|category|kind". Candidates
// are ordered by key before drawing, so reordering the file never changes
// the pick.
func Pick(ds *reference.Dataset, day, categoryName, angle string, opts Options) (Result, error) {
	spec, err := category.Lookup(categoryName)
	if err != nil {
		return Result{}, err
	}

	records, err := ds.Records(spec.SourceKey)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %w", ErrDatasetMissing, err)
		}
		return Result{}, err
	}

	pks := candidates(records, spec, angle, opts)
	if len(pks) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "picker", "pick",
			"no pks in "+ds.FilePath(spec.SourceKey), ErrNoCandidates)
	}

	key := fmt.Sprintf("%s|%s|%s", day, spec.Name, spec.Kind)
	return Result{
		Category:   spec.Name,
		Kind:       spec.Kind,
		PickKey:    spec.PickKey,
		PK:         seed.Choice(key, pks),
		Candidates: len(pks),
		Seed:       key,
	}, nil
}

func candidates(records []reference.Record, spec category.Spec, angle string, opts Options) []reference.PK {
	all := make([]reference.PK, 0, len(records))
	var strong []reference.PK
	for _, rec := range records {
		if rec.PK == "" {
			continue
		}
		all = append(all, rec.PK)
		if cr, ok := reference.FieldFloat(rec.Fields, "challenge_rating_decimal"); ok && cr >= weakCreatureCR {
			strong = append(strong, rec.PK)
		}
	}
	if opts.SkipWeakCreatures && spec.Name == category.MonsterTactic && angle == "how_it_wins" && len(strong) > 0 {
		all = strong
	}
	sortPKs(all)
	return all
}

// sortPKs orders keys numerically when every key is an integer and
// lexically otherwise.
func sortPKs(pks []reference.PK) {
	nums := make(map[reference.PK]int64, len(pks))
	for _, pk := range pks {
		n, err := strconv.ParseInt(string(pk), 10, 64)
		if err != nil {
			slices.Sort(pks)
			return
		}
		nums[pk] = n
	}
	slices.SortFunc(pks, func(a, b reference.PK) int {
		return cmp.Compare(nums[a], nums[b])
	})
}
