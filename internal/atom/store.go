package atom

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"loreforge/internal/fileutil"
	"loreforge/internal/services"
)

// Stage is an atom directory.
type Stage string

// Atom stages. Validated and Failed are terminal.
const (
	Incoming  Stage = "incoming"
	Validated Stage = "validated"
	Failed    Stage = "failed"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{Incoming, Validated, Failed}

// Store reads and writes atom files under root/<stage>/<day>.json.
type Store struct {
	root string
}

// NewStore returns a store rooted at root (usually data/atoms).
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Path returns the file of day in stage.
func (s *Store) Path(stage Stage, day string) string {
	return filepath.Join(s.root, string(stage), day+".json")
}

// Ensure creates the stage directories.
func (s *Store) Ensure() error {
	for _, stage := range Stages {
		if err := os.MkdirAll(filepath.Join(s.root, string(stage)), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", stage, err)
		}
	}
	return nil
}

// Exists reports whether day has a file in stage.
func (s *Store) Exists(stage Stage, day string) bool {
	return fileutil.Exists(s.Path(stage, day))
}

// Load decodes the atom of day in stage.
func (s *Store) Load(stage Stage, day string) (*Atom, error) {
	var a Atom
	if err := s.read(stage, day, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadRaw decodes the atom of day in stage without imposing the model, for
// shape validation.
func (s *Store) LoadRaw(stage Stage, day string) (map[string]any, error) {
	var raw map[string]any
	if err := s.read(stage, day, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Store) read(stage Stage, day string, dst any) error {
	path := s.Path(stage, day)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "atom", "load", "atom not found: "+path, nil)
		}
		return services.Wrap(services.ErrTransient, "atom", "load", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "atom", "decode", path, err)
	}
	return nil
}

// Save writes a atomically into stage.
func (s *Store) Save(stage Stage, a *Atom) error {
	if _, err := ParseDay(a.Day); err != nil {
		return services.Wrap(services.ErrValidation, "atom", "save", "", err)
	}
	if err := fileutil.WriteJSONAtomic(s.Path(stage, a.Day), a); err != nil {
		return services.Wrap(services.ErrTransient, "atom", "save", a.Day, err)
	}
	return nil
}

// SaveRaw writes an undecoded atom atomically into stage.
func (s *Store) SaveRaw(stage Stage, day string, raw map[string]any) error {
	if err := fileutil.WriteJSONAtomic(s.Path(stage, day), raw); err != nil {
		return services.Wrap(services.ErrTransient, "atom", "save", day, err)
	}
	return nil
}

// Move renames day's file from one stage to another and returns the new
// path. A stale copy of day in any other terminal stage is removed so a day
// lives in exactly one terminal directory.
func (s *Store) Move(from, to Stage, day string) (string, error) {
	dst := s.Path(to, day)
	if err := fileutil.MoveFile(s.Path(from, day), dst); err != nil {
		return "", services.Wrap(services.ErrTransient, "atom", "move", fmt.Sprintf("%s -> %s", from, to), err)
	}
	for _, stage := range []Stage{Validated, Failed} {
		if stage == to || stage == from {
			continue
		}
		if err := os.Remove(s.Path(stage, day)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return dst, services.Wrap(services.ErrTransient, "atom", "move", "remove stale copy", err)
		}
	}
	return dst, nil
}

// List returns the days present in stage, ascending.
func (s *Store) List(stage Stage) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, string(stage)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrTransient, "atom", "list", string(stage), err)
	}
	var days []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		day := strings.TrimSuffix(name, ".json")
		if _, err := ParseDay(day); err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Strings(days)
	return days, nil
}

// LatestDay returns the newest day in stage.
func (s *Store) LatestDay(stage Stage) (string, error) {
	days, err := s.List(stage)
	if err != nil {
		return "", err
	}
	if len(days) == 0 {
		return "", services.Wrap(services.ErrNotFound, "atom", "latest", "no atoms in "+string(stage), nil)
	}
	return days[len(days)-1], nil
}

// Locate finds day in the first stage that has it, preferring validated.
func (s *Store) Locate(day string) (Stage, error) {
	for _, stage := range []Stage{Validated, Incoming, Failed} {
		if s.Exists(stage, day) {
			return stage, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "atom", "locate", "no atom for "+day, nil)
}
