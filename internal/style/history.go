package style

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"loreforge/internal/fileutil"
)

// Entry records what was chosen for one category on one day.
type Entry struct {
	Angle   string   `json:"angle"`
	Voice   string   `json:"voice"`
	Tone    string   `json:"tone"`
	Persona string   `json:"persona"`
	Spice   []string `json:"spice"`
}

// History maps day -> category -> Entry.
type History map[string]map[string]Entry

// Lookup returns the entry for day and category.
func (h History) Lookup(day, category string) (Entry, bool) {
	entry, ok := h[day][category]
	return entry, ok
}

// Record stores entry for day and category.
func (h History) Record(day, category string, entry Entry) {
	if h[day] == nil {
		h[day] = make(map[string]Entry)
	}
	h[day][category] = entry
}

// Prune keeps only the keep most recent days. keep <= 0 keeps everything.
func (h History) Prune(keep int) {
	if keep <= 0 || len(h) <= keep {
		return
	}
	days := make([]string, 0, len(h))
	for day := range h {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days[:len(days)-keep] {
		delete(h, day)
	}
}

func (h History) clone() History {
	out := make(History, len(h))
	for day, cats := range h {
		inner := make(map[string]Entry, len(cats))
		for cat, entry := range cats {
			entry.Spice = append([]string(nil), entry.Spice...)
			inner[cat] = entry
		}
		out[day] = inner
	}
	return out
}

// HistoryStore persists style history with load-modify-save semantics.
type HistoryStore interface {
	Load(ctx context.Context) (History, error)
	Update(ctx context.Context, fn func(History) error) error
}

// FileHistory stores history as a JSON document, rewritten atomically on
// every update.
type FileHistory struct {
	path string
	keep int
	mu   sync.Mutex
}

// NewFileHistory returns a file-backed store that retains keep days.
func NewFileHistory(path string, keep int) *FileHistory {
	return &FileHistory{path: path, keep: keep}
}

// Load reads the history file. A missing file is an empty history.
func (f *FileHistory) Load(ctx context.Context) (History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

// Update applies fn to the stored history, prunes it, and saves it.
func (f *FileHistory) Update(ctx context.Context, fn func(History) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	hist, err := f.load()
	if err != nil {
		return err
	}
	if err := fn(hist); err != nil {
		return err
	}
	hist.Prune(f.keep)
	if err := fileutil.WriteJSONAtomic(f.path, hist); err != nil {
		return fmt.Errorf("persist style history: %w", err)
	}
	return nil
}

func (f *FileHistory) load() (History, error) {
	hist := History{}
	if err := fileutil.ReadJSON(f.path, &hist); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return History{}, nil
		}
		return nil, fmt.Errorf("read style history: %w", err)
	}
	if hist == nil {
		hist = History{}
	}
	return hist, nil
}

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu   sync.Mutex
	hist History
	keep int
}

// NewMemoryHistory returns an empty in-memory store retaining keep days.
func NewMemoryHistory(keep int) *MemoryHistory {
	return &MemoryHistory{hist: History{}, keep: keep}
}

// Load returns a copy of the stored history.
func (m *MemoryHistory) Load(context.Context) (History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hist.clone(), nil
}

// Update applies fn to a copy and keeps it when fn succeeds.
func (m *MemoryHistory) Update(_ context.Context, fn func(History) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.hist.clone()
	if err := fn(next); err != nil {
		return err
	}
	next.Prune(m.keep)
	m.hist = next
	return nil
}
