package gate

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sort"
	"sync"

	"loreforge/internal/fileutil"
	"loreforge/internal/services"
)

// Status is the approval state of one day.
type Status string

// Approval states. Rejected, Published, and ApprovedPublishFailed are
// terminal.
const (
	StatusPending               Status = "pending"
	StatusApproved              Status = "approved"
	StatusRejected              Status = "rejected"
	StatusPublished             Status = "published"
	StatusApprovedPublishFailed Status = "approved_publish_failed"
)

// blocksRerequest reports whether an existing record for the same content
// makes a new request a no-op.
func (s Status) blocksRerequest() bool {
	return s == StatusPending || s == StatusApproved || s == StatusPublished
}

// Record is the approval state of one day.
type Record struct {
	Day              string `json:"day"`
	ContentID        string `json:"content_id"`
	Category         string `json:"category,omitempty"`
	Angle            string `json:"angle,omitempty"`
	Status           Status `json:"status"`
	RequestedUTC     string `json:"requested_utc,omitempty"`
	RequestMessageID string `json:"request_message_id,omitempty"`
	DecisionUTC      string `json:"decision_utc,omitempty"`
	DecisionBy       string `json:"decision_by,omitempty"`
	DecisionMessage  string `json:"decision_message_id,omitempty"`
	PublishRC        *int   `json:"publish_rc,omitempty"`
	PublishOutput    string `json:"publish_output,omitempty"`
	PublishedURL     string `json:"published_url,omitempty"`
}

// maxProcessedIDs bounds the remembered message ids.
const maxProcessedIDs = 500

// State is the persisted gate document.
type State struct {
	Approvals           map[string]*Record `json:"approvals"`
	ProcessedMessageIDs []string           `json:"processed_message_ids,omitempty"`
}

func (s *State) ensure() {
	if s.Approvals == nil {
		s.Approvals = map[string]*Record{}
	}
}

// PendingDays returns the days awaiting a decision, ascending.
func (s State) PendingDays() []string {
	var days []string
	for day, rec := range s.Approvals {
		if rec != nil && rec.Status == StatusPending {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	return days
}

// Records returns every record ordered by day.
func (s State) Records() []Record {
	days := make([]string, 0, len(s.Approvals))
	for day, rec := range s.Approvals {
		if rec != nil {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	out := make([]Record, 0, len(days))
	for _, day := range days {
		out = append(out, *s.Approvals[day])
	}
	return out
}

func (s *State) processed(id string) bool {
	for _, seen := range s.ProcessedMessageIDs {
		if seen == id {
			return true
		}
	}
	return false
}

func (s *State) markProcessed(id string) {
	if id == "" || s.processed(id) {
		return
	}
	s.ProcessedMessageIDs = append(s.ProcessedMessageIDs, id)
	if over := len(s.ProcessedMessageIDs) - maxProcessedIDs; over > 0 {
		s.ProcessedMessageIDs = append([]string(nil), s.ProcessedMessageIDs[over:]...)
	}
}

// StateStore persists the gate state.
type StateStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// FileStateStore keeps the state in one JSON file written atomically.
type FileStateStore struct {
	path string
}

// NewFileStateStore returns a store at path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Path returns the state file.
func (f *FileStateStore) Path() string { return f.path }

// Load implements StateStore. A missing file is an empty state.
func (f *FileStateStore) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	var state State
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			state.ensure()
			return state, nil
		}
		return State{}, services.Wrap(services.ErrTransient, "gate", "load state", f.path, err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, services.Wrap(services.ErrValidation, "gate", "load state", "corrupt state "+f.path, err)
	}
	state.ensure()
	return state, nil
}

// Save implements StateStore.
func (f *FileStateStore) Save(ctx context.Context, state State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state.ensure()
	if err := fileutil.WriteJSONAtomic(f.path, state); err != nil {
		return services.Wrap(services.ErrTransient, "gate", "save state", f.path, err)
	}
	return nil
}

// MemoryStateStore keeps the state in memory.
type MemoryStateStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStateStore returns an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{}
}

// Load implements StateStore.
func (m *MemoryStateStore) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state), nil
}

// Save implements StateStore.
func (m *MemoryStateStore) Save(_ context.Context, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = cloneState(state)
	return nil
}

func cloneState(s State) State {
	out := State{
		Approvals:           make(map[string]*Record, len(s.Approvals)),
		ProcessedMessageIDs: append([]string(nil), s.ProcessedMessageIDs...),
	}
	for day, rec := range s.Approvals {
		if rec == nil {
			continue
		}
		cp := *rec
		if rec.PublishRC != nil {
			rc := *rec.PublishRC
			cp.PublishRC = &rc
		}
		out.Approvals[day] = &cp
	}
	return out
}
