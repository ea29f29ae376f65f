package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/lock"
	"loreforge/internal/metrics"
	"loreforge/internal/notifications"
	"loreforge/internal/pipeline"
	"loreforge/internal/reference"
	"loreforge/internal/script"
	"loreforge/internal/services"
	"loreforge/internal/spine"
	"loreforge/internal/style"
	"loreforge/internal/testsupport"
	"loreforge/internal/validate"
)

const day = "2024-03-04"

var fixedNow = time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)

const monsterSpine = `
weekly_spine:
  mon: monster_tactic
  tue: monster_tactic
  wed: monster_tactic
  thu: monster_tactic
  fri: monster_tactic
  sat: monster_tactic
  sun: monster_tactic
category_weights:
  monster_tactic:
    angles:
      how_it_wins: 1
`

type recordingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

type harness struct {
	runner   *pipeline.Runner
	store    *atom.Store
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	textfile string
	locksDir string
	dataDir  string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	return newHarnessWithSpine(t, monsterSpine, nil)
}

func newHarnessWithSpine(t *testing.T, spineYAML string, logger *slog.Logger) harness {
	t.Helper()
	base := t.TempDir()
	dataDir := filepath.Join(base, "reference")
	testsupport.WriteDataset(t, dataDir)

	sp, err := spine.Parse([]byte(spineYAML))
	if err != nil {
		t.Fatalf("spine: %v", err)
	}
	rules, err := style.ParseRules(style.DefaultRulesYAML())
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	store := atom.NewStore(filepath.Join(base, "atoms"))
	if err := store.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	notifier := &recordingNotifier{}
	m := metrics.New()
	textfile := filepath.Join(base, "metrics", "loreforge.prom")
	locksDir := filepath.Join(base, "locks")

	runner := pipeline.New(pipeline.Deps{
		Atoms:    store,
		Dataset:  reference.Open(dataDir, reference.Sources{}),
		Spine:    sp,
		Styles:   style.NewSelector(rules, style.NewMemoryHistory(30), nil),
		Writer:   script.NewChain(rules, nil, nil),
		Notifier: notifier,
		Metrics:  m,
	}, pipeline.Options{
		LocksDir:           locksDir,
		AdvisoryLock:       true,
		WeakCreatureFilter: true,
		MetricsTextfile:    textfile,
	}, logger).WithClock(func() time.Time { return fixedNow })

	return harness{runner: runner, store: store, notifier: notifier, metrics: m, textfile: textfile, locksDir: locksDir, dataDir: dataDir}
}

func TestRunProducesValidatedAtom(t *testing.T) {
	h := newHarness(t)
	res, err := h.runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stage != atom.Validated || res.Category != "monster_tactic" || res.Angle != "how_it_wins" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ContentID == "" {
		t.Fatal("expected a content id")
	}
	if h.store.Exists(atom.Incoming, day) {
		t.Fatal("incoming copy should be moved")
	}

	a, err := h.store.Load(atom.Validated, day)
	if err != nil {
		t.Fatalf("load validated: %v", err)
	}
	if a.Picks["creature_pk"] != "3" {
		t.Fatalf("weak creature filter should leave the ogre, got %v", a.Picks)
	}
	if a.Fact == nil || a.Fact.Name != "Ogre" {
		t.Fatalf("fact = %+v", a.Fact)
	}
	if a.Script == nil || a.ScriptID != a.Script.ID() || a.Narration == "" {
		t.Fatalf("script not recorded: %+v", a)
	}
	if a.Content == nil || a.Content.ContentID != res.ContentID {
		t.Fatalf("content = %+v", a.Content)
	}
	if a.Source.DatasetFile == "" || a.Source.ReferencePath == "" {
		t.Fatalf("source not recorded: %+v", a.Source)
	}
	if len(h.notifier.events) != 0 {
		t.Fatalf("no alerts expected, got %v", h.notifier.events)
	}
	if _, err := os.Stat(h.textfile); err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	first, err := newHarness(t).runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := newHarness(t).runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.ContentID != second.ContentID {
		t.Fatalf("content ids differ: %s vs %s", first.ContentID, second.ContentID)
	}
}

func TestRunLogsFailureClass(t *testing.T) {
	var buf bytes.Buffer
	h := newHarnessWithSpine(t, monsterSpine, slog.New(slog.NewJSONHandler(&buf, nil)))
	if err := os.Remove(filepath.Join(h.dataDir, "Creature.json")); err != nil {
		t.Fatalf("remove creatures: %v", err)
	}

	res, err := h.runner.Run(context.Background(), day)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if res.Stage != atom.Incoming {
		t.Fatalf("failed run should stay incoming: %+v", res)
	}

	var failed map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("log line is not json: %s", line)
		}
		if entry["event_type"] == "stage_failed" {
			failed = entry
		}
	}
	if failed == nil {
		t.Fatalf("no stage_failed entry in logs:\n%s", buf.String())
	}
	if failed["stage"] != pipeline.StagePick || failed["failure_class"] != services.ClassData {
		t.Fatalf("unexpected failure entry %v", failed)
	}
	if hint, _ := failed["error_hint"].(string); hint == "" || hint == "check logs for details" {
		t.Fatalf("expected a class-specific hint, got %v", failed["error_hint"])
	}
}

func TestStageRequiresIncomingAtom(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.Pick(context.Background(), day)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestScriptRequiresFact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.runner.NewAtom(ctx, day); err != nil {
		t.Fatalf("NewAtom: %v", err)
	}
	_, err := h.runner.Script(ctx, day)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewAtomResetsDerivedFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, step := range []func(context.Context, string) (*atom.Atom, error){
		h.runner.NewAtom, h.runner.Pick, h.runner.Fact, h.runner.Style, h.runner.Script, h.runner.Identity,
	} {
		if _, err := step(ctx, day); err != nil {
			t.Fatalf("stage: %v", err)
		}
	}
	before, err := h.store.Load(atom.Incoming, day)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	a, err := h.runner.NewAtom(ctx, day)
	if err != nil {
		t.Fatalf("NewAtom rerun: %v", err)
	}
	if a.Fact != nil || a.Script != nil || a.Content != nil || len(a.Picks) != 0 {
		t.Fatalf("derived fields survived: %+v", a)
	}
	if a.CreatedAt != before.CreatedAt {
		t.Fatalf("created_at changed: %v -> %v", before.CreatedAt, a.CreatedAt)
	}
}

func TestRerunIgnoresStaleTopic(t *testing.T) {
	const scheduleSpine = "schedule:\n  - category: monster_tactic\n"

	fresh, err := newHarnessWithSpine(t, scheduleSpine, nil).runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("fresh run: %v", err)
	}

	h := newHarnessWithSpine(t, scheduleSpine, nil)
	stale := atom.New(day, fixedNow)
	stale.Category = "spell_use_case"
	stale.Angle = "counterplay"
	if err := h.store.Save(atom.Incoming, stale); err != nil {
		t.Fatalf("save stale atom: %v", err)
	}
	rerun, err := h.runner.Run(context.Background(), day)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}

	if rerun.Category != "monster_tactic" || rerun.Angle != spine.DefaultAngle {
		t.Fatalf("stale topic leaked into rerun: %+v", rerun)
	}
	if rerun.ContentID != fresh.ContentID {
		t.Fatalf("content id differs from a fresh run: %s vs %s", rerun.ContentID, fresh.ContentID)
	}
}

func TestRepickClearsDownstream(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, step := range []func(context.Context, string) (*atom.Atom, error){
		h.runner.NewAtom, h.runner.Pick, h.runner.Fact, h.runner.Style,
	} {
		if _, err := step(ctx, day); err != nil {
			t.Fatalf("stage: %v", err)
		}
	}
	a, err := h.runner.Pick(ctx, day)
	if err != nil {
		t.Fatalf("repick: %v", err)
	}
	if a.Fact != nil || a.Style != nil {
		t.Fatalf("downstream fields should be cleared: %+v", a)
	}
}

func TestValidateFailureAlerts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, step := range []func(context.Context, string) (*atom.Atom, error){
		h.runner.NewAtom, h.runner.Pick, h.runner.Fact, h.runner.Style, h.runner.Script, h.runner.Identity,
	} {
		if _, err := step(ctx, day); err != nil {
			t.Fatalf("stage: %v", err)
		}
	}
	raw, err := h.store.LoadRaw(atom.Incoming, day)
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	raw["script"].(map[string]any)["hook"] = "Edited by hand."
	if err := h.store.SaveRaw(atom.Incoming, day, raw); err != nil {
		t.Fatalf("save raw: %v", err)
	}

	outcome, err := h.runner.Validate(ctx, day)
	if !errors.Is(err, validate.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
	if outcome.Stage != atom.Failed {
		t.Fatalf("stage = %s", outcome.Stage)
	}
	if len(h.notifier.events) != 1 || h.notifier.events[0] != notifications.EventAtomFailed {
		t.Fatalf("events = %v", h.notifier.events)
	}
	if h.notifier.payloads[0]["reason"] != outcome.Reason {
		t.Fatalf("payload = %v", h.notifier.payloads[0])
	}
}

func TestRunRefusesHeldDayLock(t *testing.T) {
	h := newHarness(t)
	held, err := lock.Acquire(h.locksDir, day, true)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer held.Release()

	if _, err := h.runner.Run(context.Background(), day); !errors.Is(err, lock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if h.store.Exists(atom.Incoming, day) {
		t.Fatal("no stage should run without the lock")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.runner.Run(ctx, day); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
