// Package pipeline runs the daily stages over the incoming atom: topic,
// pick, fact, style, script, identity, and validation routing. Each stage
// can run alone so operators can repair a single step; Run chains them
// under the day's advisory lock.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/category"
	"loreforge/internal/contentid"
	"loreforge/internal/fact"
	"loreforge/internal/lock"
	"loreforge/internal/logging"
	"loreforge/internal/metrics"
	"loreforge/internal/notifications"
	"loreforge/internal/picker"
	"loreforge/internal/reference"
	"loreforge/internal/script"
	"loreforge/internal/services"
	"loreforge/internal/spine"
	"loreforge/internal/style"
	"loreforge/internal/validate"
)

// Stage names, in run order.
const (
	StageNew      = "new"
	StagePick     = "pick"
	StageFact     = "fact"
	StageStyle    = "style"
	StageScript   = "script"
	StageIdentity = "identity"
	StageValidate = "validate"
)

// Stages lists the stages Run executes.
var Stages = []string{StageNew, StagePick, StageFact, StageStyle, StageScript, StageIdentity, StageValidate}

// failureHints are the operator next steps per failure class.
var failureHints = map[string]string{
	services.ClassConfiguration: "fix the config file or environment, then re-run",
	services.ClassData:          "check the reference dataset and the day's atom, then re-run",
	services.ClassExternal:      "check the external service and credentials, then re-run",
	services.ClassTransient:     "re-run the day; stages are idempotent",
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Atoms    *atom.Store
	Dataset  *reference.Dataset
	Spine    spine.Spine
	Styles   *style.Selector
	Writer   script.Writer
	Notifier notifications.Service
	Metrics  *metrics.Metrics
}

// Options tunes a Runner.
type Options struct {
	LocksDir           string
	AdvisoryLock       bool
	WeakCreatureFilter bool
	MetricsTextfile    string
}

// Runner executes pipeline stages.
type Runner struct {
	deps   Deps
	router *validate.Router
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New builds a runner.
func New(deps Deps, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.Multi()
	}
	return &Runner{
		deps:   deps,
		router: validate.NewRouter(deps.Atoms, logger),
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	if now != nil {
		r.now = now
		r.router.WithClock(now)
	}
	return r
}

// Result summarizes a full run.
type Result struct {
	Day       string     `json:"day"`
	Category  string     `json:"category"`
	Angle     string     `json:"angle"`
	ContentID string     `json:"content_id,omitempty"`
	Stage     atom.Stage `json:"stage"`
	Path      string     `json:"path"`
	Reason    string     `json:"reason,omitempty"`
}

// Run executes every stage for day while holding the day lock.
func (r *Runner) Run(ctx context.Context, day string) (Result, error) {
	ctx = services.WithDay(ctx, day)
	held, err := lock.Acquire(r.opts.LocksDir, day, r.opts.AdvisoryLock)
	if err != nil {
		return Result{Day: day}, err
	}
	defer func() {
		if err := held.Release(); err != nil {
			logging.WarnWithContext(r.logger, "lock release failed", "lock_release_failed",
				logging.String(logging.FieldDay, day), logging.Error(err))
		}
	}()
	defer r.flushMetrics()

	logger := logging.WithContext(ctx, r.logger)
	logger.Info("pipeline run started")
	steps := []func(context.Context, string) (*atom.Atom, error){
		r.NewAtom, r.Pick, r.Fact, r.Style, r.Script, r.Identity,
	}
	var current *atom.Atom
	for i, step := range steps {
		current, err = step(ctx, day)
		if err != nil {
			class := services.Classify(err)
			logging.ErrorWithContext(logger, "pipeline stage failed", "stage_failed",
				logging.String(logging.FieldStage, Stages[i]),
				logging.String(logging.FieldFailureClass, class),
				logging.String(logging.FieldErrorHint, failureHints[class]),
				logging.Error(err),
				logging.String(logging.FieldImpact, "atom stays in incoming and is not published"),
			)
			return Result{Day: day, Stage: atom.Incoming, Path: r.deps.Atoms.Path(atom.Incoming, day)}, err
		}
	}

	result := Result{Day: day, Category: current.Category, Angle: current.Angle}
	if current.Content != nil {
		result.ContentID = current.Content.ContentID
	}
	outcome, err := r.Validate(ctx, day)
	result.Stage, result.Path, result.Reason = outcome.Stage, outcome.Path, outcome.Reason
	if err != nil {
		return result, err
	}
	logger.Info("pipeline run finished", logging.Args(
		logging.String(logging.FieldContentID, result.ContentID),
		logging.String("path", result.Path),
	)...)
	return result, nil
}

func (r *Runner) flushMetrics() {
	if err := r.deps.Metrics.WriteTextfile(r.opts.MetricsTextfile); err != nil {
		logging.WarnWithContext(r.logger, "metrics textfile not written", "metrics_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "dashboards show stale values"))
	}
}

// observe records the stage outcome in metrics.
func (r *Runner) observe(stage string, fn func() error) error {
	started := r.now()
	err := fn()
	r.deps.Metrics.ObserveStage(stage, started, err)
	return err
}

// mutate loads the incoming atom, applies fn, and saves it.
func (r *Runner) mutate(ctx context.Context, stage, day string, fn func(a *atom.Atom) error) (*atom.Atom, error) {
	var out *atom.Atom
	err := r.observe(stage, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := r.deps.Atoms.Load(atom.Incoming, day)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return services.Wrap(services.ErrNotFound, stage, "load",
					fmt.Sprintf("no incoming atom for %s; run `loreforge atom new --day %s` first", day, day), err)
			}
			return err
		}
		if err := fn(a); err != nil {
			return err
		}
		if err := r.deps.Atoms.Save(atom.Incoming, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

// NewAtom creates or resets incoming/<day>.json and assigns the day's topic.
// A re-run keeps created_at and unknown keys; the topic and every derived
// field are recomputed from scratch.
func (r *Runner) NewAtom(ctx context.Context, day string) (*atom.Atom, error) {
	var out *atom.Atom
	err := r.observe(StageNew, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		a, err := r.deps.Atoms.Load(atom.Incoming, day)
		switch {
		case errors.Is(err, services.ErrNotFound):
			a = atom.New(day, r.now())
		case err != nil:
			return err
		}
		topic, err := r.deps.Spine.Choose(day)
		if err != nil {
			return err
		}
		topic = topic.Fill()
		a.Reset()
		a.Category = topic.Category
		a.Angle = topic.Angle
		a.Source = atom.Source{}
		if r.deps.Dataset != nil {
			a.Source.ReferencePath = r.deps.Dataset.Dir()
		}
		if err := r.deps.Atoms.Save(atom.Incoming, a); err != nil {
			return err
		}
		r.logger.Info("atom created", logging.Args(
			logging.String(logging.FieldDay, day),
			logging.String("category", a.Category),
			logging.String("angle", a.Angle),
			logging.String("topic_source", topic.Source),
		)...)
		out = a
		return nil
	})
	return out, err
}

// Pick draws the day's reference record.
func (r *Runner) Pick(ctx context.Context, day string) (*atom.Atom, error) {
	return r.mutate(ctx, StagePick, day, func(a *atom.Atom) error {
		if r.deps.Dataset == nil {
			return services.Wrap(services.ErrConfiguration, StagePick, "pick", "reference dataset not configured", picker.ErrDatasetMissing)
		}
		res, err := picker.Pick(r.deps.Dataset, day, a.Category, a.Angle, picker.Options{SkipWeakCreatures: r.opts.WeakCreatureFilter})
		if err != nil {
			return err
		}
		clearFrom(a, StagePick)
		a.Picks = res.Picks()
		if spec, err := category.Lookup(a.Category); err == nil {
			a.Source.DatasetFile = r.deps.Dataset.FilePath(spec.SourceKey)
		}
		r.logger.Info("record picked", logging.Args(
			logging.String(logging.FieldDay, day),
			logging.String("pick_key", res.PickKey),
			logging.String("pk", res.PK.String()),
			logging.Int("candidates", res.Candidates),
		)...)
		return nil
	})
}

// Fact attaches the picked record.
func (r *Runner) Fact(ctx context.Context, day string) (*atom.Atom, error) {
	return r.mutate(ctx, StageFact, day, func(a *atom.Atom) error {
		spec, err := category.Lookup(a.Category)
		if err != nil {
			return services.Wrap(services.ErrValidation, StageFact, "attach",
				fmt.Sprintf("category %q", a.Category), fact.ErrUnsupportedCategory)
		}
		if r.deps.Dataset == nil {
			return services.Wrap(services.ErrConfiguration, StageFact, "attach", "reference dataset not configured", nil)
		}
		f, err := fact.Attach(r.deps.Dataset, a.Category, a.Picks[spec.PickKey])
		if err != nil {
			return err
		}
		clearFrom(a, StageFact)
		a.Fact = &f
		return nil
	})
}

// Style selects voice, tone, persona, and voiceover.
func (r *Runner) Style(ctx context.Context, day string) (*atom.Atom, error) {
	return r.mutate(ctx, StageStyle, day, func(a *atom.Atom) error {
		spec, err := category.Lookup(a.Category)
		if err != nil {
			return err
		}
		res, err := r.deps.Styles.Select(ctx, day, spec.Name, a.Angle)
		if err != nil {
			return err
		}
		clearFrom(a, StageStyle)
		a.Angle = res.Angle
		a.Style = &res.Style
		return nil
	})
}

// Script writes hook, body, and CTA, then the script id and narration.
func (r *Runner) Script(ctx context.Context, day string) (*atom.Atom, error) {
	return r.mutate(ctx, StageScript, day, func(a *atom.Atom) error {
		if a.Fact == nil || a.Fact.IsZero() {
			return services.Wrap(services.ErrValidation, StageScript, "write", "atom has no fact", nil)
		}
		spec, err := category.Lookup(a.Category)
		if err != nil {
			return err
		}
		in := script.Input{Day: day, Category: spec.Name, Angle: a.Angle, Fact: *a.Fact}
		if a.Style != nil {
			in.Style = *a.Style
		}
		s, err := r.deps.Writer.Write(ctx, in)
		if err != nil {
			return err
		}
		clearFrom(a, StageScript)
		a.Script = &s
		a.ScriptID = s.ID()
		a.Narration = s.Narration()
		return nil
	})
}

// Identity derives the content identity bundle.
func (r *Runner) Identity(ctx context.Context, day string) (*atom.Atom, error) {
	return r.mutate(ctx, StageIdentity, day, func(a *atom.Atom) error {
		bundle := contentid.Build(a.IdentityInput())
		a.Content = &bundle
		return nil
	})
}

// Validate routes the incoming atom and alerts when it fails.
func (r *Runner) Validate(ctx context.Context, day string) (validate.Outcome, error) {
	var outcome validate.Outcome
	err := r.observe(StageValidate, func() error {
		var err error
		outcome, err = r.router.Route(ctx, day)
		return err
	})
	if errors.Is(err, validate.ErrInvalid) {
		payload := notifications.Payload{"day": day, "reason": outcome.Reason}
		if nerr := r.deps.Notifier.Publish(ctx, notifications.EventAtomFailed, payload); nerr != nil {
			logging.WarnWithContext(r.logger, "atom failure notification failed", "notification_failed",
				logging.String(logging.FieldDay, day),
				logging.Error(nerr))
		}
	}
	return outcome, err
}

// clearFrom drops the fields produced by stage and every later stage.
func clearFrom(a *atom.Atom, stage string) {
	switch stage {
	case StagePick:
		a.Fact = nil
		fallthrough
	case StageFact:
		a.Style = nil
		fallthrough
	case StageStyle:
		a.Script = nil
		a.ScriptID = ""
		a.Narration = ""
		fallthrough
	case StageScript:
		a.Content = nil
	}
}
