package validate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/logging"
	"loreforge/internal/services"
)

// ErrInvalid marks an atom that failed validation and was moved to failed/.
var ErrInvalid = errors.New("atom invalid")

// Outcome reports where a routed atom ended up.
type Outcome struct {
	Day   string     `json:"day"`
	Stage atom.Stage `json:"stage"`
	Path  string     `json:"path"`
	// Reason is the failure message; empty when the atom validated.
	Reason string `json:"reason,omitempty"`
}

// Router validates incoming atoms and moves them to their terminal stage.
type Router struct {
	store  *atom.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter builds a router over store.
func NewRouter(store *atom.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		store:  store,
		logger: logging.NewComponentLogger(logger, "validate"),
		now:    time.Now,
	}
}

// WithClock overrides the timestamp source used for error entries.
func (r *Router) WithClock(now func() time.Time) *Router {
	if now != nil {
		r.now = now
	}
	return r
}

// Route validates incoming/<day>.json. A valid atom moves to validated/; an
// invalid one gets an {at, error} entry appended and moves to failed/, and
// Route returns an error wrapping ErrInvalid.
func (r *Router) Route(ctx context.Context, day string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	raw, err := r.store.LoadRaw(atom.Incoming, day)
	if err != nil {
		return Outcome{}, err
	}
	logger := logging.WithContext(ctx, r.logger).With(logging.String(logging.FieldDay, day))

	reason := Check(raw)
	if reason == "" {
		reason, err = Schema(raw)
		if err != nil {
			return Outcome{}, services.Wrap(services.ErrConfiguration, "validate", "schema", "", err)
		}
	}

	if reason == "" {
		path, err := r.store.Move(atom.Incoming, atom.Validated, day)
		if err != nil {
			return Outcome{}, err
		}
		attrs := append(logging.DecisionAttrs("atom_validation", "validated", "shape and schema checks passed"),
			logging.String("path", path))
		logger.Info("atom validated", logging.Args(attrs...)...)
		return Outcome{Day: day, Stage: atom.Validated, Path: path}, nil
	}

	raw["errors"] = appendError(raw["errors"], r.now(), reason)
	if err := r.store.SaveRaw(atom.Incoming, day, raw); err != nil {
		return Outcome{}, err
	}
	path, err := r.store.Move(atom.Incoming, atom.Failed, day)
	if err != nil {
		return Outcome{}, err
	}
	logging.WarnWithContext(logger, "atom failed validation", "atom_invalid",
		logging.String("reason", reason),
		logging.String("path", path),
		logging.String(logging.FieldErrorHint, "inspect the failed atom and re-run the day"),
		logging.String(logging.FieldImpact, "day will not be published"),
	)
	out := Outcome{Day: day, Stage: atom.Failed, Path: path, Reason: reason}
	return out, services.Wrap(services.ErrValidation, "validate", "route", reason, ErrInvalid)
}

func appendError(existing any, at time.Time, msg string) []any {
	list, _ := existing.([]any)
	return append(list, map[string]any{
		"at":    at.UTC().Format(time.RFC3339),
		"error": msg,
	})
}
