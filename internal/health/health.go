// Package health summarizes the state of one pipeline day: the atom, the
// approval gate, and the publish registry. Unhealthy reports are pushed to
// the configured notifiers and every report refreshes the metrics textfile.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loreforge/internal/atom"
	"loreforge/internal/gate"
	"loreforge/internal/logging"
	"loreforge/internal/metrics"
	"loreforge/internal/notifications"
	"loreforge/internal/publish"
	"loreforge/internal/services"
)

// Level is a check outcome.
type Level string

// Outcomes.
const (
	Green Level = "GREEN"
	Red   Level = "RED"
)

// Check names.
const (
	CheckAtom     = "atom"
	CheckGate     = "gate"
	CheckRegistry = "registry"
)

// Check is one component result.
type Check struct {
	Name   string `json:"name"`
	Level  Level  `json:"level"`
	Detail string `json:"detail"`
}

// Report is the combined result for a day.
type Report struct {
	Day          string  `json:"day"`
	Overall      Level   `json:"overall"`
	Checks       []Check `json:"checks"`
	Next         string  `json:"next,omitempty"`
	GeneratedUTC string  `json:"generated_utc"`
}

// Healthy reports whether every check is green.
func (r Report) Healthy() bool { return r.Overall == Green }

// Line renders the report as a single key=value status line.
func (r Report) Line() string {
	parts := []string{"PIPELINE_HEALTH", string(r.Overall), "day=" + r.Day}
	for _, c := range r.Checks {
		parts = append(parts, fmt.Sprintf("%s=%s", c.Name, strings.ReplaceAll(c.Detail, " ", "_")))
	}
	return strings.Join(parts, " ")
}

func (r Report) check(name string) Check {
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	return Check{Name: name, Level: Red, Detail: "unknown"}
}

// Checker evaluates pipeline health.
type Checker struct {
	atoms    *atom.Store
	gate     gate.StateStore
	registry publish.Registry
	metrics  *metrics.Metrics
	notifier notifications.Service
	logger   *slog.Logger
	now      func() time.Time
}

// NewChecker builds a checker. metrics and notifier may be nil.
func NewChecker(atoms *atom.Store, gateState gate.StateStore, registry publish.Registry, m *metrics.Metrics, notifier notifications.Service, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Multi()
	}
	return &Checker{
		atoms:    atoms,
		gate:     gateState,
		registry: registry,
		metrics:  m,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "health"),
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (c *Checker) WithClock(now func() time.Time) *Checker {
	if now != nil {
		c.now = now
	}
	return c
}

// Run evaluates every check for day.
func (c *Checker) Run(ctx context.Context, day string) Report {
	report := Report{Day: day, GeneratedUTC: c.now().UTC().Format(time.RFC3339)}
	report.Checks = []Check{
		c.checkAtom(day),
		c.checkGate(ctx, day),
		c.checkRegistry(ctx),
	}
	report.Overall = Green
	for _, check := range report.Checks {
		c.metrics.SetHealth(check.Name, check.Level == Green)
		if check.Level != Green {
			report.Overall = Red
		}
	}
	report.Next = nextCommand(report)
	return report
}

func (c *Checker) checkAtom(day string) Check {
	check := Check{Name: CheckAtom, Level: Red}
	for _, stage := range atom.Stages {
		days, err := c.atoms.List(stage)
		if err == nil {
			c.metrics.SetAtoms(string(stage), len(days))
		}
	}
	stage, err := c.atoms.Locate(day)
	switch {
	case errors.Is(err, services.ErrNotFound):
		check.Detail = "missing"
		return check
	case err != nil:
		check.Detail = "error " + err.Error()
		return check
	}
	switch stage {
	case atom.Validated:
		check.Level = Green
		check.Detail = "validated"
	case atom.Failed:
		check.Detail = "failed"
		if a, err := c.atoms.Load(atom.Failed, day); err == nil && len(a.Errors) > 0 {
			check.Detail = "failed " + a.Errors[len(a.Errors)-1].Error
		}
	default:
		check.Detail = "unrouted"
	}
	return check
}

func (c *Checker) checkGate(ctx context.Context, day string) Check {
	check := Check{Name: CheckGate, Level: Green}
	if c.gate == nil {
		check.Detail = "disabled"
		return check
	}
	state, err := c.gate.Load(ctx)
	if err != nil {
		check.Level = Red
		check.Detail = "error " + err.Error()
		return check
	}
	c.metrics.SetPendingApprovals(len(state.PendingDays()))
	rec := state.Approvals[day]
	if rec == nil {
		check.Detail = "not_requested"
		return check
	}
	check.Detail = string(rec.Status)
	if rec.Status == gate.StatusApprovedPublishFailed {
		check.Level = Red
	}
	return check
}

func (c *Checker) checkRegistry(ctx context.Context) Check {
	check := Check{Name: CheckRegistry, Level: Green}
	if c.registry == nil {
		check.Detail = "disabled"
		return check
	}
	records, err := c.registry.List(ctx)
	if err != nil {
		check.Level = Red
		check.Detail = "error " + err.Error()
		return check
	}
	c.metrics.SetPublished(len(records))
	check.Detail = fmt.Sprintf("%d records", len(records))
	return check
}

func nextCommand(r Report) string {
	atomCheck := r.check(CheckAtom)
	switch {
	case atomCheck.Detail == "missing" || atomCheck.Detail == "unrouted":
		return "loreforge run --day " + r.Day
	case atomCheck.Level == Red:
		return "loreforge atom show --day " + r.Day
	}
	gateCheck := r.check(CheckGate)
	if gateCheck.Detail == string(gate.StatusApprovedPublishFailed) {
		return "loreforge upload --day " + r.Day
	}
	if gateCheck.Level == Red {
		return "loreforge gate status"
	}
	if r.check(CheckRegistry).Level == Red {
		return "loreforge registry list"
	}
	return ""
}

// Notify publishes report. Healthy reports are sent only when always is set.
func (c *Checker) Notify(ctx context.Context, report Report, always bool) error {
	if report.Healthy() && !always {
		return nil
	}
	payload := notifications.Payload{
		"day":      report.Day,
		"overall":  string(report.Overall),
		"atom":     report.check(CheckAtom).Detail,
		"gate":     report.check(CheckGate).Detail,
		"registry": report.check(CheckRegistry).Detail,
		"details":  report.Line(),
		"next":     report.Next,
	}
	if err := c.notifier.Publish(ctx, notifications.EventHealthReport, payload); err != nil {
		logging.WarnWithContext(c.logger, "health notification failed", "notification_failed",
			logging.String(logging.FieldDay, report.Day),
			logging.Error(err),
			logging.String(logging.FieldImpact, "operators were not alerted"),
		)
		return err
	}
	return nil
}
