// Package script renders the hook, body, and call to action of a day's
// atom from its fact. Rendering is a chain of writers: deterministic
// per-category templates, an optional language-model polish that must
// validate against the draft, and a guard that enforces CTA rules for
// sensitive angles.
package script

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"loreforge/internal/contentid"
	"loreforge/internal/fact"
	"loreforge/internal/logging"
	"loreforge/internal/style"
)

// ErrUnsupported marks a category/kind pair with no template.
var ErrUnsupported = errors.New("unsupported category/kind")

// Script is the three-part narration text.
type Script struct {
	Hook string `json:"hook"`
	Body string `json:"body"`
	CTA  string `json:"cta"`
}

// ID returns the content address of the script text.
func (s Script) ID() string {
	return contentid.ScriptID(s.Hook, s.Body, s.CTA)
}

// Narration joins the parts the way text-to-speech reads them.
func (s Script) Narration() string {
	return strings.TrimSpace(s.Hook) + " ... " + strings.TrimSpace(s.Body) + " ... " + strings.TrimSpace(s.CTA)
}

// Field returns the named part.
func (s Script) Field(name string) string {
	switch name {
	case contentid.SegmentHook:
		return s.Hook
	case contentid.SegmentBody:
		return s.Body
	case contentid.SegmentCTA:
		return s.CTA
	default:
		return ""
	}
}

// FirstBlank returns the name of the first empty part, or "".
func (s Script) FirstBlank() string {
	for _, name := range contentid.SegmentOrder {
		if strings.TrimSpace(s.Field(name)) == "" {
			return name
		}
	}
	return ""
}

// Input is everything a writer may draw on.
type Input struct {
	Day      string
	Category string
	Angle    string
	Fact     fact.Fact
	Style    style.Style
}

// Name is the display name of the fact.
func (in Input) Name() string {
	if name := strings.TrimSpace(in.Fact.Name); name != "" {
		return name
	}
	if name := in.Fact.Field("name"); name != "" {
		return name
	}
	return "Thing"
}

// Voice is the style voice, defaulting to friendly_vet.
func (in Input) Voice() string {
	if v := strings.TrimSpace(in.Style.Voice); v != "" {
		return v
	}
	return style.DefaultVoice
}

// Writer produces a script for an input.
type Writer interface {
	Write(ctx context.Context, in Input) (Script, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, in Input) (Script, error)

// Write calls f.
func (f WriterFunc) Write(ctx context.Context, in Input) (Script, error) { return f(ctx, in) }

// NewChain assembles the standard writer: templates, then polish when p is
// non-nil, then the CTA guard.
func NewChain(rules style.Rules, p *PolishOptions, logger *slog.Logger) Writer {
	if logger == nil {
		logger = logging.NewNop()
	}
	var w Writer = NewTemplateWriter(rules, logger)
	if p != nil {
		w = NewPolisher(w, *p, logger)
	}
	return NewGuard(w, logger)
}
