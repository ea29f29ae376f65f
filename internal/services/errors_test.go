package services_test

import (
	"errors"
	"strings"
	"testing"

	"loreforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "upload", "insert", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"upload", "insert", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"configuration", services.Wrap(services.ErrConfiguration, "reference", "resolve", "missing", nil), services.ClassConfiguration},
		{"validation", services.Wrap(services.ErrValidation, "validate", "", "missing key: content", nil), services.ClassData},
		{"not found", services.Wrap(services.ErrNotFound, "fact", "lookup", "pk", nil), services.ClassData},
		{"external", services.Wrap(services.ErrExternalTool, "gate", "post", "429", nil), services.ClassExternal},
		{"timeout", services.Wrap(services.ErrTimeout, "upload", "", "", nil), services.ClassExternal},
		{"plain", errors.New("io"), services.ClassTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}
