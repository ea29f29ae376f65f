package services_test

import (
	"context"
	"testing"

	"loreforge/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithDay(ctx, "2024-01-01")
	ctx = services.WithStage(ctx, "pick")
	ctx = services.WithRequestID(ctx, "req-123")

	if day, ok := services.DayFromContext(ctx); !ok || day != "2024-01-01" {
		t.Fatalf("unexpected day: %v %v", day, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "pick" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	ctx = services.WithDay(ctx, "")
	if _, ok := services.DayFromContext(ctx); ok {
		t.Fatal("expected no day value")
	}
}
