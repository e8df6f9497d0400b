package services_test

import (
	"context"
	"testing"

	"mikanarr/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCycleID(ctx, "cycle-123")
	ctx = services.WithSource(ctx, "https://mikanani.me/RSS/MyBangumi")

	if id, ok := services.CycleIDFromContext(ctx); !ok || id != "cycle-123" {
		t.Fatalf("unexpected cycle id: %v %v", id, ok)
	}
	if src, ok := services.SourceFromContext(ctx); !ok || src != "https://mikanani.me/RSS/MyBangumi" {
		t.Fatalf("unexpected source: %v %v", src, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCycleID(ctx, "")
	ctx = services.WithSource(ctx, "")
	if _, ok := services.CycleIDFromContext(ctx); ok {
		t.Fatal("expected no cycle id")
	}
	if _, ok := services.SourceFromContext(ctx); ok {
		t.Fatal("expected no source")
	}
}
