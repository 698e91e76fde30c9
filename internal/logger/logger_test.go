package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "cli"} {
		if _, err := NewLogger(env); err != nil {
			t.Errorf("env %q: %v", env, err)
		}
	}
	if _, err := NewLogger("staging"); err == nil {
		t.Error("expected error for unknown env")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Error("level override not applied")
	}

	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	fallback := zap.New(core).With(zap.String("source", "fallback"))

	FromContextOr(context.Background(), fallback).Info("from fallback")
	FromContext(context.Background()).Info("dropped")

	ctx := ContextWithLogger(context.Background(), zap.New(core).With(zap.String("source", "ctx")))
	FromContextOr(ctx, fallback).Info("from context")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["source"] != "fallback" || entries[1].ContextMap()["source"] != "ctx" {
		t.Errorf("unexpected sources: %v %v", entries[0].ContextMap(), entries[1].ContextMap())
	}
}
