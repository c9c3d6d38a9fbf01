package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/pipette/pkg/adapters/memory"
	"github.com/aretw0/pipette/pkg/persistence/middleware"
)

func TestRedactionMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw, err := middleware.NewRedactionMiddleware([]string{`PT-\d+`})
	if err != nil {
		t.Fatal(err)
	}
	store := mw(underlyingStore)

	run := sampleRun("redacted")
	run.Error = "comment PT-20931 failed"
	ctx := context.Background()
	if err := store.Save(ctx, run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if run.Log[0].Text != "sample PT-20931" {
		t.Error("Middleware modified the run log in memory!")
	}

	stored, err := underlyingStore.Load(ctx, "redacted")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Log[0].Text != "sample ***" {
		t.Errorf("Sample ID should be masked, got: %q", stored.Log[0].Text)
	}
	if stored.Error != "comment *** failed" {
		t.Errorf("Error should be masked, got: %q", stored.Error)
	}
	if stored.Protocol != "Secret assay" {
		t.Error("Protocol name shouldn't be masked")
	}
}

func TestRedactionMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewRedactionMiddleware([]string{"("}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestChain_RedactsBeforeSealing(t *testing.T) {
	underlyingStore := memory.NewStore()
	redact, err := middleware.NewRedactionMiddleware([]string{`PT-\d+`})
	if err != nil {
		t.Fatal(err)
	}
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if err != nil {
		t.Fatal(err)
	}
	store := middleware.Chain(underlyingStore, redact, seal)

	ctx := context.Background()
	if err := store.Save(ctx, sampleRun("chained")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := store.Load(ctx, "chained")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Log[0].Text != "sample ***" {
		t.Errorf("Expected redacted text after decryption, got %q", loaded.Log[0].Text)
	}
}
