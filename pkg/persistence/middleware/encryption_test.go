package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aretw0/pipette/pkg/adapters/memory"
	"github.com/aretw0/pipette/pkg/domain"
	"github.com/aretw0/pipette/pkg/persistence/middleware"
	"github.com/aretw0/pipette/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func sampleRun(id string) *domain.RunRecord {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.RunRecord{
		ID:         id,
		Protocol:   "Secret assay",
		APIVersion: "2.13",
		Status:     domain.RunSucceeded,
		Log: []domain.CommandRecord{
			{ID: "r1", Kind: domain.ActionComment, Text: "sample PT-20931", Timestamp: at},
		},
		StartedAt:  at,
		FinishedAt: at.Add(time.Minute),
	}
}

func mustEncrypt(t *testing.T, cfg middleware.EncryptionConfig, next ports.RunStore) ports.RunStore {
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		t.Fatalf("NewEncryptionMiddleware failed: %v", err)
	}
	return mw(next)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := memory.NewStore()
	secureStore := mustEncrypt(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlyingStore)

	ctx := context.Background()
	if err := secureStore.Save(ctx, sampleRun("run-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The underlying store only sees the envelope.
	stored, err := underlyingStore.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if stored.Protocol != "" || len(stored.Log) != 0 {
		t.Fatalf("Expected protocol and log to be hidden, got %q and %d records", stored.Protocol, len(stored.Log))
	}
	if stored.Sealed == "" {
		t.Fatal("Expected sealed payload")
	}
	if stored.Status != domain.RunSucceeded {
		t.Errorf("Expected status to stay readable, got %q", stored.Status)
	}

	loaded, err := secureStore.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Protocol != "Secret assay" || len(loaded.Log) != 1 || loaded.Log[0].Text != "sample PT-20931" {
		t.Errorf("Unexpected decrypted run: %+v", loaded)
	}
	if loaded.Sealed != "" {
		t.Error("Decrypted run should not carry the envelope")
	}

	ids, err := secureStore.List(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("List = %v, %v", ids, err)
	}
	if err := secureStore.Delete(ctx, "run-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := secureStore.Load(ctx, "run-1"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound after delete, got %v", err)
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	secureStoreOld := mustEncrypt(t, middleware.EncryptionConfig{ActiveKey: oldKey}, underlyingStore)

	ctx := context.Background()
	if err := secureStoreOld.Save(ctx, sampleRun("rotation")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := mustEncrypt(t, middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	}, underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "rotation")
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	if loaded.Protocol != "Secret assay" {
		t.Errorf("Decryption with fallback key failed")
	}

	// Saving again seals with the new key only.
	if err := secureStoreNew.Save(ctx, loaded); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}
	if _, err := secureStoreOld.Load(ctx, "rotation"); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_RejectsPlainRuns(t *testing.T) {
	underlyingStore := memory.NewStore()
	if err := underlyingStore.Save(context.Background(), sampleRun("plain")); err != nil {
		t.Fatal(err)
	}
	secureStore := mustEncrypt(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlyingStore)
	if _, err := secureStore.Load(context.Background(), "plain"); !errors.Is(err, middleware.ErrNotSealed) {
		t.Errorf("Expected ErrNotSealed, got %v", err)
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	if _, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")}); err == nil {
		t.Error("Expected error for invalid key size")
	}
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	if err == nil {
		t.Error("Expected error for invalid fallback key size")
	}
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	for _, encoded := range []string{
		base64.StdEncoding.EncodeToString(key),
		base64.RawURLEncoding.EncodeToString(key),
		hex.EncodeToString(key),
	} {
		got, err := middleware.ParseKey(encoded)
		if err != nil {
			t.Fatalf("ParseKey(%q) failed: %v", encoded, err)
		}
		if string(got) != string(key) {
			t.Errorf("ParseKey(%q) returned a different key", encoded)
		}
	}
	if _, err := middleware.ParseKey("not-a-key"); err == nil {
		t.Error("Expected error for malformed key")
	}
}
