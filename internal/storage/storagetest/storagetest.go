// Package storagetest holds the behaviour every storage.KV must show.
package storagetest

import (
	"bytes"
	"context"
	"testing"

	"fintrack/internal/storage"
)

// Run exercises kv with the shared KV contract.
func Run(t *testing.T, kv storage.KV) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := kv.Get(ctx, "missing")
		if err != nil || ok || v != nil {
			t.Fatalf("expected miss, got %q %v %v", v, ok, err)
		}
	})

	t.Run("set and get", func(t *testing.T) {
		if err := kv.Set(ctx, "k1", []byte(`[{"id":"a"}]`)); err != nil {
			t.Fatalf("set: %v", err)
		}
		v, ok, err := kv.Get(ctx, "k1")
		if err != nil || !ok || !bytes.Equal(v, []byte(`[{"id":"a"}]`)) {
			t.Fatalf("unexpected get: %q %v %v", v, ok, err)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		if err := kv.Set(ctx, "k2", []byte("first")); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := kv.Set(ctx, "k2", []byte("second")); err != nil {
			t.Fatalf("set: %v", err)
		}
		v, _, err := kv.Get(ctx, "k2")
		if err != nil || string(v) != "second" {
			t.Fatalf("expected second, got %q %v", v, err)
		}
	})

	t.Run("returned value is a copy", func(t *testing.T) {
		if err := kv.Set(ctx, "k3", []byte("abc")); err != nil {
			t.Fatalf("set: %v", err)
		}
		v, _, _ := kv.Get(ctx, "k3")
		v[0] = 'z'
		again, _, _ := kv.Get(ctx, "k3")
		if string(again) != "abc" {
			t.Fatalf("store aliased caller memory: %q", again)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := kv.Set(ctx, "k4", []byte("x")); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := kv.Delete(ctx, "k4"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, ok, _ := kv.Get(ctx, "k4"); ok {
			t.Fatalf("expected k4 to be gone")
		}
		if err := kv.Delete(ctx, "k4"); err != nil {
			t.Fatalf("deleting a missing key must not fail: %v", err)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		a, b := storage.TransactionsKey("a@example.com"), storage.TransactionsKey("b@example.com")
		if err := kv.Set(ctx, a, []byte("A")); err != nil {
			t.Fatalf("set: %v", err)
		}
		if err := kv.Set(ctx, b, []byte("B")); err != nil {
			t.Fatalf("set: %v", err)
		}
		va, _, _ := kv.Get(ctx, a)
		vb, _, _ := kv.Get(ctx, b)
		if string(va) != "A" || string(vb) != "B" {
			t.Fatalf("values crossed: %q %q", va, vb)
		}
	})
}
