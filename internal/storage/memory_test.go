package storage

import (
	"context"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore("https://files.medko.com.br/", nil)
	ctx := context.Background()

	url, err := store.Store(ctx, Object{
		Key:         "prescriptions/abc.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4 fake"),
	})
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if url != "https://files.medko.com.br/prescriptions/abc.pdf" {
		t.Errorf("unexpected url: %s", url)
	}

	obj, err := store.Fetch(ctx, "prescriptions/abc.pdf")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if obj.ContentType != "application/pdf" {
		t.Errorf("content type = %s", obj.ContentType)
	}
	if string(obj.Data) != "%PDF-1.4 fake" {
		t.Errorf("data round trip failed")
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore("http://localhost:8080", nil)

	if _, err := store.Fetch(context.Background(), "nope"); err != ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), "nope"); err != nil {
		t.Errorf("deleting a missing key should not error, got %v", err)
	}
}

func TestMemoryStoreEmptyKey(t *testing.T) {
	store := NewMemoryStore("http://localhost:8080", nil)
	if _, err := store.Store(context.Background(), Object{Data: []byte("x")}); err == nil {
		t.Error("expected error for empty key")
	}
}

func TestMemoryStoreIsolatesCallerBuffer(t *testing.T) {
	store := NewMemoryStore("http://localhost:8080", nil)
	ctx := context.Background()

	buf := []byte("original")
	if _, err := store.Store(ctx, Object{Key: "k", Data: buf}); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	buf[0] = 'X'

	obj, err := store.Fetch(ctx, "k")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(obj.Data) != "original" {
		t.Error("store must copy the caller's buffer")
	}
}
