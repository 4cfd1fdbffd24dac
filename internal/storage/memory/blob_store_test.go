package memory

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/sbnation-corpus/internal/storage"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "path/articles.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://path/articles.json" {
		t.Fatalf("unexpected uri %s", uri)
	}
	payload[0] = 'C'
	got, err := store.GetObject(context.Background(), "path/articles.json")
	if err != nil {
		t.Fatalf("GetObject() error = %v", err)
	}
	if string(got) != "content" {
		t.Fatalf("expected stored copy to be immutable, got %q", got)
	}
	got[0] = 'X'
	again, _ := store.GetObject(context.Background(), "path/articles.json")
	if string(again) != "content" {
		t.Fatalf("expected GetObject to return a copy, got %q", again)
	}
	if store.Puts("path/articles.json") != 1 {
		t.Fatalf("expected one put, got %d", store.Puts("path/articles.json"))
	}
}

func TestBlobStoreGetMissing(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().GetObject(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
