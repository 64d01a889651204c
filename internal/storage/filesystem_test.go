package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestFileStoreWriteReadRoundtrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	key, err := store.Write(context.Background(), "uploads/job-1/image-01.png", []byte("payload"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "uploads/job-1/image-01.png" {
		t.Fatalf("key = %q", key)
	}

	data, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("payload")) {
		t.Fatalf("data = %q", data)
	}
}

func TestFileStoreRejectsTraversalKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	for _, key := range []string{"", "   ", "../escape", "a/../../escape"} {
		if _, err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("key %q: expected an error", key)
		}
	}
}

func TestFileStoreReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Read(context.Background(), "missing.png"); err == nil {
		t.Fatal("expected an error for a missing key")
	}
}
