package storage

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAndURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "https://assets.example.com")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	url, err := store.Write(context.Background(), "runs/r1/item.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if url != "https://assets.example.com/runs/r1/item.png" {
		t.Fatalf("url = %q", url)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.txt", []byte("x")); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}

func TestStoreDataURIRewritesInlinePayload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "https://assets.example.com")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	payload := base64.StdEncoding.EncodeToString([]byte("fake-png"))
	url, err := store.StoreDataURI(context.Background(), "run-1", "item-1", "data:image/png;base64,"+payload)
	if err != nil {
		t.Fatalf("StoreDataURI: %v", err)
	}
	if !strings.HasPrefix(url, "https://assets.example.com/runs/run-1/item-1-") {
		t.Fatalf("url = %q", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Fatalf("url should carry .png extension: %q", url)
	}

	key := strings.TrimPrefix(url, "https://assets.example.com/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "fake-png" {
		t.Fatalf("stored bytes = %q", data)
	}
}

func TestStoreDataURIPassesThroughDurableURLs(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	url, err := store.StoreDataURI(context.Background(), "r", "i", "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("StoreDataURI: %v", err)
	}
	if url != "https://cdn.example.com/a.png" {
		t.Fatalf("url = %q, want pass-through", url)
	}
}
