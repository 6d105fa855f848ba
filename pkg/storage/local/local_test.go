package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreWriteOpenRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	key := "certifications/abc/identificationFront-1.png"
	if err := store.Write(ctx, key, []byte("img")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "img" {
		t.Fatalf("unexpected content %q", data)
	}

	deleted, err := store.Remove(ctx, key)
	if err != nil || !deleted {
		t.Fatalf("Remove() = %v, %v", deleted, err)
	}
	deleted, err = store.Remove(ctx, key)
	if err != nil || deleted {
		t.Fatalf("second Remove() = %v, %v; want false, nil", deleted, err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "objects"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	for _, key := range []string{"../outside", "a/../../outside", "", ".."} {
		if err := store.Write(context.Background(), key, []byte("x")); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "outside")); !os.IsNotExist(err) {
		t.Fatal("file escaped storage directory")
	}
}

func TestStorePing(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Ping(ctx); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestNewStoreRequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := NewStore("  "); err == nil {
		t.Fatal("expected error for blank directory")
	}
}
