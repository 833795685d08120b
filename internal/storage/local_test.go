package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupLocal(t *testing.T) *LocalBackend {
	t.Helper()
	backend, err := NewLocalBackend(t.TempDir(), "", nil)
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	return backend
}

func TestNewLocalBackend(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "uploads")

		backend, err := NewLocalBackend(dir, "", nil)
		if err != nil {
			t.Fatalf("NewLocalBackend() error = %v", err)
		}
		if backend.Root() != dir {
			t.Errorf("Root() = %v, want %v", backend.Root(), dir)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		backend, err := NewLocalBackend("", "", nil)
		if err != nil {
			t.Fatalf("NewLocalBackend() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "mac-uploader")
		if backend.Root() != expected {
			t.Errorf("Root() = %v, want %v", backend.Root(), expected)
		}
	})
}

func TestLocalBackend_Store(t *testing.T) {
	ctx := context.Background()

	t.Run("writes original and thumbnail", func(t *testing.T) {
		backend := setupLocal(t)

		keys, err := backend.Store(ctx, "wedding-42", "photo-1-aa",
			Object{Data: []byte("original"), ContentType: "image/jpeg", Ext: "jpg"},
			&Object{Data: []byte("thumb"), ContentType: "image/jpeg", Ext: "jpg"},
		)
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		if keys.OriginalKey != "wedding-42/photo-1-aa_original.jpg" {
			t.Errorf("OriginalKey = %q", keys.OriginalKey)
		}
		if keys.ThumbnailKey != "wedding-42/photo-1-aa_thumb.jpg" {
			t.Errorf("ThumbnailKey = %q", keys.ThumbnailKey)
		}

		content, err := os.ReadFile(filepath.Join(backend.Root(), "wedding-42", "photo-1-aa_original.jpg"))
		if err != nil {
			t.Fatalf("failed to read stored file: %v", err)
		}
		if string(content) != "original" {
			t.Errorf("got %q, want %q", string(content), "original")
		}
	})

	t.Run("nil thumbnail leaves key empty", func(t *testing.T) {
		backend := setupLocal(t)

		keys, err := backend.Store(ctx, "wedding-42", "photo-2-bb",
			Object{Data: []byte("original"), ContentType: "image/jpeg", Ext: "jpg"}, nil)
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		if keys.ThumbnailKey != "" {
			t.Errorf("ThumbnailKey = %q, want empty", keys.ThumbnailKey)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		backend := setupLocal(t)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := backend.Store(cancelled, "t", "id",
			Object{Data: []byte("x"), Ext: "jpg"}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalBackend_List(t *testing.T) {
	ctx := context.Background()

	t.Run("empty topic yields empty list", func(t *testing.T) {
		backend := setupLocal(t)

		entries, err := backend.List(ctx, "nobody-home")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("got %d entries, want 0", len(entries))
		}
	})

	t.Run("returns newest first with thumbnails attached", func(t *testing.T) {
		backend := setupLocal(t)

		_, err := backend.Store(ctx, "wedding-42", "photo-1-aa",
			Object{Data: []byte("one"), Ext: "jpg"},
			&Object{Data: []byte("one-thumb"), Ext: "jpg"})
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		_, err = backend.Store(ctx, "wedding-42", "photo-2-bb",
			Object{Data: []byte("two"), Ext: "jpg"}, nil)
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}

		// Make the first upload strictly older so mtime ordering is
		// deterministic regardless of filesystem timestamp resolution.
		older := time.Now().Add(-time.Minute)
		path := filepath.Join(backend.Root(), "wedding-42", "photo-1-aa_original.jpg")
		if err := os.Chtimes(path, older, older); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}

		entries, err := backend.List(ctx, "wedding-42")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("got %d entries, want 2", len(entries))
		}
		if entries[0].ArtifactID != "photo-2-bb" {
			t.Errorf("first entry = %q, want newest", entries[0].ArtifactID)
		}
		if entries[1].ThumbnailKey != "wedding-42/photo-1-aa_thumb.jpg" {
			t.Errorf("ThumbnailKey = %q", entries[1].ThumbnailKey)
		}
		if entries[0].ThumbnailKey != "" {
			t.Errorf("ThumbnailKey = %q, want empty", entries[0].ThumbnailKey)
		}
	})

	t.Run("skips files outside the key convention", func(t *testing.T) {
		backend := setupLocal(t)

		if _, err := backend.Store(ctx, "party", "photo-3-cc",
			Object{Data: []byte("x"), Ext: "jpg"}, nil); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		stray := filepath.Join(backend.Root(), "party", ".DS_Store")
		if err := os.WriteFile(stray, []byte("junk"), 0640); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		entries, err := backend.List(ctx, "party")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("got %d entries, want 1", len(entries))
		}
	})
}

func TestLocalBackend_URLFor(t *testing.T) {
	ctx := context.Background()

	t.Run("relative without base URL", func(t *testing.T) {
		backend := setupLocal(t)

		url, err := backend.URLFor(ctx, "wedding-42/photo-1-aa_original.jpg")
		if err != nil {
			t.Fatalf("URLFor() error = %v", err)
		}
		if url != "/uploads/wedding-42/photo-1-aa_original.jpg" {
			t.Errorf("URLFor() = %q", url)
		}
	})

	t.Run("absolute with base URL", func(t *testing.T) {
		backend, err := NewLocalBackend(t.TempDir(), "https://photos.example.com/", nil)
		if err != nil {
			t.Fatalf("NewLocalBackend() error = %v", err)
		}

		url, err := backend.URLFor(ctx, "wedding-42/photo-1-aa_original.jpg")
		if err != nil {
			t.Fatalf("URLFor() error = %v", err)
		}
		if url != "https://photos.example.com/uploads/wedding-42/photo-1-aa_original.jpg" {
			t.Errorf("URLFor() = %q", url)
		}
	})
}

func TestLocalBackend_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips stored original", func(t *testing.T) {
		backend := setupLocal(t)

		if _, err := backend.Store(ctx, "wedding-42", "photo-1-aa",
			Object{Data: []byte("payload"), ContentType: "image/png", Ext: "png"}, nil); err != nil {
			t.Fatalf("Store() error = %v", err)
		}

		obj, err := backend.Fetch(ctx, "wedding-42", "photo-1-aa")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(obj.Data) != "payload" {
			t.Errorf("Data = %q", string(obj.Data))
		}
		if obj.ContentType != "image/png" {
			t.Errorf("ContentType = %q", obj.ContentType)
		}
	})

	t.Run("unknown artifact returns ErrNotFound", func(t *testing.T) {
		backend := setupLocal(t)

		_, err := backend.Fetch(ctx, "wedding-42", "photo-9-zz")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unknown topic returns ErrNotFound", func(t *testing.T) {
		backend := setupLocal(t)

		_, err := backend.Fetch(ctx, "ghost-topic", "photo-1-aa")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
