package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Compile-time check that LocalBackend implements Backend.
var _ Backend = (*LocalBackend)(nil)

// LocalBackend implements Backend on the local filesystem. Artifacts are
// stored under root/topic/ and served through the /uploads/ static
// prefix; URLs carry no expiration.
type LocalBackend struct {
	root    string
	baseURL string
	logger  *slog.Logger
}

// staticPrefix is the URL path the HTTP layer serves the uploads
// directory under.
const staticPrefix = "/uploads"

// NewLocalBackend creates a LocalBackend rooted at dir. The directory is
// created if it doesn't exist. When baseURL is non-empty, URLFor returns
// absolute URLs against it.
func NewLocalBackend(dir, baseURL string, logger *slog.Logger) (*LocalBackend, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "mac-uploader")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	return &LocalBackend{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}, nil
}

// Root returns the uploads directory path.
func (b *LocalBackend) Root() string {
	return b.root
}

// Store writes the original and, best-effort, the thumbnail to disk.
func (b *LocalBackend) Store(ctx context.Context, topic, artifactID string, original Object, thumbnail *Object) (StoredKeys, error) {
	select {
	case <-ctx.Done():
		return StoredKeys{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := os.MkdirAll(filepath.Join(b.root, topic), 0750); err != nil {
		return StoredKeys{}, &WriteError{Key: topic, Err: err}
	}

	keys := StoredKeys{
		OriginalKey: Key(topic, artifactID, VariantOriginal, original.Ext),
	}
	if err := b.writeKey(keys.OriginalKey, original.Data); err != nil {
		return StoredKeys{}, &WriteError{Key: keys.OriginalKey, Err: err}
	}

	if thumbnail != nil {
		thumbKey := Key(topic, artifactID, VariantThumb, thumbnail.Ext)
		if err := b.writeKey(thumbKey, thumbnail.Data); err != nil {
			// A photo without a thumbnail is still useful.
			b.logger.Warn("thumbnail write failed",
				slog.String("key", thumbKey),
				slog.String("error", err.Error()),
			)
		} else {
			keys.ThumbnailKey = thumbKey
		}
	}

	return keys, nil
}

// writeKey writes data to the file backing a storage key, removing any
// partial file on failure.
func (b *LocalBackend) writeKey(key string, data []byte) error {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.WriteFile(path, data, 0640); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// List scans the topic directory and rebuilds entries from file names.
// A missing topic directory yields an empty list, not an error.
func (b *LocalBackend) List(ctx context.Context, topic string) ([]Entry, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	files, err := os.ReadDir(filepath.Join(b.root, topic))
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read topic directory: %w", err)
	}

	byID := make(map[string]*Entry)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		parsed, ok := ParseKey(topic + "/" + f.Name())
		if !ok {
			continue
		}

		entry, exists := byID[parsed.ArtifactID]
		if !exists {
			entry = &Entry{ArtifactID: parsed.ArtifactID}
			byID[parsed.ArtifactID] = entry
		}

		key := topic + "/" + f.Name()
		switch parsed.Variant {
		case VariantOriginal:
			entry.OriginalKey = key
			if info, err := f.Info(); err == nil {
				entry.ModifiedAt = info.ModTime()
			}
		case VariantThumb:
			entry.ThumbnailKey = key
		}
	}

	entries := make([]Entry, 0, len(byID))
	for _, e := range byID {
		// A thumbnail without an original is an orphan; skip it.
		if e.OriginalKey == "" {
			continue
		}
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ModifiedAt.Equal(entries[j].ModifiedAt) {
			return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
		}
		// Artifact IDs embed the mint timestamp, so this keeps
		// same-second uploads newest-first too.
		return entries[i].ArtifactID > entries[j].ArtifactID
	})

	return entries, nil
}

// URLFor returns the static-serving path for a key, absolutized against
// the configured base URL when one is set.
func (b *LocalBackend) URLFor(_ context.Context, key string) (string, error) {
	url := staticPrefix + "/" + key
	if b.baseURL != "" {
		url = b.baseURL + url
	}
	return url, nil
}

// Fetch reads the original bytes of an artifact. The extension is not
// part of the artifact ID, so the topic directory is scanned for the
// original-variant prefix.
func (b *LocalBackend) Fetch(ctx context.Context, topic, artifactID string) (Object, error) {
	select {
	case <-ctx.Done():
		return Object{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	files, err := os.ReadDir(filepath.Join(b.root, topic))
	if err != nil {
		if os.IsNotExist(err) {
			return Object{}, ErrNotFound
		}
		return Object{}, fmt.Errorf("read topic directory: %w", err)
	}

	prefix := strings.TrimPrefix(originalPrefix(topic, artifactID), topic+"/")
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), prefix) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(b.root, topic, f.Name())) // #nosec G304 - name comes from a directory scan under our root
		if err != nil {
			return Object{}, fmt.Errorf("read original: %w", err)
		}

		ext := strings.TrimPrefix(f.Name(), prefix)
		return Object{
			Data:        data,
			ContentType: ContentTypeForExt(ext),
			Ext:         ext,
		}, nil
	}

	return Object{}, ErrNotFound
}
