// Package storage provides persistent artifact storage for event photos.
// It defines the Backend interface (port) and implementations for local
// disk and S3 object storage. Exactly one backend is selected at startup;
// callers only ever see the interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested artifact does not exist.
var ErrNotFound = errors.New("storage: artifact not found")

// WriteError indicates that a backend write failed. For the original
// variant of an artifact this is fatal to the upload; thumbnail write
// failures are absorbed by the backend itself.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Object is an immutable blob handed to or returned by a backend.
type Object struct {
	Data        []byte
	ContentType string
	// Ext is the file extension without the leading dot, e.g. "jpg".
	Ext string
}

// StoredKeys identifies where the two variants of an artifact landed.
// ThumbnailKey is empty when the thumbnail write failed or was skipped.
type StoredKeys struct {
	OriginalKey  string
	ThumbnailKey string
}

// Entry is one artifact as recovered from backend contents during List.
type Entry struct {
	ArtifactID   string
	OriginalKey  string
	ThumbnailKey string
	ModifiedAt   time.Time
}

// Backend defines the uniform storage contract implemented by both the
// local-disk and S3 variants.
type Backend interface {
	// Store persists the original and, best-effort, the thumbnail.
	// A failed original write returns a *WriteError; a failed thumbnail
	// write is logged and reported as an empty ThumbnailKey.
	Store(ctx context.Context, topic, artifactID string, original Object, thumbnail *Object) (StoredKeys, error)

	// List returns the artifacts stored under a topic, newest first.
	// It reflects backend contents at call time.
	List(ctx context.Context, topic string) ([]Entry, error)

	// URLFor resolves a stored key to a client-fetchable URL. The S3
	// backend returns a presigned URL with a fixed TTL, recomputed on
	// every call; callers must not cache it past that TTL. The local
	// backend returns a path under the static serving prefix.
	URLFor(ctx context.Context, key string) (string, error)

	// Fetch returns the raw bytes of an artifact's original.
	// Returns ErrNotFound if no matching key exists.
	Fetch(ctx context.Context, topic, artifactID string) (Object, error)
}
