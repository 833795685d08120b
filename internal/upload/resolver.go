package upload

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEventCode is returned when an event code cannot be resolved
// to a topic.
var ErrInvalidEventCode = errors.New("upload: invalid event code")

// TopicResolver maps a human-facing event code to the canonical topic
// string that scopes subscribers and stored artifacts. How that mapping
// is created or stored is outside the pipeline.
type TopicResolver interface {
	Resolve(ctx context.Context, eventCode string) (string, error)
}

// Compile-time check that SlugResolver implements TopicResolver.
var _ TopicResolver = SlugResolver{}

// SlugResolver normalizes event codes to URL- and key-safe slugs. The
// topic doubles as a path segment in storage keys, so anything outside
// [a-z0-9-] is squashed.
type SlugResolver struct{}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// Resolve lowercases and slugifies the event code.
// Returns ErrInvalidEventCode when nothing usable remains.
func (SlugResolver) Resolve(_ context.Context, eventCode string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(eventCode))
	slug = slugUnsafe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "", ErrInvalidEventCode
	}
	return slug, nil
}
