package storage

import (
	"fmt"
	"strings"
)

// Variant distinguishes the two stored forms of an artifact.
type Variant string

const (
	// VariantOriginal is the as-uploaded (converted) photo.
	VariantOriginal Variant = "original"
	// VariantThumb is the derived thumbnail.
	VariantThumb Variant = "thumb"
)

// Keys follow the fixed pattern topic/artifactID_variant.ext. Existing
// stored data is indexed purely by this naming convention, so both
// backends and ParseKey must agree on it.

// Key builds the storage key for one variant of an artifact.
func Key(topic, artifactID string, variant Variant, ext string) string {
	return fmt.Sprintf("%s/%s_%s.%s", topic, artifactID, variant, ext)
}

// ParsedKey is the result of decomposing a storage key.
type ParsedKey struct {
	Topic      string
	ArtifactID string
	Variant    Variant
	Ext        string
}

// ParseKey decomposes a storage key back into its parts. It returns
// false for keys that do not follow the naming convention; List uses
// that to skip foreign objects sharing the prefix.
func ParseKey(key string) (ParsedKey, bool) {
	topic, rest, ok := strings.Cut(key, "/")
	if !ok || topic == "" || strings.Contains(rest, "/") {
		return ParsedKey{}, false
	}

	// The artifact ID never contains underscores, so the first one
	// separates it from the variant.
	id, tail, ok := strings.Cut(rest, "_")
	if !ok || id == "" {
		return ParsedKey{}, false
	}

	variant, ext, ok := strings.Cut(tail, ".")
	if !ok || ext == "" {
		return ParsedKey{}, false
	}

	switch Variant(variant) {
	case VariantOriginal, VariantThumb:
	default:
		return ParsedKey{}, false
	}

	return ParsedKey{
		Topic:      topic,
		ArtifactID: id,
		Variant:    Variant(variant),
		Ext:        ext,
	}, true
}

// originalPrefix is the key prefix shared by every extension of one
// artifact's original, used to locate it without knowing the extension.
func originalPrefix(topic, artifactID string) string {
	return fmt.Sprintf("%s/%s_%s.", topic, artifactID, VariantOriginal)
}

// ContentTypeForExt maps a stored extension back to a MIME type.
func ContentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
