package storage

import "testing"

func TestKey(t *testing.T) {
	got := Key("wedding-42", "photo-1701432000-a1b2c3d4", VariantOriginal, "jpg")
	want := "wedding-42/photo-1701432000-a1b2c3d4_original.jpg"
	if got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}

	got = Key("wedding-42", "photo-1701432000-a1b2c3d4", VariantThumb, "jpg")
	want = "wedding-42/photo-1701432000-a1b2c3d4_thumb.jpg"
	if got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestParseKey(t *testing.T) {
	t.Run("round-trips generated keys", func(t *testing.T) {
		key := Key("wedding-42", "photo-1701432000-a1b2c3d4", VariantThumb, "jpg")

		parsed, ok := ParseKey(key)
		if !ok {
			t.Fatalf("ParseKey(%q) not ok", key)
		}
		if parsed.Topic != "wedding-42" {
			t.Errorf("Topic = %q", parsed.Topic)
		}
		if parsed.ArtifactID != "photo-1701432000-a1b2c3d4" {
			t.Errorf("ArtifactID = %q", parsed.ArtifactID)
		}
		if parsed.Variant != VariantThumb {
			t.Errorf("Variant = %q", parsed.Variant)
		}
		if parsed.Ext != "jpg" {
			t.Errorf("Ext = %q", parsed.Ext)
		}
	})

	t.Run("rejects foreign keys", func(t *testing.T) {
		for _, key := range []string{
			"",
			"no-slash.jpg",
			"topic/noseparator.jpg",
			"topic/id_banana.jpg",
			"topic/id_original",
			"topic/nested/id_original.jpg",
		} {
			if _, ok := ParseKey(key); ok {
				t.Errorf("ParseKey(%q) unexpectedly ok", key)
			}
		}
	})
}
