// Package id provides unique identifier generation for artifacts and
// subscribers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Generate creates a new unique identifier with the given prefix.
// Format: <prefix>-<timestamp>-<random>
// Example: photo-1701432000-a1b2c3d4
//
// The timestamp component keeps storage keys roughly sortable by mint
// time; the prefix must not contain underscores, which separate key
// segments in the storage layout.
func Generate(prefix string) string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// Fallback to timestamp only if crypto/rand fails
		return fmt.Sprintf("%s-%d", prefix, timestamp)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, timestamp, hex.EncodeToString(random))
}
