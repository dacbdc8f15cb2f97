package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// NewExtractionID produces a deterministic ID from a location ID and an
// observation timestamp. The timestamp is normalized to UTC and truncated to
// the minute, matching the resolution Open-Meteo reports, so sub-minute
// jitter between retries never mints a new identity. Deterministic IDs make
// reruns idempotent end to end: the same observation always lands on the same
// raw artifact, dataset row, and warehouse row.
func NewExtractionID(locationID string, observedAt time.Time) string {
	bucket := observedAt.UTC().Truncate(time.Minute)
	input := locationID + "|" + bucket.Format(time.RFC3339)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}
