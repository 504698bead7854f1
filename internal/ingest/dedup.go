package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/askeland/teu-capacity/internal/domain"
)

// keySeparator joins the key fields before hashing. The ASCII unit separator
// cannot appear in CSV cell content, so two distinct field tuples can never
// collide by concatenation.
const keySeparator = "\x1f"

// DedupKey derives the stable identity of a sailing from its six identifying
// fields: origin, destination, both port codes, the roundtrip service
// identifier, and the departure instant.
//
// The same logical sailing always produces the same key regardless of row
// order or incidental formatting: fields are whitespace-trimmed (comparison
// stays case-sensitive) and the departure is rendered in RFC3339 UTC, so
// "2024-03-04T00:00:00Z" and "2024-03-04 00:00:00" hash identically.
// The SHA-256 hex digest keeps the storage column fixed-width and
// index-friendly however long the service identifiers grow.
func DedupKey(rec domain.SailingRecord) string {
	parts := []string{
		strings.TrimSpace(rec.Origin),
		strings.TrimSpace(rec.Destination),
		strings.TrimSpace(rec.OriginPortCode),
		strings.TrimSpace(rec.DestinationPortCode),
		strings.TrimSpace(rec.ServiceVersionAndRoundtripIdentfiers),
		rec.DepartureAtUTC.UTC().Format(time.RFC3339),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, keySeparator)))
	return hex.EncodeToString(sum[:])
}
