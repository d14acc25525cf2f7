package entity

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SnapshotTimeLayout is the display layout for timestamps shown to operators
const SnapshotTimeLayout = "2006-01-02 15:04:05"

// KeySize is one autoloaded option and the byte length of its value
type KeySize struct {
	Name      string `json:"name"`
	SizeBytes uint64 `json:"size_bytes"`
}

// MetricsSnapshot is the autoload health of an options table at one point in time.
// The three measurements come from separate queries and may be taken
// microseconds apart, so under concurrent writes they can disagree slightly.
type MetricsSnapshot struct {
	Count          uint64    `json:"count"`
	TotalSizeBytes uint64    `json:"total_size_bytes"`
	TopKeys        []KeySize `json:"top_keys"`
	CollectedAtUTC time.Time `json:"collected_at_utc"`
}

// NewMetricsSnapshot builds a snapshot from raw query results.
// Key names are sanitized, keys are ordered by size descending (stable for ties)
// and at most limit keys are kept. A limit <= 0 keeps every key.
func NewMetricsSnapshot(count, totalSizeBytes uint64, topKeys []KeySize, limit int, collectedAt time.Time) *MetricsSnapshot {
	keys := make([]KeySize, 0, len(topKeys))
	for _, k := range topKeys {
		keys = append(keys, KeySize{Name: SanitizeKey(k.Name), SizeBytes: k.SizeBytes})
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return keys[i].SizeBytes > keys[j].SizeBytes
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	// every listed key is an existing autoloaded row
	if count < uint64(len(keys)) {
		count = uint64(len(keys))
	}

	return &MetricsSnapshot{
		Count:          count,
		TotalSizeBytes: totalSizeBytes,
		TopKeys:        keys,
		CollectedAtUTC: collectedAt.UTC(),
	}
}

// CollectedAtString returns the collection time as "YYYY-MM-DD HH:MM:SS" in UTC
func (s *MetricsSnapshot) CollectedAtString() string {
	return s.CollectedAtUTC.UTC().Format(SnapshotTimeLayout)
}

// SanitizeKey lowercases an option name and strips every character
// outside [a-z0-9_-].
func SanitizeKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatSizeKB renders a byte count as "X.XX KB"
func FormatSizeKB(bytes uint64) string {
	return fmt.Sprintf("%.2f KB", float64(bytes)/1024)
}
