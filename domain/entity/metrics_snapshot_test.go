package entity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewMetricsSnapshot(t *testing.T) {
	collectedAt := time.Date(2025, 3, 1, 21, 30, 0, 0, time.FixedZone("JST", 9*3600))

	snapshot := NewMetricsSnapshot(3, 5300, []KeySize{
		{Name: "small", SizeBytes: 100},
		{Name: "large", SizeBytes: 5000},
		{Name: "medium", SizeBytes: 200},
	}, 10, collectedAt)

	if snapshot.Count != 3 {
		t.Errorf("expected count 3, got %d", snapshot.Count)
	}
	if snapshot.TotalSizeBytes != 5300 {
		t.Errorf("expected total 5300, got %d", snapshot.TotalSizeBytes)
	}

	want := []KeySize{{"large", 5000}, {"medium", 200}, {"small", 100}}
	if len(snapshot.TopKeys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(snapshot.TopKeys))
	}
	for i := range want {
		if snapshot.TopKeys[i] != want[i] {
			t.Errorf("key %d: expected %+v, got %+v", i, want[i], snapshot.TopKeys[i])
		}
	}

	if snapshot.CollectedAtUTC.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", snapshot.CollectedAtUTC.Location())
	}
	if got := snapshot.CollectedAtString(); got != "2025-03-01 12:30:00" {
		t.Errorf("expected 2025-03-01 12:30:00, got %s", got)
	}
}

func TestNewMetricsSnapshot_LimitAndTies(t *testing.T) {
	keys := []KeySize{
		{Name: "a", SizeBytes: 10},
		{Name: "b", SizeBytes: 30},
		{Name: "c", SizeBytes: 10},
		{Name: "d", SizeBytes: 30},
		{Name: "e", SizeBytes: 5},
	}

	snapshot := NewMetricsSnapshot(5, 85, keys, 3, time.Now())

	want := []string{"b", "d", "a"}
	if len(snapshot.TopKeys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(snapshot.TopKeys))
	}
	for i, name := range want {
		if snapshot.TopKeys[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, snapshot.TopKeys[i].Name)
		}
	}

	// input must not be reordered
	if keys[0].Name != "a" || keys[1].Name != "b" {
		t.Error("expected input slice to be left untouched")
	}
}

func TestNewMetricsSnapshot_Invariants(t *testing.T) {
	t.Run("count never below listed keys", func(t *testing.T) {
		snapshot := NewMetricsSnapshot(1, 300, []KeySize{{"x", 200}, {"y", 100}}, 10, time.Now())
		if snapshot.Count < uint64(len(snapshot.TopKeys)) {
			t.Errorf("count %d below key count %d", snapshot.Count, len(snapshot.TopKeys))
		}
	})

	t.Run("empty store", func(t *testing.T) {
		snapshot := NewMetricsSnapshot(0, 0, nil, 10, time.Now())
		if snapshot.Count != 0 || snapshot.TotalSizeBytes != 0 {
			t.Errorf("expected zero snapshot, got %+v", snapshot)
		}
		if snapshot.TopKeys == nil {
			t.Error("expected empty, non-nil key list")
		}
		data, err := json.Marshal(snapshot)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"top_keys":[]`) {
			t.Errorf("expected empty array in JSON, got %s", data)
		}
	})
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"siteurl", "siteurl"},
		{"_transient_feed_abc123", "_transient_feed_abc123"},
		{"widget_recent-posts", "widget_recent-posts"},
		{"WPLANG", "wplang"},
		{"bad name'; DROP TABLE", "badnamedroptable"},
		{"<script>x</script>", "scriptxscript"},
		{"日本語_option", "_option"},
	}

	for _, tt := range tests {
		if got := SanitizeKey(tt.in); got != tt.want {
			t.Errorf("SanitizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSizeKB(t *testing.T) {
	tests := []struct {
		bytes uint64
		want  string
	}{
		{0, "0.00 KB"},
		{512, "0.50 KB"},
		{1024, "1.00 KB"},
		{5300, "5.18 KB"},
	}

	for _, tt := range tests {
		if got := FormatSizeKB(tt.bytes); got != tt.want {
			t.Errorf("FormatSizeKB(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
